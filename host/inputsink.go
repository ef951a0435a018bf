package host

import "github.com/brightloom/vncd/logging"

// LoggingInputSink is an InputSink reference implementation that logs
// every injected event instead of driving a real input backend, the
// same role SyntheticScreen plays on the capture side.
type LoggingInputSink struct {
	log logging.Logger
}

// NewLoggingInputSink builds a LoggingInputSink writing through log.
func NewLoggingInputSink(log logging.Logger) *LoggingInputSink {
	return &LoggingInputSink{log: log}
}

func (s *LoggingInputSink) InjectKey(keysym uint32, pressed bool) error {
	s.log.Debug("key event", logging.F("keysym", keysym), logging.F("pressed", pressed))
	return nil
}

func (s *LoggingInputSink) InjectPointer(x, y int, buttons uint8) error {
	s.log.Debug("pointer event", logging.F("x", x), logging.F("y", y), logging.F("buttons", buttons))
	return nil
}

func (s *LoggingInputSink) SetClipboard(text []byte) error {
	s.log.Debug("clipboard set", logging.F("bytes", len(text)))
	return nil
}

var _ InputSink = (*LoggingInputSink)(nil)

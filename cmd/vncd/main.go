// Command vncd is an RFB (RFC 6143) server: it serves a framebuffer
// over the VNC protocol, optionally tunneled over WebSocket, to any
// standard VNC viewer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/brightloom/vncd/config"
	"github.com/brightloom/vncd/host"
	"github.com/brightloom/vncd/logging"
	"github.com/brightloom/vncd/server"
	"github.com/brightloom/vncd/version"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to a YAML configuration file")
		host_       = flag.String("host", "", "Address to listen on (overrides config file)")
		port        = flag.Int("port", 0, "Port to listen on (overrides config file)")
		password    = flag.String("password", "", "VNC authentication password (overrides config file)")
		frameRate   = flag.Int("frame-rate", 0, "WAN frame rate in frames per second (overrides config file)")
		logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config file)")
		logFile     = flag.String("log-file", "", "Log file path, empty for stderr (overrides config file)")
		pattern     = flag.String("pattern", "wheel", "Synthetic screen pattern: wheel, plasma, gradient")
		width       = flag.Int("width", 1024, "Synthetic screen width in pixels")
		height      = flag.Int("height", 768, "Synthetic screen height in pixels")
		showVersion = flag.Bool("version", false, "Print version and exit")
		help        = flag.Bool("help", false, "Show this help message")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Version())
		return
	}

	if *help {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "vncd - RFB (VNC) server\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -port 5900\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -config /etc/vncd/config.yaml\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -port 5900 -password secret -log-level debug\n", os.Args[0])
		return
	}

	overrides := &config.FlagOverrides{
		Host:      nonEmpty(host_),
		Port:      nonZero(port),
		Password:  nonEmpty(password),
		FrameRate: nonZero(frameRate),
		LogLevel:  nonEmpty(logLevel),
		LogFile:   logFile,
	}

	cfg, err := config.Load(*configPath, flag.CommandLine, overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vncd: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogFile, logging.ParseLevel(cfg.LogLevel))
	if err != nil {
		fmt.Fprintf(os.Stderr, "vncd: log: %v\n", err)
		os.Exit(1)
	}

	source := host.NewSyntheticScreen(*width, *height, host.Pattern(*pattern))
	input := host.NewLoggingInputSink(logger.With(logging.F("component", "input")))

	sv := server.New(cfg, source, input, logger.With(logging.F("component", "server"), logging.F("version", version.Version())))

	logger.Info("starting vncd", logging.F("version", version.Version()), logging.F("addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)))
	if err := sv.Serve(context.Background()); err != nil {
		logger.Error("server exited with error", logging.F("err", err))
		os.Exit(1)
	}
}

// nonEmpty returns s if it points to a non-empty string, nil otherwise,
// so an unset string flag never overrides a config file value with "".
func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// nonZero returns i if it points to a non-zero int, nil otherwise, so
// an unset int flag never overrides a config file value with 0.
func nonZero(i *int) *int {
	if i == nil || *i == 0 {
		return nil
	}
	return i
}

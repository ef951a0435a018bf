// Package config loads and validates the server's configuration: a YAML
// file merged with command-line flag overrides, falling back to the
// defaults spec'd for each field. Precedence is flag > file > default.
package config

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NetworkProfile names an explicit override of C3's autodetected network
// profile. The zero value, ProfileAuto, means "let the server detect it".
type NetworkProfile string

const (
	ProfileAuto      NetworkProfile = ""
	ProfileLocalhost NetworkProfile = "localhost"
	ProfileLAN       NetworkProfile = "lan"
	ProfileWAN       NetworkProfile = "wan"
)

// Config is the full set of recognized server options, yaml-tagged for
// file loading. Every field has a matching default in DefaultConfig.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`

	FrameRate             int            `yaml:"frame_rate"`
	LANFrameRate          int            `yaml:"lan_frame_rate"`
	NetworkProfileOverride NetworkProfile `yaml:"network_profile_override"`
	ScaleFactor           float64        `yaml:"scale_factor"`
	MaxConnections        int            `yaml:"max_connections"`

	EnableRegionDetection bool `yaml:"enable_region_detection"`
	EnableCursorEncoding  bool `yaml:"enable_cursor_encoding"`
	EnableTightEncoding   bool `yaml:"enable_tight_encoding"`
	EnableJPEGEncoding    bool `yaml:"enable_jpeg_encoding"`
	EnableH264Encoding    bool `yaml:"enable_h264_encoding"`
	EnableParallelEncoding bool `yaml:"enable_parallel_encoding"`
	TightDisableForUltraVNC bool `yaml:"tight_disable_for_ultravnc"`
	EncodingThreads       *int `yaml:"encoding_threads"`

	EnableWebsocket           bool    `yaml:"enable_websocket"`
	WebsocketDetectTimeout    float64 `yaml:"websocket_detect_timeout"`
	WebsocketMaxHandshakeBytes int    `yaml:"websocket_max_handshake_bytes"`
	WebsocketMaxPayloadBytes  int     `yaml:"websocket_max_payload_bytes"`
	WebsocketMaxBufferBytes   int     `yaml:"websocket_max_buffer_bytes"`

	MaxSetEncodings     int     `yaml:"max_set_encodings"`
	MaxClientCutText    int     `yaml:"max_client_cut_text"`
	ClientSocketTimeout float64 `yaml:"client_socket_timeout"`

	EnableRequestCoalescing bool `yaml:"enable_request_coalescing"`

	LANRawAreaThreshold    int     `yaml:"lan_raw_area_threshold"`
	LANRawMaxPixels        int     `yaml:"lan_raw_max_pixels"`
	LANPreferZlib          bool    `yaml:"lan_prefer_zlib"`
	LANZlibAreaThreshold   int     `yaml:"lan_zlib_area_threshold"`
	LANZlibMinPixels       int     `yaml:"lan_zlib_min_pixels"`
	LANZlibCompressionLevel int    `yaml:"lan_zlib_compression_level"`
	LANZlibWarmupRequests  int     `yaml:"lan_zlib_warmup_requests"`
	LANJPEGAreaThreshold   int     `yaml:"lan_jpeg_area_threshold"`
	LANJPEGMinPixels       int     `yaml:"lan_jpeg_min_pixels"`
	LANJPEGQualityInitial  int     `yaml:"lan_jpeg_quality_initial"`
	LANJPEGQualityMin      int     `yaml:"lan_jpeg_quality_min"`
	LANJPEGQualityMax      int     `yaml:"lan_jpeg_quality_max"`
	LANZRLECompressionLevel int    `yaml:"lan_zrle_compression_level"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// DefaultConfig returns the configuration spec'd defaults, before any
// file or flag override is applied.
func DefaultConfig() *Config {
	return &Config{
		Host:     "0.0.0.0",
		Port:     5900,
		Password: "",

		FrameRate:              30,
		LANFrameRate:           60,
		NetworkProfileOverride: ProfileAuto,
		ScaleFactor:            1.0,
		MaxConnections:         10,

		EnableRegionDetection:   true,
		EnableCursorEncoding:    false,
		EnableTightEncoding:     false,
		EnableJPEGEncoding:      false,
		EnableH264Encoding:      false,
		EnableParallelEncoding:  false,
		TightDisableForUltraVNC: true,
		EncodingThreads:         nil,

		EnableWebsocket:            true,
		WebsocketDetectTimeout:     0.25,
		WebsocketMaxHandshakeBytes: 16384,
		WebsocketMaxPayloadBytes:   1 << 20,
		WebsocketMaxBufferBytes:    1 << 20,

		MaxSetEncodings:     32,
		MaxClientCutText:    1 << 20,
		ClientSocketTimeout: 30,

		EnableRequestCoalescing: true,

		LANRawAreaThreshold:     64 * 64,
		LANRawMaxPixels:         256 * 256,
		LANPreferZlib:           true,
		LANZlibAreaThreshold:    32 * 32,
		LANZlibMinPixels:        16,
		LANZlibCompressionLevel: 6,
		LANZlibWarmupRequests:   2,
		LANJPEGAreaThreshold:    64 * 64,
		LANJPEGMinPixels:        256,
		LANJPEGQualityInitial:   80,
		LANJPEGQualityMin:       30,
		LANJPEGQualityMax:       95,
		LANZRLECompressionLevel: 6,

		LogLevel: "info",
		LogFile:  "",
	}
}

// Load reads path (if non-empty) as YAML over DefaultConfig, then
// applies any flags explicitly set on fs, and validates the result.
// fs must already have had fs.Parse called.
func Load(path string, fs *flag.FlagSet, overrides *FlagOverrides) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse %s: %w", path, err)
		}
	}

	if overrides != nil {
		overrides.apply(cfg, fs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}

// FlagOverrides carries the values bound to command-line flags, applied
// over the file/default configuration only for flags the caller actually
// set (flag.FlagSet.Visit, not VisitAll), so an unset flag never
// clobbers a value the config file supplied.
type FlagOverrides struct {
	Host     *string
	Port     *int
	Password *string
	FrameRate *int
	LogLevel *string
	LogFile  *string
}

func (o *FlagOverrides) apply(cfg *Config, fs *flag.FlagSet) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			if o.Host != nil {
				cfg.Host = *o.Host
			}
		case "port":
			if o.Port != nil {
				cfg.Port = *o.Port
			}
		case "password":
			if o.Password != nil {
				cfg.Password = *o.Password
			}
		case "frame-rate":
			if o.FrameRate != nil {
				cfg.FrameRate = *o.FrameRate
			}
		case "log-level":
			if o.LogLevel != nil {
				cfg.LogLevel = *o.LogLevel
			}
		case "log-file":
			if o.LogFile != nil {
				cfg.LogFile = *o.LogFile
			}
		}
	})
}

// Validate rejects configurations that would make the server
// misbehave in ways not already caught by zero values acting as
// sensible defaults.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", c.MaxConnections)
	}
	if c.ScaleFactor <= 0 {
		return fmt.Errorf("scale_factor must be positive, got %f", c.ScaleFactor)
	}
	if c.FrameRate <= 0 || c.LANFrameRate <= 0 {
		return fmt.Errorf("frame rates must be positive")
	}
	switch c.NetworkProfileOverride {
	case ProfileAuto, ProfileLocalhost, ProfileLAN, ProfileWAN:
	default:
		return fmt.Errorf("network_profile_override %q not recognized", c.NetworkProfileOverride)
	}
	if c.EncodingThreads != nil && *c.EncodingThreads <= 0 {
		return fmt.Errorf("encoding_threads must be positive when set, got %d", *c.EncodingThreads)
	}
	if c.MaxSetEncodings <= 0 {
		return fmt.Errorf("max_set_encodings must be positive")
	}
	if c.MaxClientCutText <= 0 {
		return fmt.Errorf("max_client_cut_text must be positive")
	}
	return nil
}

// Package config manages the gobier daemon configuration using koanf/v2.
//
// Supports YAML files and environment variables. This is the
// daemon's own operational configuration (listen addresses, log level,
// state file path) — distinct from the domain BFR state file described by
// internal/bift, whose JSON wire shape is fixed by the external schema.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete gobier daemon configuration.
type Config struct {
	Metrics MetricsConfig `koanf:"metrics"`
	Log     LogConfig     `koanf:"log"`
	Netio   NetioConfig   `koanf:"netio"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// NetioConfig describes the three endpoints the I/O shell owns: the raw
// IPv6 forwarding socket, the control envelope datagram socket, and the
// optional local delivery socket.
type NetioConfig struct {
	// RawInterface is the network interface the raw IPv6 endpoint binds
	// to for SO_BINDTODEVICE.
	RawInterface string `koanf:"raw_interface"`
	// Protocol is the reserved IP protocol number BIER packets are sent
	// and received under (253 in the reference deployment).
	Protocol int `koanf:"protocol"`
	// ControlSocket is the filesystem path of the local datagram endpoint
	// receiving control envelopes from applications.
	ControlSocket string `koanf:"control_socket"`
	// DeliverySocket is the filesystem path of the optional local
	// datagram endpoint that receives decapsulated local-delivery
	// payloads. Empty disables local delivery (the copy is silently
	// dropped).
	DeliverySocket string `koanf:"delivery_socket"`
	// StateFile is the path of the BFR state configuration file, loaded
	// once at startup and reloaded on SIGHUP.
	StateFile string `koanf:"state_file"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults. The
// protocol default of 253 matches the reference deployment's reserved
// IP protocol number.
func DefaultConfig() *Config {
	return &Config{
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Netio: NetioConfig{
			Protocol:      253,
			ControlSocket: "/run/gobier/control.sock",
			StateFile:     "/etc/gobier/bift.json",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for gobier configuration.
// Variables are named GOBIER_<section>_<key>, e.g., GOBIER_METRICS_ADDR.
const envPrefix = "GOBIER_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (GOBIER_ prefix), and merges on top of
// DefaultConfig(). Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	GOBIER_METRICS_ADDR       -> metrics.addr
//	GOBIER_METRICS_PATH       -> metrics.path
//	GOBIER_LOG_LEVEL          -> log.level
//	GOBIER_LOG_FORMAT         -> log.format
//	GOBIER_NETIO_PROTOCOL     -> netio.protocol
//	GOBIER_NETIO_STATE_FILE   -> netio.state_file
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms GOBIER_NETIO_STATE_FILE -> netio.state_file.
// Strips the GOBIER_ prefix, lowercases, and replaces the first _ (the
// section separator) with .
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.Replace(s, "_", ".", 1)
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"metrics.addr":          defaults.Metrics.Addr,
		"metrics.path":          defaults.Metrics.Path,
		"log.level":             defaults.Log.Level,
		"log.format":            defaults.Log.Format,
		"netio.raw_interface":   defaults.Netio.RawInterface,
		"netio.protocol":        defaults.Netio.Protocol,
		"netio.control_socket":  defaults.Netio.ControlSocket,
		"netio.delivery_socket": defaults.Netio.DeliverySocket,
		"netio.state_file":      defaults.Netio.StateFile,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyControlSocket indicates the control envelope socket path is
	// empty.
	ErrEmptyControlSocket = errors.New("netio.control_socket must not be empty")

	// ErrEmptyStateFile indicates the BFR state file path is empty.
	ErrEmptyStateFile = errors.New("netio.state_file must not be empty")

	// ErrInvalidProtocol indicates the configured IP protocol number is
	// out of the valid 0-255 range.
	ErrInvalidProtocol = errors.New("netio.protocol must be in [0, 255]")
)

// Validate checks the configuration for logical errors. Returns the
// first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Netio.ControlSocket == "" {
		return ErrEmptyControlSocket
	}
	if cfg.Netio.StateFile == "" {
		return ErrEmptyStateFile
	}
	if cfg.Netio.Protocol < 0 || cfg.Netio.Protocol > 255 {
		return ErrInvalidProtocol
	}
	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the
// corresponding slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

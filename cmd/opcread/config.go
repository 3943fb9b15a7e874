package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/moffa90/go-opc/protocol"
)

// Config holds the opcread settings. The yaml file is read first and
// explicitly set flags override it.
type Config struct {
	// Device is "spi:<port>", "usbiss:<serial device>" or "sim"
	Device string `yaml:"device"`

	Model protocol.Model `yaml:"model"`

	// Firmware such as "18.2"; empty means detect
	Firmware string `yaml:"firmware"`

	// FrequencyKHz is the SPI clock
	FrequencyKHz int `yaml:"frequency_khz"`

	// Samples to read; zero reads until interrupted
	Samples int `yaml:"samples"`

	Interval            time.Duration `yaml:"interval"`
	NumberConcentration bool          `yaml:"number_concentration"`

	// Format is json or cbor
	Format string `yaml:"format"`

	// Database is an optional SQLite file for the readings
	Database string `yaml:"database"`

	// Trace is an optional CBOR file for raw bus frames
	Trace string `yaml:"trace"`

	LogLevel string `yaml:"log_level"`

	// WaitAttempts bounds the histogram polls while the device starts
	WaitAttempts int `yaml:"wait_attempts"`
}

func defaultConfig() Config {
	return Config{
		Device:       "spi:",
		Model:        protocol.ModelN2,
		FrequencyKHz: 500,
		Samples:      0,
		Interval:     5 * time.Second,
		Format:       "json",
		LogLevel:     "info",
		WaitAttempts: 10,
	}
}

// loadConfigFile overlays the yaml file at path onto cfg.
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c Config) validate() error {
	if _, err := protocol.ProfileFor(c.Model); err != nil {
		return err
	}
	if _, err := c.firmware(); err != nil {
		return err
	}
	switch c.Format {
	case "json", "cbor":
	default:
		return fmt.Errorf("format must be json or cbor, got %q", c.Format)
	}
	if c.Samples < 0 {
		return fmt.Errorf("samples must not be negative, got %d", c.Samples)
	}
	if c.Interval < 0 {
		return fmt.Errorf("interval must not be negative, got %s", c.Interval)
	}
	if c.WaitAttempts < 1 {
		return fmt.Errorf("wait_attempts must be at least 1, got %d", c.WaitAttempts)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	kind, _, _ := strings.Cut(c.Device, ":")
	switch kind {
	case "spi", "usbiss", "sim":
	default:
		return fmt.Errorf("device must start with spi:, usbiss: or be sim, got %q", c.Device)
	}
	return nil
}

// firmware parses the configured firmware version. It returns nil when the
// version is left to detection.
func (c Config) firmware() (*protocol.FirmwareVersion, error) {
	if c.Firmware == "" {
		return nil, nil
	}
	majorStr, minorStr, _ := strings.Cut(c.Firmware, ".")
	major, err := strconv.Atoi(majorStr)
	if err != nil {
		return nil, fmt.Errorf("invalid firmware %q", c.Firmware)
	}
	minor := 0
	if minorStr != "" {
		if minor, err = strconv.Atoi(minorStr); err != nil {
			return nil, fmt.Errorf("invalid firmware %q", c.Firmware)
		}
	}
	return &protocol.FirmwareVersion{Major: major, Minor: minor}, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("log level must be debug, info, warn or error, got %q", s)
}

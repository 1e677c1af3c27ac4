package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chaz8081/ledctl/internal/ble"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Device    string          `yaml:"device"` // default device ID; empty uses the last connected device
	BLE       BLEConfig       `yaml:"ble"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	API       APIConfig       `yaml:"api"`
	StatePath string          `yaml:"state_path"`
	LogLevel  string          `yaml:"log_level"`
}

// BLEConfig holds Bluetooth settings.
type BLEConfig struct {
	ServiceUUID string `yaml:"service_uuid"`
	ControlUUID string `yaml:"control_uuid"`
	NamePrefix  string `yaml:"name_prefix"` // scan filter; empty lists everything
	BlueZ       bool   `yaml:"bluez"`       // query BlueZ over D-Bus for connected devices (Linux)
}

// TimeoutConfig holds scan and per-operation deadlines.
type TimeoutConfig struct {
	Scan      time.Duration `yaml:"scan"`
	Operation time.Duration `yaml:"operation"`
}

// ReconnectConfig holds retry settings used when reconnecting to a known device.
type ReconnectConfig struct {
	Attempts   int `yaml:"attempts"`
	MaxBackoff int `yaml:"max_backoff"` // seconds
}

// APIConfig holds settings for the HTTP API served by "ledctl serve".
type APIConfig struct {
	Address string `yaml:"address"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "ledctl")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		BLE: BLEConfig{
			ServiceUUID: ble.ServiceUUID,
			ControlUUID: ble.ControlCharUUID,
			BlueZ:       true,
		},
		Timeouts: TimeoutConfig{
			Scan:      5 * time.Second,
			Operation: 10 * time.Second,
		},
		Reconnect: ReconnectConfig{
			Attempts:   3,
			MaxBackoff: 30,
		},
		API: APIConfig{
			Address: "127.0.0.1:8765",
		},
		StatePath: filepath.Join(DefaultConfigDir(), "state.yaml"),
		LogLevel:  "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in state_path is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.StatePath = expandTilde(cfg.StatePath)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.BLE.ServiceUUID == "" {
		return fmt.Errorf("ble.service_uuid must not be empty")
	}
	if c.BLE.ControlUUID == "" {
		return fmt.Errorf("ble.control_uuid must not be empty")
	}

	if c.Timeouts.Scan <= 0 {
		return fmt.Errorf("timeouts.scan must be > 0")
	}
	if c.Timeouts.Operation <= 0 {
		return fmt.Errorf("timeouts.operation must be > 0")
	}

	if c.Reconnect.Attempts <= 0 {
		return fmt.Errorf("reconnect.attempts must be > 0")
	}
	if c.Reconnect.MaxBackoff <= 0 {
		return fmt.Errorf("reconnect.max_backoff must be > 0")
	}

	if c.API.Address == "" {
		return fmt.Errorf("api.address must not be empty")
	}

	if c.StatePath == "" {
		return fmt.Errorf("state_path must not be empty")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

const defaultHeader = `# ledctl configuration
# device: default device ID (MAC on Linux, CoreBluetooth UUID on macOS).
# Leave empty to use the most recently connected device.
`

// WriteDefault writes the default config to DefaultConfigPath if no file
// exists there. It returns the path written, or "" if a config already exists.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(defaultHeader), data...), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

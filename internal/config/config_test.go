package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chaz8081/ledctl/internal/ble"
	"gopkg.in/yaml.v3"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.BLE.ServiceUUID != ble.ServiceUUID {
		t.Errorf("BLE.ServiceUUID = %q, want %q", cfg.BLE.ServiceUUID, ble.ServiceUUID)
	}
	if cfg.BLE.ControlUUID != ble.ControlCharUUID {
		t.Errorf("BLE.ControlUUID = %q, want %q", cfg.BLE.ControlUUID, ble.ControlCharUUID)
	}
	if cfg.Timeouts.Scan != 5*time.Second {
		t.Errorf("Timeouts.Scan = %v, want 5s", cfg.Timeouts.Scan)
	}
	if cfg.Timeouts.Operation != 10*time.Second {
		t.Errorf("Timeouts.Operation = %v, want 10s", cfg.Timeouts.Operation)
	}
	if cfg.Reconnect.Attempts != 3 {
		t.Errorf("Reconnect.Attempts = %d, want 3", cfg.Reconnect.Attempts)
	}
	if cfg.API.Address != "127.0.0.1:8765" {
		t.Errorf("API.Address = %q, want 127.0.0.1:8765", cfg.API.Address)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if !strings.HasSuffix(cfg.StatePath, filepath.Join("ledctl", "state.yaml")) {
		t.Errorf("StatePath = %q, want .../ledctl/state.yaml", cfg.StatePath)
	}
}

func TestLoad(t *testing.T) {
	yamlContent := `
device: BE:16:FA:00:01:02
ble:
  name_prefix: ELK
  bluez: false
timeouts:
  scan: 8s
  operation: 2500ms
reconnect:
  attempts: 5
  max_backoff: 10
api:
  address: 0.0.0.0:9000
state_path: /tmp/ledctl-state.yaml
log_level: debug
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device != "BE:16:FA:00:01:02" {
		t.Errorf("Device = %q", cfg.Device)
	}
	if cfg.BLE.NamePrefix != "ELK" || cfg.BLE.BlueZ {
		t.Errorf("BLE = %+v", cfg.BLE)
	}
	if cfg.BLE.ServiceUUID != ble.ServiceUUID {
		t.Errorf("BLE.ServiceUUID = %q, want default kept", cfg.BLE.ServiceUUID)
	}
	if cfg.Timeouts.Scan != 8*time.Second {
		t.Errorf("Timeouts.Scan = %v, want 8s", cfg.Timeouts.Scan)
	}
	if cfg.Timeouts.Operation != 2500*time.Millisecond {
		t.Errorf("Timeouts.Operation = %v, want 2.5s", cfg.Timeouts.Operation)
	}
	if cfg.Reconnect.Attempts != 5 || cfg.Reconnect.MaxBackoff != 10 {
		t.Errorf("Reconnect = %+v", cfg.Reconnect)
	}
	if cfg.API.Address != "0.0.0.0:9000" {
		t.Errorf("API.Address = %q", cfg.API.Address)
	}
	if cfg.StatePath != "/tmp/ledctl-state.yaml" {
		t.Errorf("StatePath = %q", cfg.StatePath)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestLoadExpandsTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home directory")
	}

	yamlContent := `
state_path: ~/led/state.yaml
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	expected := filepath.Join(home, "led/state.yaml")
	if cfg.StatePath != expected {
		t.Errorf("StatePath = %q, want %q", cfg.StatePath, expected)
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() should return error for nonexistent file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("timeouts: [not, a, map"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Error("Load() should fail on malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "empty service uuid",
			modify:  func(c *Config) { c.BLE.ServiceUUID = "" },
			wantErr: true,
		},
		{
			name:    "empty control uuid",
			modify:  func(c *Config) { c.BLE.ControlUUID = "" },
			wantErr: true,
		},
		{
			name:    "zero scan timeout",
			modify:  func(c *Config) { c.Timeouts.Scan = 0 },
			wantErr: true,
		},
		{
			name:    "negative operation timeout",
			modify:  func(c *Config) { c.Timeouts.Operation = -time.Second },
			wantErr: true,
		},
		{
			name:    "zero reconnect attempts",
			modify:  func(c *Config) { c.Reconnect.Attempts = 0 },
			wantErr: true,
		},
		{
			name:    "zero max backoff",
			modify:  func(c *Config) { c.Reconnect.MaxBackoff = 0 },
			wantErr: true,
		},
		{
			name:    "empty api address",
			modify:  func(c *Config) { c.API.Address = "" },
			wantErr: true,
		},
		{
			name:    "empty state path",
			modify:  func(c *Config) { c.StatePath = "" },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.LogLevel = "invalid" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWriteDefault_CreatesFile(t *testing.T) {
	// Use a temp dir as fake home to avoid touching real config
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	path, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	expectedPath := filepath.Join(tmpHome, ".config", "ledctl", "config.yaml")
	if path != expectedPath {
		t.Errorf("WriteDefault() path = %q, want %q", path, expectedPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written config: %v", err)
	}
	if !strings.HasPrefix(string(data), "# ledctl") {
		t.Error("written config should start with header comment")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config is not valid YAML: %v", err)
	}
	if cfg.Timeouts.Operation != 10*time.Second {
		t.Errorf("written config Timeouts.Operation = %v, want 10s", cfg.Timeouts.Operation)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("written config does not validate: %v", err)
	}
}

func TestWriteDefault_NoOpIfExists(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	configDir := filepath.Join(tmpHome, ".config", "ledctl")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	existingContent := []byte("device: AA:BB:CC:DD:EE:FF\n")
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, existingContent, 0644); err != nil {
		t.Fatalf("failed to write existing config: %v", err)
	}

	path, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if path != "" {
		t.Errorf("WriteDefault() path = %q, want empty string for existing file", path)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	if string(data) != string(existingContent) {
		t.Error("WriteDefault() should not overwrite existing config file")
	}
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/radio-control/rhal/internal/phy"
)

// Backend names accepted by Radio.Backend.
const (
	BackendSimulated = "simulated"
	BackendUART      = "uart"
)

// Config is the complete daemon configuration.
type Config struct {
	Radio     RadioConfig     `yaml:"radio"`
	UART      UARTConfig      `yaml:"uart"`
	API       APIConfig       `yaml:"api"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// RadioConfig holds the radio bring-up settings.
type RadioConfig struct {
	Backend string `yaml:"backend"`

	// Channel and PowerDbm are the defaults loaded into the transmit
	// buffer at startup.
	Channel  uint8 `yaml:"channel"`
	PowerDbm int8  `yaml:"powerDbm"`

	// Address filter applied after enable. ExtAddress is 16 hex digits.
	PanID        uint16 `yaml:"panId"`
	ShortAddress uint16 `yaml:"shortAddress"`
	ExtAddress   string `yaml:"extAddress"`
}

// UARTConfig holds the serial link settings for the uart backend.
type UARTConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

// APIConfig holds the diagnostics HTTP server settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`

	// AuthSecret is the HS256 key for bearer tokens on control routes.
	// Empty disables authentication (development only).
	AuthSecret string `yaml:"authSecret"`
}

// TelemetryConfig holds event hub settings.
type TelemetryConfig struct {
	BufferSize        int           `yaml:"bufferSize"`
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
	SinkDepth         int           `yaml:"sinkDepth"`
}

// LogConfig holds audit log rotation settings.
type LogConfig struct {
	Dir        string `yaml:"dir"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// Default returns the built-in configuration baseline.
func Default() *Config {
	return &Config{
		Radio: RadioConfig{
			Backend:  BackendSimulated,
			Channel:  11,
			PowerDbm: 0,
			PanID:    0xFFFF,
		},
		UART: UARTConfig{
			Device: "/dev/ttyACM0",
			Baud:   115200,
		},
		API: APIConfig{
			Enabled: true,
			Addr:    ":8640",
		},
		Telemetry: TelemetryConfig{
			BufferSize:        50,
			HeartbeatInterval: 15 * time.Second,
			SinkDepth:         16,
		},
		Log: LogConfig{
			Dir:        "logs",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load merges defaults, the optional YAML file at path (or RHAL_CONFIG
// when path is empty), and environment overrides, then validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("RHAL_CONFIG")
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays YAML values onto cfg.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides applies RHAL_* environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RHAL_RADIO_BACKEND"); v != "" {
		cfg.Radio.Backend = v
	}
	if v := os.Getenv("RHAL_RADIO_CHANNEL"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 8); err == nil {
			cfg.Radio.Channel = uint8(n)
		}
	}
	if v := os.Getenv("RHAL_RADIO_POWER_DBM"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 8); err == nil {
			cfg.Radio.PowerDbm = int8(n)
		}
	}
	if v := os.Getenv("RHAL_RADIO_PAN_ID"); v != "" {
		if n, err := strconv.ParseUint(v, 0, 16); err == nil {
			cfg.Radio.PanID = uint16(n)
		}
	}
	if v := os.Getenv("RHAL_RADIO_SHORT_ADDRESS"); v != "" {
		if n, err := strconv.ParseUint(v, 0, 16); err == nil {
			cfg.Radio.ShortAddress = uint16(n)
		}
	}
	if v := os.Getenv("RHAL_RADIO_EXT_ADDRESS"); v != "" {
		cfg.Radio.ExtAddress = v
	}
	if v := os.Getenv("RHAL_UART_DEVICE"); v != "" {
		cfg.UART.Device = v
	}
	if v := os.Getenv("RHAL_UART_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.UART.Baud = n
		}
	}
	if v := os.Getenv("RHAL_API_ADDR"); v != "" {
		cfg.API.Addr = v
	}
	if v := os.Getenv("RHAL_API_AUTH_SECRET"); v != "" {
		cfg.API.AuthSecret = v
	}
	if v := os.Getenv("RHAL_TELEMETRY_HEARTBEAT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Telemetry.HeartbeatInterval = d
		}
	}
	if v := os.Getenv("RHAL_LOG_DIR"); v != "" {
		cfg.Log.Dir = v
	}
}

// Validate checks cross-field consistency and protocol ranges.
func Validate(cfg *Config) error {
	switch cfg.Radio.Backend {
	case BackendSimulated, BackendUART:
	default:
		return fmt.Errorf("unknown radio backend %q", cfg.Radio.Backend)
	}

	if !phy.Channel(cfg.Radio.Channel).Valid() {
		return fmt.Errorf("radio channel %d outside [%d, %d]",
			cfg.Radio.Channel, phy.MinChannel, phy.MaxChannel)
	}

	if cfg.Radio.ExtAddress != "" {
		if _, err := phy.ParseExtAddress(cfg.Radio.ExtAddress); err != nil {
			return err
		}
	}

	if cfg.Radio.Backend == BackendUART {
		if cfg.UART.Device == "" {
			return fmt.Errorf("uart backend requires a device")
		}
		if cfg.UART.Baud <= 0 {
			return fmt.Errorf("uart baud rate %d must be positive", cfg.UART.Baud)
		}
	}

	if cfg.Telemetry.BufferSize < 1 {
		return fmt.Errorf("telemetry buffer size %d must be at least 1", cfg.Telemetry.BufferSize)
	}
	if cfg.Telemetry.SinkDepth < 1 {
		return fmt.Errorf("telemetry sink depth %d must be at least 1", cfg.Telemetry.SinkDepth)
	}

	if cfg.API.Enabled && cfg.API.Addr == "" {
		return fmt.Errorf("api enabled without an address")
	}

	return nil
}

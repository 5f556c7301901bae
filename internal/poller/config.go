package poller

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Mode selects where frames come from.
type Mode string

const (
	ModeFake   Mode = "fake"
	ModeSerial Mode = "serial"
)

const (
	DefaultFakeFrameValue = 42
	DefaultBaudrate       = 9600
	DefaultSerialTimeout  = time.Second
	DefaultMaxFrames      = 5
)

// Config is the poller configuration surface.
type Config struct {
	Mode Mode `yaml:"mode" toml:"mode"`

	// PollingEnabled defaults to true when nil.
	PollingEnabled *bool `yaml:"polling_enabled" toml:"polling_enabled"`

	FakeFrameValue int `yaml:"fake_frame_value" toml:"fake_frame_value"`

	SerialPort     string        `yaml:"serial_port" toml:"serial_port"`
	SerialBaudrate int           `yaml:"serial_baudrate" toml:"serial_baudrate"`
	SerialTimeout  time.Duration `yaml:"serial_timeout" toml:"serial_timeout"`

	// MaxFrames bounds PollForever; nil means poll until the context ends.
	MaxFrames *int `yaml:"max_frames" toml:"max_frames"`
}

// DefaultConfig returns a config for mode with every default applied.
func DefaultConfig(mode Mode) Config {
	enabled := true
	maxFrames := DefaultMaxFrames
	return Config{
		Mode:           mode,
		PollingEnabled: &enabled,
		FakeFrameValue: DefaultFakeFrameValue,
		SerialBaudrate: DefaultBaudrate,
		SerialTimeout:  DefaultSerialTimeout,
		MaxFrames:      &maxFrames,
	}
}

// Enabled reports the polling flag, true when unset.
func (c Config) Enabled() bool {
	return c.PollingEnabled == nil || *c.PollingEnabled
}

// Validate checks the config. A missing serial port is not an error here:
// it is reported on each read attempt instead.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeFake, ModeSerial:
	default:
		return fmt.Errorf("poller: unknown mode %q", c.Mode)
	}
	if c.SerialBaudrate < 0 {
		return fmt.Errorf("poller: serial baudrate must be positive, got %d", c.SerialBaudrate)
	}
	if c.SerialTimeout < 0 {
		return fmt.Errorf("poller: serial timeout must be positive, got %s", c.SerialTimeout)
	}
	if c.MaxFrames != nil && *c.MaxFrames < 0 {
		return fmt.Errorf("poller: max frames cannot be negative, got %d", *c.MaxFrames)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Mode == "" {
		c.Mode = ModeFake
	}
	if c.SerialBaudrate == 0 {
		c.SerialBaudrate = DefaultBaudrate
	}
	if c.SerialTimeout == 0 {
		c.SerialTimeout = DefaultSerialTimeout
	}
	return c
}

// ConfigFromMap translates the legacy flat mapping
// (USE_FAKE_FRAMES, FAKE_FRAME_VALUE, POLLING_ENABLED, SERIAL_PORT,
// SERIAL_BAUDRATE, SERIAL_TIMEOUT in seconds, MAX_FRAMES) into a Config.
// Absent keys keep their defaults.
func ConfigFromMap(m map[string]any) (Config, error) {
	cfg := DefaultConfig(ModeFake)

	if v, ok := m["USE_FAKE_FRAMES"]; ok {
		useFake, err := toBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("USE_FAKE_FRAMES: %w", err)
		}
		if !useFake {
			cfg.Mode = ModeSerial
		}
	}

	if v, ok := m["POLLING_ENABLED"]; ok {
		enabled, err := toBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("POLLING_ENABLED: %w", err)
		}
		cfg.PollingEnabled = &enabled
	}

	if v, ok := m["FAKE_FRAME_VALUE"]; ok {
		n, err := toInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("FAKE_FRAME_VALUE: %w", err)
		}
		cfg.FakeFrameValue = n
	}

	if v, ok := m["SERIAL_PORT"]; ok && v != nil {
		cfg.SerialPort = fmt.Sprint(v)
	}

	if v, ok := m["SERIAL_BAUDRATE"]; ok {
		n, err := toInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("SERIAL_BAUDRATE: %w", err)
		}
		cfg.SerialBaudrate = n
	}

	if v, ok := m["SERIAL_TIMEOUT"]; ok {
		secs, err := toFloat(v)
		if err != nil {
			return Config{}, fmt.Errorf("SERIAL_TIMEOUT: %w", err)
		}
		cfg.SerialTimeout = time.Duration(secs * float64(time.Second))
	}

	if v, ok := m["MAX_FRAMES"]; ok {
		if v == nil {
			cfg.MaxFrames = nil
		} else {
			n, err := toInt(v)
			if err != nil {
				return Config{}, fmt.Errorf("MAX_FRAMES: %w", err)
			}
			cfg.MaxFrames = &n
		}
	}

	return cfg, cfg.Validate()
}

func toBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case int:
		return t != 0, nil
	case int64:
		return t != 0, nil
	case float64:
		return t != 0, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(t))
	}
	return false, fmt.Errorf("cannot use %T as bool", v)
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(t))
	}
	return 0, fmt.Errorf("cannot use %T as int", v)
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	}
	return 0, fmt.Errorf("cannot use %T as number", v)
}

package poller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(ModeSerial)

	assert.Equal(t, ModeSerial, cfg.Mode)
	assert.True(t, cfg.Enabled())
	assert.Equal(t, 42, cfg.FakeFrameValue)
	assert.Equal(t, 9600, cfg.SerialBaudrate)
	assert.Equal(t, time.Second, cfg.SerialTimeout)
	require.NotNil(t, cfg.MaxFrames)
	assert.Equal(t, 5, *cfg.MaxFrames)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	negative := -1
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "serial without port is allowed", mutate: func(c *Config) { c.Mode = ModeSerial }},
		{name: "unknown mode", mutate: func(c *Config) { c.Mode = "usb" }, wantErr: true},
		{name: "negative baudrate", mutate: func(c *Config) { c.SerialBaudrate = -9600 }, wantErr: true},
		{name: "negative timeout", mutate: func(c *Config) { c.SerialTimeout = -time.Second }, wantErr: true},
		{name: "negative max frames", mutate: func(c *Config) { c.MaxFrames = &negative }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(ModeFake)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigFromMap(t *testing.T) {
	cfg, err := ConfigFromMap(map[string]any{
		"USE_FAKE_FRAMES": false,
		"POLLING_ENABLED": "true",
		"SERIAL_PORT":     "/dev/ttyUSB0",
		"SERIAL_BAUDRATE": 19200,
		"SERIAL_TIMEOUT":  2.5,
		"MAX_FRAMES":      float64(3),
	})
	require.NoError(t, err)

	assert.Equal(t, ModeSerial, cfg.Mode)
	assert.True(t, cfg.Enabled())
	assert.Equal(t, "/dev/ttyUSB0", cfg.SerialPort)
	assert.Equal(t, 19200, cfg.SerialBaudrate)
	assert.Equal(t, 2500*time.Millisecond, cfg.SerialTimeout)
	assert.Equal(t, 3, *cfg.MaxFrames)
	assert.Equal(t, 42, cfg.FakeFrameValue)
}

func TestConfigFromMap_Defaults(t *testing.T) {
	cfg, err := ConfigFromMap(map[string]any{})
	require.NoError(t, err)

	assert.Equal(t, ModeFake, cfg.Mode)
	assert.True(t, cfg.Enabled())
	assert.Equal(t, DefaultConfig(ModeFake), cfg)
}

func TestConfigFromMap_FakeAndUnbounded(t *testing.T) {
	cfg, err := ConfigFromMap(map[string]any{
		"USE_FAKE_FRAMES":  1,
		"FAKE_FRAME_VALUE": "99",
		"POLLING_ENABLED":  false,
		"MAX_FRAMES":       nil,
	})
	require.NoError(t, err)

	assert.Equal(t, ModeFake, cfg.Mode)
	assert.Equal(t, 99, cfg.FakeFrameValue)
	assert.False(t, cfg.Enabled())
	assert.Nil(t, cfg.MaxFrames)
}

func TestConfigFromMap_BadValues(t *testing.T) {
	tests := []map[string]any{
		{"USE_FAKE_FRAMES": "maybe"},
		{"FAKE_FRAME_VALUE": []int{1}},
		{"SERIAL_TIMEOUT": "soon"},
		{"MAX_FRAMES": -2},
	}

	for _, m := range tests {
		_, err := ConfigFromMap(m)
		assert.Error(t, err, "%v", m)
	}
}

func TestConfig_YAML(t *testing.T) {
	doc := `
mode: serial
polling_enabled: false
serial_port: /dev/ttyUSB1
serial_timeout: 750ms
max_frames: 12
`
	cfg := DefaultConfig(ModeFake)
	require.NoError(t, yaml.Unmarshal([]byte(doc), &cfg))

	assert.Equal(t, ModeSerial, cfg.Mode)
	assert.False(t, cfg.Enabled())
	assert.Equal(t, "/dev/ttyUSB1", cfg.SerialPort)
	assert.Equal(t, 750*time.Millisecond, cfg.SerialTimeout)
	assert.Equal(t, 9600, cfg.SerialBaudrate)
	assert.Equal(t, 12, *cfg.MaxFrames)
}

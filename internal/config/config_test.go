package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-mindclick/internal/retry"
	"github.com/teslashibe/go-mindclick/pkg/voice"
)

func TestDefault_ReferenceConstants(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 115200, cfg.Headset.Baud)
	assert.Equal(t, 10*time.Second, cfg.Calibration.Duration)
	assert.Equal(t, 100*time.Millisecond, cfg.Calibration.PollInterval)
	assert.Equal(t, 20.0, cfg.Calibration.Margin)
	assert.Equal(t, 50*time.Millisecond, cfg.Trigger.PollInterval)
	assert.Equal(t, 750*time.Millisecond, cfg.Trigger.Cooldown)
	assert.Equal(t, "CLICK", cfg.Actuator.Command)
	assert.Equal(t, voice.CalibrateFirst, cfg.Voice.TieBreak)
	assert.True(t, cfg.SharedPort())
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	for _, key := range []string{EnvHeadsetPort, EnvActuatorPort, EnvBaud, EnvCalibrationSecond, EnvSpeechBackend} {
		t.Setenv(key, "")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "mindclick.yaml")
	data := `
headset:
  device: /dev/ttyACM0
  baud: 57600
actuator:
  device: /dev/ttyACM1
trigger:
  cooldown: 1s
voice:
  backend: console
  tie_break: stop-first
  backoff:
    mode: exponential
    initial: 250ms
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyACM0", cfg.Headset.Device)
	assert.Equal(t, 57600, cfg.Headset.Baud)
	assert.Equal(t, time.Second, cfg.Headset.ReadTimeout, "unset fields keep defaults")
	assert.Equal(t, "/dev/ttyACM1", cfg.Actuator.Device)
	assert.False(t, cfg.SharedPort())
	assert.Equal(t, time.Second, cfg.Trigger.Cooldown)
	assert.Equal(t, voice.StopFirst, cfg.Voice.TieBreak)
	assert.Equal(t, retry.Exponential, cfg.Voice.Backoff.Policy().Mode)
	assert.Equal(t, 250*time.Millisecond, cfg.Voice.Backoff.Policy().Initial)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingExplicitPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvActuatorPort, "")
	t.Setenv(EnvHeadsetPort, "COM5")
	t.Setenv(EnvBaud, "9600")
	t.Setenv(EnvCalibrationSecond, "3")
	t.Setenv(EnvGoogleAPIKey, "key")

	cfg := Default()
	cfg.ApplyEnv()

	assert.Equal(t, "COM5", cfg.Headset.Device)
	assert.Equal(t, 9600, cfg.Headset.Baud)
	assert.Equal(t, 9600, cfg.Actuator.Baud)
	assert.True(t, cfg.SharedPort(), "actuator follows the headset device")
	assert.Equal(t, "COM5", cfg.ActuatorLink().Device)
	assert.Equal(t, 3*time.Second, cfg.Calibration.Duration)
	assert.Equal(t, "key", cfg.Voice.GoogleAPIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"cooldown not above poll", func(c *Config) { c.Trigger.Cooldown = c.Trigger.PollInterval }, "trigger.cooldown"},
		{"bad tie break", func(c *Config) { c.Voice.TieBreak = "random" }, "voice.tie_break"},
		{"google without credentials", func(c *Config) { c.Voice.Backend = SpeechGoogle }, "voice.google_api_key"},
		{"unknown backend", func(c *Config) { c.Voice.Backend = "whisper" }, "voice.backend"},
		{"no read timeout", func(c *Config) { c.Headset.ReadTimeout = 0 }, "headset.read_timeout"},
		{"empty command", func(c *Config) { c.Actuator.Command = "" }, "actuator.command"},
		{"shared device at another baud", func(c *Config) {
			c.Actuator.Device = c.Headset.Device
			c.Actuator.Baud = 9600
		}, "actuator.baud"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Voice.Backend = SpeechConsole
			tt.mutate(&cfg)

			err := cfg.Validate()
			var cerr *Error
			require.True(t, errors.As(err, &cerr), "want *config.Error, got %v", err)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestLoad_ActuatorSharesHeadsetLink(t *testing.T) {
	for _, key := range []string{EnvActuatorPort, EnvBaud, EnvSpeechBackend} {
		t.Setenv(key, "")
	}
	t.Setenv(EnvHeadsetPort, "/dev/ttyACM0")

	path := filepath.Join(t.TempDir(), "mindclick.yaml")
	require.NoError(t, os.WriteFile(path, []byte("headset:\n  baud: 57600\nvoice:\n  backend: console\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyACM0", cfg.Actuator.Device)
	assert.Equal(t, 57600, cfg.Actuator.Baud)
	assert.True(t, cfg.SharedPort())
	require.NoError(t, cfg.Validate())
}

func TestApplyEnv_SeparateActuator(t *testing.T) {
	t.Setenv(EnvHeadsetPort, "")
	t.Setenv(EnvBaud, "")
	t.Setenv(EnvActuatorPort, "/dev/ttyACM1")

	cfg := Default()
	cfg.ApplyEnv()

	assert.False(t, cfg.SharedPort())
	assert.Equal(t, "/dev/ttyACM1", cfg.ActuatorLink().Device)
	assert.Equal(t, DefaultBaud, cfg.ActuatorLink().Baud)

	cfg.Voice.Backend = SpeechConsole
	require.NoError(t, cfg.Validate())
}

// Package config loads mindclick configuration.
//
// Values are resolved in order: built-in defaults, the YAML file, .env and
// the process environment, then command-line flags (applied by cmd/mindclick).
// The result is immutable for the lifetime of the process.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-mindclick/internal/retry"
	"github.com/teslashibe/go-mindclick/pkg/audioio"
	"github.com/teslashibe/go-mindclick/pkg/voice"
)

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = "mindclick.yaml"

// Reference constants of the control loop.
const (
	DefaultDevice              = "/dev/ttyUSB0"
	DefaultBaud                = 115200
	DefaultReadTimeout         = time.Second
	DefaultSettleDelay         = 2 * time.Second
	DefaultCalibrationDuration = 10 * time.Second
	DefaultCalibrationPoll     = 100 * time.Millisecond
	DefaultMargin              = 20.0
	DefaultTriggerPoll         = 50 * time.Millisecond
	DefaultCooldown            = 750 * time.Millisecond
	DefaultCommand             = "CLICK"
)

// Speech backends.
const (
	SpeechGoogle  = "google"
	SpeechConsole = "console"
	SpeechNone    = "none"
)

// Config holds all configuration for mindclick.
type Config struct {
	LogLevel    string            `yaml:"log_level"`
	Headset     HeadsetConfig     `yaml:"headset"`
	Actuator    ActuatorConfig    `yaml:"actuator"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Trigger     TriggerConfig     `yaml:"trigger"`
	Voice       VoiceConfig       `yaml:"voice"`
	Audio       audioio.Config    `yaml:"audio"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
	Events      EventsConfig      `yaml:"events"`
}

// SerialConfig describes one serial link.
type SerialConfig struct {
	Device      string        `yaml:"device"`
	Baud        int           `yaml:"baud"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// HeadsetConfig is the telemetry input link.
type HeadsetConfig struct {
	SerialConfig `yaml:",inline"`
	Reconnect    BackoffConfig `yaml:"reconnect"`
}

// ActuatorConfig is the command output link. An empty Device shares the
// headset link, serial settings included.
type ActuatorConfig struct {
	SerialConfig `yaml:",inline"`
	Command      string `yaml:"command"`
}

// CalibrationConfig controls the threshold calibrator.
type CalibrationConfig struct {
	Duration     time.Duration `yaml:"duration"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Margin       float64       `yaml:"margin"`
	// StartupWait bounds how long the initial calibration waits for the first sample.
	StartupWait time.Duration `yaml:"startup_wait"`
}

// TriggerConfig controls the trigger engine.
type TriggerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Cooldown     time.Duration `yaml:"cooldown"`
}

// VoiceConfig controls speech capture and the command dispatcher.
type VoiceConfig struct {
	Backend         string         `yaml:"backend"`
	Language        string         `yaml:"language"`
	TieBreak        voice.TieBreak `yaml:"tie_break"`
	CalibrateWords  []string       `yaml:"calibrate_words"`
	StopWords       []string       `yaml:"stop_words"`
	ListenTimeout   time.Duration  `yaml:"listen_timeout"`
	AmbientDuration time.Duration  `yaml:"ambient_duration"`
	PhraseLimit     time.Duration  `yaml:"phrase_limit"`
	Backoff         BackoffConfig  `yaml:"backoff"`

	GoogleAPIKey          string `yaml:"google_api_key"`
	GoogleCredentialsFile string `yaml:"google_credentials_file"`
}

// BackoffConfig is the YAML form of a retry.Policy.
type BackoffConfig struct {
	Mode       retry.Mode    `yaml:"mode"`
	Initial    time.Duration `yaml:"initial"`
	Max        time.Duration `yaml:"max"`
	MaxRetries int           `yaml:"max_retries"`
}

// Policy converts the config into a retry.Policy.
func (b BackoffConfig) Policy() retry.Policy {
	return retry.NewPolicy(b.Mode, b.Initial, b.Max, b.MaxRetries)
}

// DashboardConfig enables the status API. Empty Addr disables it.
type DashboardConfig struct {
	Addr string `yaml:"addr"`
}

// EventsConfig controls event export.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// Default returns the reference configuration.
func Default() Config {
	audio := audioio.DefaultConfig()
	audio.SampleRate = 16000

	return Config{
		LogLevel: "warn", // status lines go to the console sink
		Headset: HeadsetConfig{
			SerialConfig: SerialConfig{
				Device:      DefaultDevice,
				Baud:        DefaultBaud,
				ReadTimeout: DefaultReadTimeout,
				SettleDelay: DefaultSettleDelay,
			},
			Reconnect: BackoffConfig{Mode: retry.Exponential, Initial: 500 * time.Millisecond, Max: 10 * time.Second, MaxRetries: 5},
		},
		Actuator: ActuatorConfig{
			SerialConfig: SerialConfig{
				Baud:        DefaultBaud,
				ReadTimeout: DefaultReadTimeout,
				SettleDelay: DefaultSettleDelay,
			},
			Command: DefaultCommand,
		},
		Calibration: CalibrationConfig{
			Duration:     DefaultCalibrationDuration,
			PollInterval: DefaultCalibrationPoll,
			Margin:       DefaultMargin,
			StartupWait:  5 * time.Second,
		},
		Trigger: TriggerConfig{
			PollInterval: DefaultTriggerPoll,
			Cooldown:     DefaultCooldown,
		},
		Voice: VoiceConfig{
			Backend:         SpeechGoogle,
			Language:        "en-US",
			TieBreak:        voice.CalibrateFirst,
			CalibrateWords:  []string{"calibrate"},
			StopWords:       []string{"stop"},
			ListenTimeout:   15 * time.Second,
			AmbientDuration: time.Second,
			PhraseLimit:     10 * time.Second,
			Backoff:         BackoffConfig{Mode: retry.Linear, Initial: time.Second, Max: 30 * time.Second},
		},
		Audio: audio,
		Events: EventsConfig{
			Subject: "mindclick.events",
		},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// .env and environment overrides. A missing DefaultPath is not an error;
// a missing explicit path is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && path == DefaultPath:
		// defaults only
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	LoadDotEnv()
	cfg.ApplyEnv()
	if cfg.Actuator.Device == "" {
		cfg.Actuator.SerialConfig = cfg.Headset.SerialConfig
	}

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Headset.Device == "" {
		return &Error{Field: "headset.device", Message: "headset serial device is required"}
	}
	act := c.ActuatorLink()
	if c.Headset.Baud <= 0 || act.Baud <= 0 {
		return &Error{Field: "baud", Message: "baud rate must be positive"}
	}
	if c.SharedPort() && act.Baud != c.Headset.Baud {
		return &Error{Field: "actuator.baud", Message: fmt.Sprintf("actuator shares %s with the headset but asks for %d baud instead of %d", c.Headset.Device, act.Baud, c.Headset.Baud)}
	}
	if c.Headset.ReadTimeout <= 0 {
		return &Error{Field: "headset.read_timeout", Message: "read timeout must be positive so shutdown latency stays bounded"}
	}
	if c.Actuator.Command == "" {
		return &Error{Field: "actuator.command", Message: "actuator command token is required"}
	}
	if c.Calibration.Duration <= 0 || c.Calibration.PollInterval <= 0 {
		return &Error{Field: "calibration", Message: "calibration duration and poll interval must be positive"}
	}
	if c.Trigger.PollInterval <= 0 {
		return &Error{Field: "trigger.poll_interval", Message: "trigger poll interval must be positive"}
	}
	if c.Trigger.Cooldown <= c.Trigger.PollInterval {
		return &Error{Field: "trigger.cooldown", Message: fmt.Sprintf("cooldown (%v) must be greater than the poll interval (%v)", c.Trigger.Cooldown, c.Trigger.PollInterval)}
	}
	if _, err := voice.ParseTieBreak(string(c.Voice.TieBreak)); err != nil {
		return &Error{Field: "voice.tie_break", Message: "tie_break must be calibrate-first or stop-first"}
	}
	switch c.Voice.Backend {
	case SpeechGoogle:
		if c.Voice.GoogleAPIKey == "" && c.Voice.GoogleCredentialsFile == "" {
			return &Error{Field: "voice.google_api_key", Message: "GOOGLE_API_KEY or GOOGLE_APPLICATION_CREDENTIALS is required for the google speech backend"}
		}
		if err := c.Audio.Validate(); err != nil {
			return &Error{Field: "audio", Message: err.Error()}
		}
	case SpeechConsole, SpeechNone:
	default:
		return &Error{Field: "voice.backend", Message: "unknown speech backend: " + c.Voice.Backend}
	}
	if c.Voice.ListenTimeout <= 0 {
		return &Error{Field: "voice.listen_timeout", Message: "listen timeout must be positive"}
	}
	if len(c.Voice.CalibrateWords) == 0 || len(c.Voice.StopWords) == 0 {
		return &Error{Field: "voice", Message: "calibrate_words and stop_words must not be empty"}
	}
	return nil
}

// SharedPort reports whether headset and actuator use the same serial device.
func (c *Config) SharedPort() bool {
	return c.Actuator.Device == "" || c.Headset.Device == c.Actuator.Device
}

// ActuatorLink returns the serial settings the actuator is driven with.
func (c *Config) ActuatorLink() SerialConfig {
	if c.Actuator.Device == "" {
		return c.Headset.SerialConfig
	}
	return c.Actuator.SerialConfig
}

// Error represents a configuration validation error.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Field + ": " + e.Message
}

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables recognized by ApplyEnv.
const (
	EnvHeadsetPort       = "MINDCLICK_HEADSET_PORT"
	EnvActuatorPort      = "MINDCLICK_ACTUATOR_PORT"
	EnvBaud              = "MINDCLICK_BAUD"
	EnvCalibrationSecond = "MINDCLICK_CALIBRATION_SECONDS"
	EnvSpeechBackend     = "MINDCLICK_SPEECH"
	EnvDashboardAddr     = "MINDCLICK_DASHBOARD_ADDR"
	EnvGoogleAPIKey      = "GOOGLE_API_KEY"
	EnvGoogleCredentials = "GOOGLE_APPLICATION_CREDENTIALS"
	EnvNATSURL           = "NATS_URL"
	EnvLogLevel          = "LOG_LEVEL"
)

// LoadDotEnv loads .env and .env.local if present.
// Existing process environment variables are not overwritten.
func LoadDotEnv() {
	for _, name := range []string{".env", ".env.local"} {
		if _, err := os.Stat(name); err == nil {
			_ = godotenv.Load(name)
		}
	}
}

// ApplyEnv overrides configuration values from environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvHeadsetPort); v != "" {
		c.Headset.Device = v
	}
	if v := os.Getenv(EnvActuatorPort); v != "" {
		c.Actuator.Device = v
	}
	if baud, ok := envInt(EnvBaud); ok {
		c.Headset.Baud = baud
		c.Actuator.Baud = baud
	}
	if secs, ok := envInt(EnvCalibrationSecond); ok {
		c.Calibration.Duration = time.Duration(secs) * time.Second
	}
	if v := os.Getenv(EnvSpeechBackend); v != "" {
		c.Voice.Backend = v
	}
	if v := os.Getenv(EnvDashboardAddr); v != "" {
		c.Dashboard.Addr = v
	}
	if v := os.Getenv(EnvGoogleAPIKey); v != "" {
		c.Voice.GoogleAPIKey = v
	}
	if v := os.Getenv(EnvGoogleCredentials); v != "" {
		c.Voice.GoogleCredentialsFile = v
	}
	if v := os.Getenv(EnvNATSURL); v != "" {
		c.Events.NATSURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Package audioio captures microphone audio for speech recognition.
//
// Backends:
//   - ALSA (Linux) - records through arecord as raw S16_LE PCM
//   - Mock - synthetic tone/silence patterns for tests and dry runs
//
// The backend is selected by platform or set explicitly in the configuration.
package audioio

import (
	"fmt"
	"time"
)

// Backend names a capture backend.
type Backend string

const (
	// BackendAuto picks the best backend for the platform.
	BackendAuto Backend = "auto"
	// BackendALSA records from a Linux ALSA device.
	BackendALSA Backend = "alsa"
	// BackendMock generates audio in-process.
	BackendMock Backend = "mock"
)

// Config holds capture configuration.
type Config struct {
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate in Hz. Speech recognizers want 16000.
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels captured from the device. Audio is downmixed to mono before
	// recognition.
	Channels int `yaml:"channels" json:"channels"`

	// FrameDuration is the length of one chunk and the VAD frame size.
	FrameDuration time.Duration `yaml:"frame_duration" json:"frame_duration"`

	// Device is the ALSA device, e.g. "default" or "plughw:1,0".
	Device string `yaml:"device" json:"device"`
}

// DefaultConfig returns 16 kHz mono in 20 ms frames on the default device.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendAuto,
		SampleRate:    16000,
		Channels:      1,
		FrameDuration: 20 * time.Millisecond,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.FrameDuration <= 0 {
		return fmt.Errorf("frame_duration must be positive, got %v", c.FrameDuration)
	}
	if c.FrameSamples() == 0 {
		return fmt.Errorf("frame_duration %v is shorter than one sample", c.FrameDuration)
	}
	return nil
}

// FrameSamples returns the number of samples per channel in one frame.
func (c *Config) FrameSamples() int {
	return int(float64(c.SampleRate) * c.FrameDuration.Seconds())
}

// FrameBytes returns the size of one interleaved S16 frame in bytes.
func (c *Config) FrameBytes() int {
	return c.FrameSamples() * c.Channels * 2
}

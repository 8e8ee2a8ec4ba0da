package audioio

import (
	"context"
	"io"
	"time"
)

// Chunk is one frame of interleaved PCM16 audio.
type Chunk struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Duration returns the playing time of the chunk.
func (c Chunk) Duration() time.Duration {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate*c.Channels)
}

// Mono returns the chunk downmixed to one channel.
func (c Chunk) Mono() Chunk {
	if c.Channels <= 1 {
		return c
	}
	return Chunk{Samples: Downmix(c.Samples, c.Channels), SampleRate: c.SampleRate, Channels: 1}
}

// Level returns the RMS level of the chunk, 0..1 of full scale.
func (c Chunk) Level() float64 {
	return RMS(c.Samples)
}

// Source captures audio from a microphone or a generator.
type Source interface {
	// Start begins capture. Starting a running source is a no-op.
	Start(ctx context.Context) error

	// Read returns the next chunk, blocking until one is available.
	// It returns io.EOF once the source is stopped.
	Read(ctx context.Context) (Chunk, error)

	// Stop halts capture. It is safe to call more than once.
	Stop() error

	// Config returns the capture configuration.
	Config() Config

	// Name returns the backend name.
	Name() string

	io.Closer
}

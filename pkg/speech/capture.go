package speech

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-mindclick/internal/log"
	"github.com/teslashibe/go-mindclick/pkg/audioio"
)

// CaptureOptions tunes phrase segmentation.
type CaptureOptions struct {
	// AmbientDuration is sampled before each phrase to set the noise floor.
	// Zero skips the adjustment.
	AmbientDuration time.Duration
	// PhraseLimit caps a phrase. Zero means no cap.
	PhraseLimit time.Duration
	// Pause is the trailing silence that ends a phrase.
	Pause time.Duration
	// PreRoll is kept from before speech onset so the first syllable is not cut.
	PreRoll time.Duration
}

// DefaultCaptureOptions mirrors common recognizer settings.
func DefaultCaptureOptions() CaptureOptions {
	return CaptureOptions{
		AmbientDuration: time.Second,
		PhraseLimit:     10 * time.Second,
		Pause:           800 * time.Millisecond,
		PreRoll:         200 * time.Millisecond,
	}
}

// Capturer cuts single phrases out of a continuous audio source.
type Capturer struct {
	src    audioio.Source
	opts   CaptureOptions
	frame  time.Duration
	vad    *VAD
	logger *slog.Logger

	started bool
}

// NewCapturer wraps src. The source is started on first use.
func NewCapturer(src audioio.Source, opts CaptureOptions, logger *slog.Logger) *Capturer {
	frame := src.Config().FrameDuration
	if frame <= 0 {
		frame = 20 * time.Millisecond
	}
	return &Capturer{
		src:    src,
		opts:   opts,
		frame:  frame,
		vad:    NewVAD(3, max(1, int(opts.Pause/frame))),
		logger: log.OrDefault(logger).With(log.Component("capture")),
	}
}

func (c *Capturer) start(ctx context.Context) error {
	if c.started {
		return nil
	}
	if err := c.src.Start(ctx); err != nil {
		return fmt.Errorf("start %s audio: %w", c.src.Name(), err)
	}
	c.started = true
	return nil
}

// AdjustForAmbientNoise measures the noise floor over d and sets the VAD levels.
func (c *Capturer) AdjustForAmbientNoise(ctx context.Context, d time.Duration) error {
	if err := c.start(ctx); err != nil {
		return err
	}
	var sum float64
	var n int
	for elapsed := time.Duration(0); elapsed < d; {
		chunk, err := c.src.Read(ctx)
		if err != nil {
			return err
		}
		sum += chunk.Mono().Level()
		n++
		elapsed += chunk.Duration()
	}
	if n > 0 {
		c.vad.AdjustForNoise(sum / float64(n))
	}
	speech, _ := c.vad.Levels()
	c.logger.Debug("ambient noise adjusted", "speech_level", speech, "frames", n)
	return nil
}

// Capture blocks until one phrase has been spoken and returns it as mono
// audio at the source sample rate.
func (c *Capturer) Capture(ctx context.Context) (audioio.Chunk, error) {
	if err := c.start(ctx); err != nil {
		return audioio.Chunk{}, err
	}
	if c.opts.AmbientDuration > 0 {
		if err := c.AdjustForAmbientNoise(ctx, c.opts.AmbientDuration); err != nil {
			return audioio.Chunk{}, err
		}
	}

	cfg := c.src.Config()
	preRollFrames := int(c.opts.PreRoll / c.frame)
	var preRoll [][]int16
	var phrase []int16
	var phraseLen time.Duration
	inPhrase := false
	c.vad.Reset()

	for {
		chunk, err := c.src.Read(ctx)
		if err != nil {
			return audioio.Chunk{}, err
		}
		mono := chunk.Mono()
		speaking := c.vad.IsSpeech(mono.Samples)

		if !inPhrase {
			if !speaking {
				preRoll = append(preRoll, mono.Samples)
				if len(preRoll) > preRollFrames {
					preRoll = preRoll[1:]
				}
				continue
			}
			inPhrase = true
			for _, f := range preRoll {
				phrase = append(phrase, f...)
			}
			preRoll = nil
		}

		phrase = append(phrase, mono.Samples...)
		phraseLen += mono.Duration()
		if !speaking || (c.opts.PhraseLimit > 0 && phraseLen >= c.opts.PhraseLimit) {
			return audioio.Chunk{Samples: phrase, SampleRate: cfg.SampleRate, Channels: 1}, nil
		}
	}
}

// Close stops the audio source.
func (c *Capturer) Close() error {
	return c.src.Close()
}

package speech

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/teslashibe/go-mindclick/internal/log"
	"github.com/teslashibe/go-mindclick/pkg/audioio"
)

// TargetRate is the rate phrases are resampled to before transcription.
const TargetRate = 16000

// MicListener captures phrases from a microphone and transcribes them.
type MicListener struct {
	capturer    *Capturer
	transcriber Transcriber
	logger      *slog.Logger
}

// NewMicListener combines a capturer and a transcriber.
func NewMicListener(c *Capturer, t Transcriber, logger *slog.Logger) *MicListener {
	return &MicListener{
		capturer:    c,
		transcriber: t,
		logger:      log.OrDefault(logger).With(log.Component("speech")),
	}
}

// Listen captures one phrase and returns its lowercase transcript.
func (m *MicListener) Listen(ctx context.Context) (string, error) {
	phrase, err := m.capturer.Capture(ctx)
	if err != nil {
		return "", fmt.Errorf("capture: %w", err)
	}

	samples := phrase.Samples
	if phrase.SampleRate > TargetRate {
		samples = audioio.Resample(samples, phrase.SampleRate, TargetRate)
	}
	rate := min(phrase.SampleRate, TargetRate)

	m.logger.Debug("phrase captured", log.Duration(phrase.Duration()), "samples", len(samples))
	text, err := m.transcriber.Transcribe(ctx, samples, rate)
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(text)), nil
}

// Close releases the microphone.
func (m *MicListener) Close() error {
	return m.capturer.Close()
}

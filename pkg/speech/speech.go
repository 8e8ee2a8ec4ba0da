// Package speech turns spoken utterances into lowercase transcripts.
//
// A Listener yields one utterance per Listen call. MicListener captures
// from the microphone and sends each phrase to a Transcriber;
// ConsoleListener reads typed commands; ScriptedListener replays a fixed
// sequence for tests and dry runs.
package speech

import (
	"context"
	"errors"
)

var (
	// ErrUnintelligible means audio was captured but nothing could be transcribed.
	ErrUnintelligible = errors.New("speech: could not understand audio")
	// ErrServiceUnreachable means the transcription service could not be reached
	// or rejected the request.
	ErrServiceUnreachable = errors.New("speech: transcription service unreachable")
	// ErrNoInput means the input is exhausted (e.g. stdin closed).
	ErrNoInput = errors.New("speech: no more input")
)

// Listener blocks until one utterance has been heard and returns its
// transcript in lowercase.
type Listener interface {
	Listen(ctx context.Context) (string, error)
}

// Transcriber converts mono PCM16 audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error)
}

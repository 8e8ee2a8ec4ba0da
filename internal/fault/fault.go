// Package fault classifies the operational errors of the control loops.
//
// Each loop reports failures as a *Fault carrying a Kind. The kind decides
// whether the failure stays local to the loop (logged, loop continues or ends
// quietly) or terminates the process.
package fault

import (
	"errors"
	"fmt"
)

// Kind is the category of a fault.
type Kind string

const (
	// TransportRead is a read error on the headset serial link.
	TransportRead Kind = "transport_read"
	// ParseSkip marks a telemetry line that is not an attention record.
	// It is expected noise, never logged as an error.
	ParseSkip Kind = "parse_skip"
	// CalibrationEmpty is a calibration window that collected no samples.
	CalibrationEmpty Kind = "calibration_empty"
	// SpeechUnintelligible is an utterance the recognizer could not transcribe.
	SpeechUnintelligible Kind = "speech_unintelligible"
	// SpeechUnreachable is a transcription service connectivity failure.
	SpeechUnreachable Kind = "speech_unreachable"
	// ActuatorWrite is a write error on the actuator serial link.
	ActuatorWrite Kind = "actuator_write"
)

// Fatal reports whether faults of this kind terminate the process.
// A broken actuator link makes clicking impossible, everything else is loop-local.
func (k Kind) Fatal() bool {
	return k == ActuatorWrite
}

// Fault is a classified error raised by one component.
type Fault struct {
	Kind      Kind
	Component string
	Op        string
	Err       error
}

// New creates a fault wrapping err.
func New(kind Kind, component, op string, err error) *Fault {
	return &Fault{Kind: kind, Component: component, Op: op, Err: err}
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s: %s", f.Component, f.Op, f.Kind)
	}
	return fmt.Sprintf("%s: %s: %s: %v", f.Component, f.Op, f.Kind, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// KindOf returns the kind of the first Fault in err's chain.
func KindOf(err error) (Kind, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return "", false
}

// IsFatal reports whether err carries a fatal fault kind.
func IsFatal(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind.Fatal()
}

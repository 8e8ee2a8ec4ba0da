package fault

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestFault_Unwrap(t *testing.T) {
	f := New(TransportRead, "headset", "read", io.ErrUnexpectedEOF)

	if !errors.Is(f, io.ErrUnexpectedEOF) {
		t.Error("fault should unwrap to its cause")
	}
	want := "headset: read: transport_read: unexpected EOF"
	if f.Error() != want {
		t.Errorf("Error() = %q, want %q", f.Error(), want)
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("trigger loop: %w", New(ActuatorWrite, "actuator", "send", io.ErrClosedPipe))

	kind, ok := KindOf(err)
	if !ok || kind != ActuatorWrite {
		t.Fatalf("KindOf = %q, %v; want actuator_write", kind, ok)
	}
	if !IsFatal(err) {
		t.Error("actuator write faults are fatal")
	}
}

func TestFatal_OnlyActuator(t *testing.T) {
	for _, k := range []Kind{TransportRead, ParseSkip, CalibrationEmpty, SpeechUnintelligible, SpeechUnreachable} {
		if k.Fatal() {
			t.Errorf("%s should be loop-local", k)
		}
	}
	if IsFatal(errors.New("plain")) {
		t.Error("plain errors are not fatal faults")
	}
}

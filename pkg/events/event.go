// Package events carries notable control-loop happenings to observers.
//
// Loops publish Events on a Bus; the Bus fans each event out to its sinks
// (log, console, websocket hub, NATS, an in-memory ring) without blocking
// the publisher. A slow sink loses events, the loops never wait for it.
package events

import (
	"sync"
	"time"
)

// Type names an event.
type Type string

const (
	Sample               Type = "sample"
	LinkUp               Type = "link_up"
	LinkDown             Type = "link_down"
	CalibrationStarted   Type = "calibration_started"
	CalibrationCompleted Type = "calibration_completed"
	CalibrationFailed    Type = "calibration_failed"
	Click                Type = "click"
	VoiceCommand         Type = "voice_command"
	VoiceError           Type = "voice_error"
	Fault                Type = "fault"
	Stopped              Type = "stopped"
)

// Event is one observation. Fields not relevant to the Type are left zero.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Time      time.Time `json:"time"`
	Session   string    `json:"session,omitempty"`
	Component string    `json:"component,omitempty"`

	Value      int     `json:"value"`
	Threshold  float64 `json:"threshold,omitempty"`
	Baseline   float64 `json:"baseline,omitempty"`
	Samples    int     `json:"samples,omitempty"`
	Command    string  `json:"command,omitempty"`
	Transcript string  `json:"transcript,omitempty"`
	Fault      string  `json:"fault,omitempty"`
	Message    string  `json:"message,omitempty"`
}

// Publisher accepts events. Publish must not block.
type Publisher interface {
	Publish(e Event)
}

// Discard is a Publisher that drops everything.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) {}

// OrDiscard returns p, or Discard when p is nil.
func OrDiscard(p Publisher) Publisher {
	if p == nil {
		return Discard
	}
	return p
}

// Recorder is a Publisher that keeps every event. Used in tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish stores e.
func (r *Recorder) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the stored events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the stored events of type t.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

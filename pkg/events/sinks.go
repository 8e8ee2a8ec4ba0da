package events

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-mindclick/internal/log"
)

// LogSink writes events to a structured logger. Samples go to debug,
// faults to warn, everything else to info.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink logging through logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: log.OrDefault(logger)}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Handle(e Event) error {
	attrs := []any{"type", string(e.Type)}
	if e.Component != "" {
		attrs = append(attrs, log.Component(e.Component))
	}
	switch e.Type {
	case Sample:
		attrs = append(attrs, log.Value(e.Value))
	case CalibrationCompleted:
		attrs = append(attrs, log.Baseline(e.Baseline), log.Threshold(e.Threshold), log.Samples(e.Samples))
	case Click:
		attrs = append(attrs, log.Value(e.Value), log.Threshold(e.Threshold))
	case VoiceCommand:
		attrs = append(attrs, log.Command(e.Command), "transcript", e.Transcript)
	}
	if e.Fault != "" {
		attrs = append(attrs, log.Fault(e.Fault))
	}
	if e.Message != "" {
		attrs = append(attrs, "message", e.Message)
	}

	switch e.Type {
	case Sample:
		s.logger.Debug("event", attrs...)
	case Fault, CalibrationFailed, LinkDown:
		s.logger.Warn("event", attrs...)
	default:
		s.logger.Info("event", attrs...)
	}
	return nil
}

// Broadcaster is satisfied by hub.Hub.
type Broadcaster interface {
	BroadcastJSON(v any) error
}

// BroadcastSink sends each event as JSON to a websocket hub.
type BroadcastSink struct {
	b Broadcaster
}

// NewBroadcastSink returns a sink broadcasting through b.
func NewBroadcastSink(b Broadcaster) *BroadcastSink {
	return &BroadcastSink{b: b}
}

func (s *BroadcastSink) Name() string { return "broadcast" }

func (s *BroadcastSink) Handle(e Event) error {
	return s.b.BroadcastJSON(e)
}

// Filter wraps a sink so that it only sees some event types.
type Filter struct {
	Sink
	types map[Type]bool
	keep  bool
}

// Only passes the listed types to s.
func Only(s Sink, types ...Type) *Filter {
	return newFilter(s, true, types)
}

// Except passes every type but the listed ones to s.
func Except(s Sink, types ...Type) *Filter {
	return newFilter(s, false, types)
}

func newFilter(s Sink, keep bool, types []Type) *Filter {
	f := &Filter{Sink: s, types: make(map[Type]bool, len(types)), keep: keep}
	for _, t := range types {
		f.types[t] = true
	}
	return f
}

func (f *Filter) Handle(e Event) error {
	if f.types[e.Type] != f.keep {
		return nil
	}
	return f.Sink.Handle(e)
}

// Ring keeps the most recent events in memory.
type Ring struct {
	mu   sync.Mutex
	buf  []Event
	next int
	full bool
}

// NewRing returns a ring holding up to size events.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = 100
	}
	return &Ring{buf: make([]Event, size)}
}

func (r *Ring) Name() string { return "ring" }

func (r *Ring) Handle(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = e
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
	return nil
}

// Snapshot returns the stored events, oldest first.
func (r *Ring) Snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]Event(nil), r.buf[:r.next]...)
	}
	out := make([]Event, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}

// MarshalJSON encodes the snapshot.
func (r *Ring) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Snapshot())
}

package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-mindclick/internal/log"
)

// DefaultBuffer is the per-sink queue length used by Attach.
const DefaultBuffer = 256

// Sink consumes events on its own goroutine.
type Sink interface {
	Name() string
	Handle(e Event) error
}

// Bus fans events out to sinks. It stamps ID, Time and Session on publish.
type Bus struct {
	session string
	now     func() time.Time
	logger  *slog.Logger

	mu      sync.RWMutex
	workers []*worker
	closed  bool
	wg      sync.WaitGroup
}

type worker struct {
	sink    Sink
	queue   chan Event
	dropped atomic.Uint64
}

// NewBus creates a bus for one session.
func NewBus(session string, logger *slog.Logger) *Bus {
	return &Bus{
		session: session,
		now:     time.Now,
		logger:  log.OrDefault(logger).With(log.Component("events")),
	}
}

// Session returns the session id stamped on events.
func (b *Bus) Session() string {
	return b.session
}

// Attach adds a sink with a queue of buffer events (DefaultBuffer if <= 0).
func (b *Bus) Attach(s Sink, buffer int) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	w := &worker{sink: s, queue: make(chan Event, buffer)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.workers = append(b.workers, w)
	b.wg.Add(1)
	go b.drain(w)
}

func (b *Bus) drain(w *worker) {
	defer b.wg.Done()
	for e := range w.queue {
		if err := w.sink.Handle(e); err != nil {
			b.logger.Debug("sink failed", "sink", w.sink.Name(), "type", string(e.Type), log.Err(err))
		}
	}
}

// Publish stamps e and queues it on every sink. Full queues drop the event.
func (b *Bus) Publish(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = b.now()
	}
	if e.Session == "" {
		e.Session = b.session
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, w := range b.workers {
		select {
		case w.queue <- e:
		default:
			if w.dropped.Add(1) == 1 {
				b.logger.Warn("sink queue full, dropping events", "sink", w.sink.Name())
			}
		}
	}
}

// Dropped returns the number of events each sink has lost, by sink name.
func (b *Bus) Dropped() map[string]uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]uint64, len(b.workers))
	for _, w := range b.workers {
		out[w.sink.Name()] += w.dropped.Load()
	}
	return out
}

// Close stops accepting events and waits for sinks to drain their queues.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, w := range b.workers {
		close(w.queue)
	}
	b.mu.Unlock()
	b.wg.Wait()
}

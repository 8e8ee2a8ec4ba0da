package headset

import (
	"context"
	"io"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/teslashibe/go-mindclick/internal/fault"
	"github.com/teslashibe/go-mindclick/internal/log"
	"github.com/teslashibe/go-mindclick/internal/retry"
	"github.com/teslashibe/go-mindclick/pkg/events"
	"github.com/teslashibe/go-mindclick/pkg/metrics"
	"github.com/teslashibe/go-mindclick/pkg/serialport"
	"github.com/teslashibe/go-mindclick/pkg/state"
)

const component = "headset"

// Port is the telemetry link. *serialport.Port satisfies it.
type Port interface {
	io.Reader
	Reopen(ctx context.Context) error
	Device() string
}

// Options configures a Reader. Zero values are usable.
type Options struct {
	// Reconnect is applied after a read fault. Nil ends the loop on the first fault.
	Reconnect *retry.Policy
	Clock     clockwork.Clock
	Events    events.Publisher
	Metrics   metrics.Recorder
	Logger    *slog.Logger
}

// Reader is the single writer of the live attention cell.
type Reader struct {
	port    Port
	live    *state.Live
	policy  *retry.Policy
	clock   clockwork.Clock
	events  events.Publisher
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewReader creates a reader publishing parsed values into live.
func NewReader(port Port, live *state.Live, opts Options) *Reader {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Reader{
		port:    port,
		live:    live,
		policy:  opts.Reconnect,
		clock:   opts.Clock,
		events:  events.OrDiscard(opts.Events),
		metrics: metrics.OrNoop(opts.Metrics),
		logger:  log.OrDefault(opts.Logger).With(log.Component(component), log.Device(port.Device())),
	}
}

// Run reads lines until ctx is done. Each attention record replaces the
// live value; other lines are skipped. A read fault invalidates the live
// value and, if a reconnect policy is set, reopens the port with backoff.
// Run returns nil in every case: link faults never end sibling loops.
func (r *Reader) Run(ctx context.Context) error {
	r.logger.Info("listening for attention values")
	r.events.Publish(events.Event{Type: events.LinkUp, Component: component, Message: r.port.Device()})

	lines := serialport.NewLineReader(r.port)
	for {
		line, err := lines.ReadLine(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.linkLost(err)
			if !r.reconnect(ctx) {
				return nil
			}
			lines = serialport.NewLineReader(r.port)
			continue
		}

		v, err := ParseLine(line)
		if err != nil {
			r.metrics.IncSkipped()
			continue
		}
		r.live.Store(v)
		r.metrics.IncSample()
		r.metrics.SetLive(v, true)
		r.events.Publish(events.Event{Type: events.Sample, Component: component, Value: v})
	}
}

func (r *Reader) linkLost(err error) {
	f := fault.New(fault.TransportRead, component, "read", err)
	r.live.Invalidate()
	r.metrics.SetLive(0, false)
	r.metrics.IncFault(string(fault.TransportRead))
	r.logger.Warn("headset link lost", log.Fault(string(f.Kind)), log.Err(err))
	r.events.Publish(events.Event{Type: events.LinkDown, Component: component, Fault: string(f.Kind), Message: f.Error()})
}

// reconnect reopens the port until it succeeds, the policy gives up, or
// ctx is done. It reports whether reading can resume.
func (r *Reader) reconnect(ctx context.Context) bool {
	if r.policy == nil {
		r.logger.Info("reconnect disabled, headset loop ending")
		return false
	}
	for attempt := 1; ; attempt++ {
		if r.policy.Exhausted(attempt) {
			r.logger.Error("reconnect attempts exhausted, headset loop ending", "attempts", attempt-1)
			r.events.Publish(events.Event{Type: events.Fault, Component: component, Fault: string(fault.TransportRead), Message: "reconnect attempts exhausted"})
			return false
		}
		delay := r.policy.Delay(attempt)
		select {
		case <-ctx.Done():
			return false
		case <-r.clock.After(delay):
		}

		if err := r.port.Reopen(ctx); err != nil {
			if ctx.Err() != nil {
				return false
			}
			r.metrics.IncReconnect(false)
			r.logger.Warn("reconnect failed", "attempt", attempt, log.Err(err))
			continue
		}
		r.metrics.IncReconnect(true)
		r.logger.Info("headset link restored", "attempt", attempt)
		r.events.Publish(events.Event{Type: events.LinkUp, Component: component, Message: r.port.Device()})
		return true
	}
}

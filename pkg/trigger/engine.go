// Package trigger turns attention spikes into click commands.
//
// The engine is a two-state machine polled at a fixed interval:
//
//	Idle     --value > threshold / send click-->  Cooldown
//	Cooldown --cooldown elapsed-->                Idle
//
// While in Cooldown the live value is ignored, so one sustained spike
// produces one click per cooldown period.
package trigger

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/teslashibe/go-mindclick/internal/fault"
	"github.com/teslashibe/go-mindclick/internal/log"
	"github.com/teslashibe/go-mindclick/pkg/events"
	"github.com/teslashibe/go-mindclick/pkg/metrics"
	"github.com/teslashibe/go-mindclick/pkg/state"
)

const component = "trigger"

// Mode is the engine state.
type Mode int32

const (
	Idle Mode = iota
	Cooldown
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Cooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Clicker sends one click. *actuator.Channel satisfies it.
type Clicker interface {
	Click(ctx context.Context) error
}

// Options configures an Engine.
type Options struct {
	PollInterval time.Duration
	Cooldown     time.Duration
	Clock        clockwork.Clock
	Events       events.Publisher
	Metrics      metrics.Recorder
	Logger       *slog.Logger
}

// Engine watches the live value and fires the clicker on threshold crossings.
type Engine struct {
	live      *state.Live
	threshold *state.Threshold
	clicker   Clicker
	poll      time.Duration
	cooldown  time.Duration
	clock     clockwork.Clock
	events    events.Publisher
	metrics   metrics.Recorder
	logger    *slog.Logger

	mode      atomic.Int32
	clicks    atomic.Uint64
	lastClick atomic.Int64 // unix nanos
	until     time.Time    // owned by Run
}

// New creates an engine. Cooldown should exceed PollInterval.
func New(live *state.Live, threshold *state.Threshold, clicker Clicker, opts Options) *Engine {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 50 * time.Millisecond
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 750 * time.Millisecond
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Engine{
		live:      live,
		threshold: threshold,
		clicker:   clicker,
		poll:      opts.PollInterval,
		cooldown:  opts.Cooldown,
		clock:     opts.Clock,
		events:    events.OrDiscard(opts.Events),
		metrics:   metrics.OrNoop(opts.Metrics),
		logger:    log.OrDefault(opts.Logger).With(log.Component(component)),
	}
}

// State returns the current mode.
func (e *Engine) State() Mode {
	return Mode(e.mode.Load())
}

// Clicks returns the number of clicks sent.
func (e *Engine) Clicks() uint64 {
	return e.clicks.Load()
}

// LastClick returns the time of the last click, zero if none.
func (e *Engine) LastClick() time.Time {
	ns := e.lastClick.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Run polls until ctx is done. It returns nil on cancellation and the
// actuator fault when a click cannot be written.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("starting click detector", "poll", e.poll, "cooldown", e.cooldown)
	for {
		if err := e.tick(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-e.clock.After(e.poll):
		}
	}
}

// tick runs one poll. A poll that ends the cooldown also evaluates the
// live value.
func (e *Engine) tick(ctx context.Context) error {
	now := e.clock.Now()
	if e.State() == Cooldown {
		if now.Before(e.until) {
			return nil
		}
		e.mode.Store(int32(Idle))
	}

	sample, ok := e.live.Load()
	if !ok {
		return nil
	}
	cal, ok := e.threshold.Load()
	if !ok {
		return nil
	}
	if float64(sample.Value) <= cal.Threshold {
		return nil
	}

	if err := e.clicker.Click(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		e.metrics.IncFault(string(fault.ActuatorWrite))
		e.logger.Error("click failed", log.Fault(string(fault.ActuatorWrite)), log.Err(err))
		e.events.Publish(events.Event{Type: events.Fault, Component: component, Fault: string(fault.ActuatorWrite), Message: err.Error()})
		if _, classified := fault.KindOf(err); !classified {
			err = fault.New(fault.ActuatorWrite, component, "click", err)
		}
		return err
	}

	e.until = now.Add(e.cooldown)
	e.mode.Store(int32(Cooldown))
	e.clicks.Add(1)
	e.lastClick.Store(now.UnixNano())
	e.metrics.IncClick()
	e.logger.Info("attention spike, click sent", log.Value(sample.Value), log.Threshold(cal.Threshold))
	e.events.Publish(events.Event{Type: events.Click, Component: component, Value: sample.Value, Threshold: cal.Threshold})
	return nil
}

// Package shutdown coordinates the lifecycle of the concurrent control loops.
//
// The Coordinator owns the run state: it is true from construction until the
// first Stop (or the first fatal task error) and never becomes true again.
// Loops receive the coordinator context and must return promptly once it is
// done. Wait joins every registered task.
package shutdown

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-mindclick/internal/log"
)

// ErrStopped is the context cause after an orderly Stop.
var ErrStopped = errors.New("shutdown: stop requested")

// Coordinator propagates a one-way stop signal to all loops.
type Coordinator struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	group  *errgroup.Group
	logger *slog.Logger

	running atomic.Bool
	once    sync.Once
	reason  atomic.Value // string

	mu    sync.Mutex
	tasks map[string]time.Time
}

// New creates a running coordinator. Cancelling parent stops it too.
func New(parent context.Context, logger *slog.Logger) *Coordinator {
	ctx, cancel := context.WithCancelCause(parent)
	group, gctx := errgroup.WithContext(ctx)

	c := &Coordinator{
		ctx:    gctx,
		cancel: cancel,
		group:  group,
		logger: log.OrDefault(logger).With(log.Component("shutdown")),
		tasks:  make(map[string]time.Time),
	}
	c.running.Store(true)

	// A fatal task error or a cancelled parent ends the run as well.
	context.AfterFunc(gctx, func() {
		reason := "context done"
		if cause := context.Cause(gctx); cause != nil && !errors.Is(cause, ErrStopped) {
			reason = cause.Error()
		}
		c.Stop(reason)
	})
	return c
}

// Context is cancelled when the run state turns false.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// Done is closed when the run state turns false.
func (c *Coordinator) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Running reports the run state.
func (c *Coordinator) Running() bool {
	return c.running.Load()
}

// Stop turns the run state false. Only the first call has an effect; it
// returns true for that call.
func (c *Coordinator) Stop(reason string) bool {
	stopped := false
	c.once.Do(func() {
		stopped = true
		c.reason.Store(reason)
		c.running.Store(false)
		c.logger.Info("stopping", "reason", reason)
		c.cancel(ErrStopped)
	})
	return stopped
}

// Reason returns the reason given to the first Stop, or "" while running.
func (c *Coordinator) Reason() string {
	r, _ := c.reason.Load().(string)
	return r
}

// Go runs fn as a named task. fn must return when its context is done.
// A non-nil error cancels every other task and is returned by Wait, so
// loops return errors only for faults that must end the process.
func (c *Coordinator) Go(name string, fn func(ctx context.Context) error) {
	c.mu.Lock()
	c.tasks[name] = time.Now()
	c.mu.Unlock()

	c.group.Go(func() error {
		err := fn(c.ctx)
		if err != nil && c.ctx.Err() != nil && errors.Is(err, context.Canceled) {
			err = nil
		}

		c.mu.Lock()
		started := c.tasks[name]
		delete(c.tasks, name)
		c.mu.Unlock()

		if err != nil {
			c.logger.Error("task failed", "task", name, log.Err(err))
		} else {
			c.logger.Debug("task exited", "task", name, log.Duration(time.Since(started)))
		}
		return err
	})
}

// Tasks returns the names of tasks that have not exited yet.
func (c *Coordinator) Tasks() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.tasks))
	for name := range c.tasks {
		names = append(names, name)
	}
	return names
}

// Wait blocks until every task has returned and reports the first task error.
func (c *Coordinator) Wait() error {
	err := c.group.Wait()
	if err != nil {
		c.Stop(err.Error())
	} else {
		c.Stop("all tasks exited")
	}
	return err
}

// Package actuator sends command tokens to the click actuator.
package actuator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/teslashibe/go-mindclick/internal/fault"
	"github.com/teslashibe/go-mindclick/internal/log"
)

const component = "actuator"

// Command is a newline-free token understood by the actuator firmware.
type Command string

// Click is the reference click command.
const Click Command = "CLICK"

// ErrInvalidCommand is returned for empty tokens or tokens containing a line break.
var ErrInvalidCommand = errors.New("actuator: invalid command token")

// Validate reports whether c can be framed on the link.
func (c Command) Validate() error {
	if c == "" || strings.ContainsAny(string(c), "\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidCommand, string(c))
	}
	return nil
}

// Channel frames commands onto the actuator link.
type Channel struct {
	mu     sync.Mutex
	w      io.Writer
	click  Command
	logger *slog.Logger
}

// New returns a channel writing to w. click is the command sent by Click;
// empty means Click.
func New(w io.Writer, click Command, logger *slog.Logger) *Channel {
	if click == "" {
		click = Click
	}
	return &Channel{
		w:      w,
		click:  click,
		logger: log.OrDefault(logger).With(log.Component(component)),
	}
}

// ClickCommand returns the command sent by Click.
func (c *Channel) ClickCommand() Command {
	return c.click
}

// Send writes cmd followed by "\n" in a single write. Write failures and
// short writes are returned as ActuatorWrite faults.
func (c *Channel) Send(ctx context.Context, cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	frame := []byte(string(cmd) + "\n")

	c.mu.Lock()
	n, err := c.w.Write(frame)
	c.mu.Unlock()

	if err == nil && n < len(frame) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return fault.New(fault.ActuatorWrite, component, "send "+string(cmd), err)
	}
	c.logger.Debug("command sent", log.Command(string(cmd)))
	return nil
}

// Click sends the click command.
func (c *Channel) Click(ctx context.Context) error {
	return c.Send(ctx, c.click)
}

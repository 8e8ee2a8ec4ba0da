package shutdown_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-mindclick/internal/log"
	"github.com/teslashibe/go-mindclick/internal/retry"
	"github.com/teslashibe/go-mindclick/pkg/headset"
	"github.com/teslashibe/go-mindclick/pkg/shutdown"
	"github.com/teslashibe/go-mindclick/pkg/speech"
	"github.com/teslashibe/go-mindclick/pkg/state"
	"github.com/teslashibe/go-mindclick/pkg/trigger"
	"github.com/teslashibe/go-mindclick/pkg/voice"
)

const poll = 50 * time.Millisecond

// quietPort is a serial link with nothing to say: every read ends in a
// read timeout on the fake clock.
type quietPort struct{ clock clockwork.Clock }

func (p quietPort) Read([]byte) (int, error) {
	<-p.clock.After(poll)
	return 0, nil
}

func (quietPort) Reopen(context.Context) error { return nil }
func (quietPort) Device() string               { return "/dev/quiet" }

type noClicks struct{}

func (noClicks) Click(context.Context) error { return nil }

type noCalibration struct{}

func (noCalibration) Calibrate(context.Context, time.Duration) (state.Calibration, error) {
	return state.Calibration{}, nil
}

// unreachable makes the dispatcher back off on the clock after every listen.
type unreachable struct{}

func (unreachable) Listen(context.Context) (string, error) { return "", speech.ErrServiceUnreachable }

func TestCoordinator_LoopsExitWithinOnePoll(t *testing.T) {
	fc := clockwork.NewFakeClock()
	logger := log.Discard()
	live := state.NewLive(fc.Now)
	th := &state.Threshold{}

	reader := headset.NewReader(quietPort{fc}, live, headset.Options{Clock: fc, Logger: logger})
	engine := trigger.New(live, th, noClicks{}, trigger.Options{PollInterval: poll, Cooldown: 15 * poll, Clock: fc, Logger: logger})

	c := shutdown.New(context.Background(), logger)
	dispatcher := voice.NewDispatcher(unreachable{}, voice.DefaultMatcher(), noCalibration{}, c, voice.Options{
		Backoff: retry.NewPolicy(retry.Fixed, poll, poll, 0),
		Clock:   fc,
		Logger:  logger,
	})

	c.Go("headset", reader.Run)
	c.Go("trigger", engine.Run)
	c.Go("voice", dispatcher.Run)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, fc.BlockUntilContext(ctx, 3), "every loop should park on the clock")

	c.Stop("test")
	fc.Advance(poll)

	done := make(chan error, 1)
	go func() { done <- c.Wait() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("loops still running one poll after Stop: %v", c.Tasks())
	}
	assert.Empty(t, c.Tasks())
	assert.Equal(t, "test", c.Reason())
}

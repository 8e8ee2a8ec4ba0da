package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/teslashibe/go-mindclick/internal/log"
)

func TestCoordinator_StopOnce(t *testing.T) {
	c := New(context.Background(), log.Discard())

	if !c.Running() {
		t.Fatal("new coordinator should be running")
	}
	if !c.Stop("voice") {
		t.Error("first Stop should transition")
	}
	if c.Stop("again") {
		t.Error("second Stop must not transition")
	}
	if c.Running() {
		t.Error("run state must stay false")
	}
	if c.Reason() != "voice" {
		t.Errorf("Reason = %q, want voice", c.Reason())
	}

	select {
	case <-c.Done():
	default:
		t.Error("Done should be closed after Stop")
	}
}

func TestCoordinator_StopReachesAllTasks(t *testing.T) {
	c := New(context.Background(), log.Discard())

	exited := make(chan string, 3)
	for _, name := range []string{"headset", "trigger", "voice"} {
		name := name
		c.Go(name, func(ctx context.Context) error {
			<-ctx.Done()
			exited <- name
			return ctx.Err()
		})
	}

	c.Stop("test")

	done := make(chan error, 1)
	go func() { done <- c.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait = %v, cancelled tasks should not count as failures", err)
		}
	case <-time.After(time.Second):
		t.Fatal("tasks did not exit after Stop")
	}
	if len(exited) != 3 {
		t.Errorf("exited tasks: got %d, want 3", len(exited))
	}
	if n := len(c.Tasks()); n != 0 {
		t.Errorf("Tasks() after Wait: got %d, want 0", n)
	}
}

func TestCoordinator_FatalErrorCancelsSiblings(t *testing.T) {
	c := New(context.Background(), log.Discard())
	boom := errors.New("actuator gone")

	c.Go("sibling", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	c.Go("trigger", func(ctx context.Context) error {
		return boom
	})

	err := c.Wait()
	if !errors.Is(err, boom) {
		t.Fatalf("Wait = %v, want %v", err, boom)
	}
	if c.Running() {
		t.Error("fatal error should clear the run state")
	}
	if c.Reason() != boom.Error() {
		t.Errorf("Reason = %q, want %q", c.Reason(), boom.Error())
	}
}

func TestCoordinator_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	c := New(parent, log.Discard())

	cancel()

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("parent cancel should propagate")
	}
	// AfterFunc runs asynchronously.
	deadline := time.Now().Add(time.Second)
	for c.Running() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if c.Running() {
		t.Error("parent cancel should clear the run state")
	}
}

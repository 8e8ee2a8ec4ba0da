package speech

import (
	"context"
	"strings"
	"sync"
)

// Utterance is one scripted Listen result.
type Utterance struct {
	Text string
	Err  error
}

// Say returns a transcript utterance.
func Say(text string) Utterance { return Utterance{Text: text} }

// Fail returns an error utterance.
func Fail(err error) Utterance { return Utterance{Err: err} }

// ScriptedListener replays utterances in order, then blocks until ctx is done.
type ScriptedListener struct {
	mu    sync.Mutex
	queue []Utterance
	calls int
}

// NewScriptedListener returns a listener replaying us.
func NewScriptedListener(us ...Utterance) *ScriptedListener {
	return &ScriptedListener{queue: us}
}

// Listen returns the next utterance.
func (s *ScriptedListener) Listen(ctx context.Context) (string, error) {
	s.mu.Lock()
	s.calls++
	if len(s.queue) == 0 {
		s.mu.Unlock()
		<-ctx.Done()
		return "", ctx.Err()
	}
	u := s.queue[0]
	s.queue = s.queue[1:]
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if u.Err != nil {
		return "", u.Err
	}
	return strings.ToLower(u.Text), nil
}

// Calls returns how many times Listen was called.
func (s *ScriptedListener) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Remaining returns how many utterances are left.
func (s *ScriptedListener) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

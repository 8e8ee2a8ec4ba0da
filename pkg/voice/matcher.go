// Package voice maps spoken transcripts to control commands and runs the
// listen/dispatch loop.
package voice

import (
	"fmt"
	"strings"
)

// Command is a recognized voice command.
type Command string

const (
	Calibrate Command = "calibrate"
	Stop      Command = "stop"
)

// TieBreak decides which command wins when a transcript contains keywords
// of both.
type TieBreak string

const (
	CalibrateFirst TieBreak = "calibrate-first"
	StopFirst      TieBreak = "stop-first"
)

// ParseTieBreak validates s. Empty means CalibrateFirst.
func ParseTieBreak(s string) (TieBreak, error) {
	switch TieBreak(s) {
	case "", CalibrateFirst:
		return CalibrateFirst, nil
	case StopFirst:
		return StopFirst, nil
	default:
		return "", fmt.Errorf("unknown tie break %q", s)
	}
}

// Rule binds keywords to a command. A keyword matches anywhere in the
// transcript, so "recalibrate" contains "calibrate".
type Rule struct {
	Command  Command
	Keywords []string
}

// Matcher checks rules in priority order.
type Matcher struct {
	rules []Rule
}

// NewMatcher builds a matcher for the two commands, ordered by tie.
func NewMatcher(calibrateWords, stopWords []string, tie TieBreak) *Matcher {
	cal := Rule{Command: Calibrate, Keywords: lower(calibrateWords)}
	stop := Rule{Command: Stop, Keywords: lower(stopWords)}
	if tie == StopFirst {
		return &Matcher{rules: []Rule{stop, cal}}
	}
	return &Matcher{rules: []Rule{cal, stop}}
}

// DefaultMatcher matches "calibrate" and "stop", calibrate first.
func DefaultMatcher() *Matcher {
	return NewMatcher([]string{string(Calibrate)}, []string{string(Stop)}, CalibrateFirst)
}

// Match returns the first command whose keyword occurs in transcript.
func (m *Matcher) Match(transcript string) (Command, bool) {
	t := strings.ToLower(transcript)
	for _, r := range m.rules {
		for _, kw := range r.Keywords {
			if kw != "" && strings.Contains(t, kw) {
				return r.Command, true
			}
		}
	}
	return "", false
}

// Rules returns the rules in priority order.
func (m *Matcher) Rules() []Rule {
	return append([]Rule(nil), m.rules...)
}

func lower(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			out = append(out, w)
		}
	}
	return out
}

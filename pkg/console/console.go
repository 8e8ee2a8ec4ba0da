// Package console prints human-readable status lines for the operator.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/teslashibe/go-mindclick/pkg/events"
)

// Styles used for console output.
type Styles struct {
	Banner lipgloss.Style
	Info   lipgloss.Style
	Cal    lipgloss.Style
	Event  lipgloss.Style
	Voice  lipgloss.Style
	Error  lipgloss.Style
	System lipgloss.Style
	Value  lipgloss.Style
	Muted  lipgloss.Style
}

// NewStyles builds styles rendered for w. Colour is dropped when w is not a terminal.
func NewStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)
	tag := func(c string) lipgloss.Style {
		return r.NewStyle().Bold(true).Foreground(lipgloss.Color(c))
	}
	return Styles{
		Banner: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f")).
			BorderStyle(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("#00ff9f")).Padding(0, 2),
		Info:   tag("#74c7ec"),
		Cal:    tag("#b4befe"),
		Event:  tag("#fab387"),
		Voice:  tag("#a6e3a1"),
		Error:  tag("#f38ba8"),
		System: tag("#cdd6f4"),
		Value:  r.NewStyle().Bold(true),
		Muted:  r.NewStyle().Foreground(lipgloss.Color("#6e7681")),
	}
}

// Banner renders a boxed title.
func Banner(w io.Writer, title string, lines ...string) {
	st := NewStyles(w)
	body := title
	if len(lines) > 0 {
		body += "\n" + st.Muted.Render(strings.Join(lines, "\n"))
	}
	fmt.Fprintln(w, st.Banner.Render(body))
}

// Sink writes one or more lines per event.
type Sink struct {
	mu      sync.Mutex
	w       io.Writer
	st      Styles
	samples bool
}

// NewSink returns a sink writing to w. Attention samples are printed only
// when samples is true.
func NewSink(w io.Writer, samples bool) *Sink {
	return &Sink{w: w, st: NewStyles(w), samples: samples}
}

func (s *Sink) Name() string { return "console" }

func (s *Sink) Handle(e events.Event) error {
	line := s.format(e)
	if line == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.w, line)
	return err
}

func (s *Sink) format(e events.Event) string {
	st := s.st
	switch e.Type {
	case events.Sample:
		if !s.samples {
			return ""
		}
		return "EEG Attention: " + st.Value.Render(fmt.Sprint(e.Value))
	case events.LinkUp:
		return st.Info.Render("[INFO]") + " Headset connected on " + e.Message + ", listening for EEG"
	case events.LinkDown:
		return st.Error.Render("[ERROR]") + " Headset link lost: " + e.Message
	case events.CalibrationStarted:
		return "\n" + st.Cal.Render("[CALIBRATION]") + " Relax and clear your mind..."
	case events.CalibrationCompleted:
		return strings.Join([]string{
			st.Cal.Render("[CALIBRATION COMPLETE]"),
			fmt.Sprintf("Baseline: %s (%d samples)", st.Value.Render(fmt.Sprintf("%.2f", e.Baseline)), e.Samples),
			fmt.Sprintf("Threshold set to: %s", st.Value.Render(fmt.Sprintf("%.2f", e.Threshold))),
			"",
		}, "\n")
	case events.CalibrationFailed:
		return st.Error.Render("[CALIBRATION FAILED]") + " " + e.Message + ", keeping previous threshold"
	case events.Click:
		return st.Event.Render("[EVENT]") + fmt.Sprintf(" Attention spike (%d > %.2f), clicking", e.Value, e.Threshold)
	case events.VoiceCommand:
		return st.Voice.Render("[VOICE]") + " You said: " + e.Transcript
	case events.VoiceError:
		return st.Error.Render("[ERROR]") + " Could not contact speech service: " + e.Message
	case events.Fault:
		return st.Error.Render("[FAULT]") + " " + e.Fault + ": " + e.Message
	case events.Stopped:
		return st.System.Render("[SYSTEM]") + " Shutting down (" + e.Message + ")"
	}
	return ""
}

// Commands prints the voice command help.
func Commands(w io.Writer, commands map[string]string, order []string) {
	st := NewStyles(w)
	fmt.Fprintln(w, "\n"+st.Voice.Render("[VOICE ONLINE]")+" Commands:")
	for _, name := range order {
		fmt.Fprintf(w, " - '%s' %s\n", name, st.Muted.Render(commands[name]))
	}
	fmt.Fprintln(w)
}

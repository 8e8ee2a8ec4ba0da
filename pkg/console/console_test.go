package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-mindclick/pkg/events"
)

func TestSink_Lines(t *testing.T) {
	tests := []struct {
		name  string
		event events.Event
		want  string
	}{
		{"link up", events.Event{Type: events.LinkUp, Message: "/dev/ttyUSB0"}, "[INFO] Headset connected on /dev/ttyUSB0"},
		{"calibration", events.Event{Type: events.CalibrationCompleted, Baseline: 42.5, Threshold: 62.5, Samples: 100}, "Threshold set to: 62.50"},
		{"click", events.Event{Type: events.Click, Value: 80, Threshold: 62.5}, "[EVENT] Attention spike (80 > 62.50)"},
		{"voice", events.Event{Type: events.VoiceCommand, Transcript: "please calibrate"}, "[VOICE] You said: please calibrate"},
		{"stopped", events.Event{Type: events.Stopped, Message: "voice command"}, "[SYSTEM] Shutting down (voice command)"},
		{"fault", events.Event{Type: events.Fault, Fault: "actuator_write", Message: "broken pipe"}, "[FAULT] actuator_write: broken pipe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, NewSink(&buf, false).Handle(tt.event))
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestSink_Samples(t *testing.T) {
	var quiet, loud bytes.Buffer
	e := events.Event{Type: events.Sample, Value: 57}

	require.NoError(t, NewSink(&quiet, false).Handle(e))
	require.NoError(t, NewSink(&loud, true).Handle(e))

	assert.Empty(t, quiet.String())
	assert.Equal(t, "EEG Attention: 57\n", loud.String())
}

func TestBanner(t *testing.T) {
	var buf bytes.Buffer
	Banner(&buf, "MINDCLICK", "EEG attention to left click")

	out := buf.String()
	assert.Contains(t, out, "MINDCLICK")
	assert.Contains(t, out, "EEG attention to left click")
	assert.Greater(t, strings.Count(out, "\n"), 2, "banner should be boxed")
}

func TestCommands(t *testing.T) {
	var buf bytes.Buffer
	Commands(&buf, map[string]string{"calibrate": "recalibrate", "stop": "quit"}, []string{"calibrate", "stop"})

	out := buf.String()
	assert.Less(t, strings.Index(out, "'calibrate'"), strings.Index(out, "'stop'"))
}

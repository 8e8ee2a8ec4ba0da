package log

import (
	"log/slog"
	"time"
)

// Canonical log field names, shared so components don't drift.
const (
	KeyComponent  = "component"
	KeySession    = "session"
	KeyValue      = "value"
	KeyThreshold  = "threshold"
	KeyBaseline   = "baseline"
	KeySamples    = "samples"
	KeyFault      = "fault"
	KeyError      = "error"
	KeyDurationMS = "duration_ms"
	KeyDevice     = "device"
	KeyCommand    = "command"
)

func Component(name string) slog.Attr    { return slog.String(KeyComponent, name) }
func Session(id string) slog.Attr        { return slog.String(KeySession, id) }
func Value(v int) slog.Attr              { return slog.Int(KeyValue, v) }
func Threshold(t float64) slog.Attr      { return slog.Float64(KeyThreshold, t) }
func Baseline(b float64) slog.Attr       { return slog.Float64(KeyBaseline, b) }
func Samples(n int) slog.Attr            { return slog.Int(KeySamples, n) }
func Device(d string) slog.Attr          { return slog.String(KeyDevice, d) }
func Command(c string) slog.Attr         { return slog.String(KeyCommand, c) }
func Duration(d time.Duration) slog.Attr { return slog.Int64(KeyDurationMS, d.Milliseconds()) }
func Fault(kind string) slog.Attr        { return slog.String(KeyFault, kind) }

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

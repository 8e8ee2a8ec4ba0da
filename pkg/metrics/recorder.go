// Package metrics exposes counters and gauges for the control loops.
package metrics

import "time"

// Recorder defines the observability hooks used by the loops. Implementations
// may forward to Prometheus; NoopRecorder is the default when metrics are not
// configured.
type Recorder interface {
	IncSample()
	IncSkipped()
	SetLive(value int, valid bool)
	IncFault(kind string)
	IncReconnect(success bool)
	SetThreshold(threshold float64)
	ObserveCalibration(d time.Duration, samples int, success bool)
	IncClick()
	IncVoiceCommand(command string)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) IncSample()                                  {}
func (NoopRecorder) IncSkipped()                                 {}
func (NoopRecorder) SetLive(int, bool)                           {}
func (NoopRecorder) IncFault(string)                             {}
func (NoopRecorder) IncReconnect(bool)                           {}
func (NoopRecorder) SetThreshold(float64)                        {}
func (NoopRecorder) ObserveCalibration(time.Duration, int, bool) {}
func (NoopRecorder) IncClick()                                   {}
func (NoopRecorder) IncVoiceCommand(string)                      {}

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}

package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mindclick"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	samples             prom.Counter
	skipped             prom.Counter
	live                prom.Gauge
	liveValid           prom.Gauge
	faults              *prom.CounterVec
	reconnects          *prom.CounterVec
	threshold           prom.Gauge
	calibrationDuration prom.Histogram
	calibrationSamples  prom.Histogram
	calibrations        *prom.CounterVec
	clicks              prom.Counter
	voiceCommands       *prom.CounterVec
}

// NewPrometheusRecorder constructs the metrics and registers them on reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		samples: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "headset_samples_total",
			Help:      "Attention samples parsed from the headset link",
		}),
		skipped: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "headset_lines_skipped_total",
			Help:      "Telemetry lines that were not attention records",
		}),
		live: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "attention_value",
			Help:      "Most recent attention value",
		}),
		liveValid: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "attention_valid",
			Help:      "1 while the live attention value is current, 0 before the first sample or after link loss",
		}),
		faults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "faults_total",
			Help:      "Faults by kind",
		}, []string{"kind"}),
		reconnects: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "headset_reconnects_total",
			Help:      "Headset reconnect attempts by result",
		}, []string{"result"}),
		threshold: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "threshold",
			Help:      "Current trigger threshold",
		}),
		calibrationDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "calibration_duration_seconds",
			Help:      "Wall time of calibration windows",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60},
		}),
		calibrationSamples: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "calibration_samples",
			Help:      "Samples collected per calibration window",
			Buckets:   prom.LinearBuckets(0, 25, 8),
		}),
		calibrations: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "calibrations_total",
			Help:      "Calibrations by result",
		}, []string{"result"}),
		clicks: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_total",
			Help:      "Click commands sent to the actuator",
		}),
		voiceCommands: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "voice_commands_total",
			Help:      "Recognized voice commands",
		}, []string{"command"}),
	}
	reg.MustRegister(
		pr.samples, pr.skipped, pr.live, pr.liveValid, pr.faults, pr.reconnects,
		pr.threshold, pr.calibrationDuration, pr.calibrationSamples, pr.calibrations,
		pr.clicks, pr.voiceCommands,
	)
	return pr
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prom.Registry {
	reg := prom.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// HTTPHandler serves the metrics of reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (p *PrometheusRecorder) IncSample()  { p.samples.Inc() }
func (p *PrometheusRecorder) IncSkipped() { p.skipped.Inc() }
func (p *PrometheusRecorder) IncClick()   { p.clicks.Inc() }

func (p *PrometheusRecorder) SetLive(value int, valid bool) {
	if !valid {
		p.liveValid.Set(0)
		return
	}
	p.live.Set(float64(value))
	p.liveValid.Set(1)
}

func (p *PrometheusRecorder) IncFault(kind string) {
	p.faults.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) IncReconnect(success bool) {
	p.reconnects.WithLabelValues(result(success)).Inc()
}

func (p *PrometheusRecorder) SetThreshold(threshold float64) {
	p.threshold.Set(threshold)
}

func (p *PrometheusRecorder) ObserveCalibration(d time.Duration, samples int, success bool) {
	p.calibrationDuration.Observe(d.Seconds())
	p.calibrationSamples.Observe(float64(samples))
	p.calibrations.WithLabelValues(result(success)).Inc()
}

func (p *PrometheusRecorder) IncVoiceCommand(command string) {
	p.voiceCommands.WithLabelValues(command).Inc()
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}

package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.IncSample()
	pr.IncSample()
	pr.IncSkipped()
	pr.SetLive(63, true)
	pr.IncFault("transport_read")
	pr.IncReconnect(true)
	pr.SetThreshold(52.5)
	pr.ObserveCalibration(10*time.Second, 100, true)
	pr.IncClick()
	pr.IncVoiceCommand("calibrate")

	if got := testutil.ToFloat64(pr.samples); got != 2 {
		t.Errorf("samples = %v, want 2", got)
	}
	if got := testutil.ToFloat64(pr.live); got != 63 {
		t.Errorf("live = %v, want 63", got)
	}
	if got := testutil.ToFloat64(pr.threshold); got != 52.5 {
		t.Errorf("threshold = %v, want 52.5", got)
	}
	if got := testutil.ToFloat64(pr.faults.WithLabelValues("transport_read")); got != 1 {
		t.Errorf("faults = %v, want 1", got)
	}

	pr.SetLive(0, false)
	if got := testutil.ToFloat64(pr.liveValid); got != 0 {
		t.Errorf("attention_valid = %v, want 0 after invalidation", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatal("expected metrics, got none")
	}
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncClick()

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "mindclick_clicks_total 1") {
		t.Errorf("clicks counter missing from scrape:\n%s", rec.Body.String())
	}
}

func TestOrNoop(t *testing.T) {
	r := OrNoop(nil)
	r.IncClick() // must not panic
	if _, ok := r.(NoopRecorder); !ok {
		t.Errorf("OrNoop(nil) = %T", r)
	}
}

package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("x", 200, time.Millisecond)
	m.Adjudicated("CONFIRMED")
	m.PublishFailed()
	m.Republished(3)
}

func TestHandlerExposesCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Adjudicated("CONFIRMED")
	m.Adjudicated("REJECTED")
	m.Adjudicated("REJECTED")
	m.ObserveRequest("/appointments", 202, 3*time.Millisecond)
	m.Republished(2)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`clinic_adjudications_total{outcome="REJECTED"} 2`,
		`clinic_http_requests_total{handler="/appointments",status="202"} 1`,
		`clinic_reconciler_republished_total 2`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}
}

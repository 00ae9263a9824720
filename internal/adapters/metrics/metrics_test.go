package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("GET", "login", 200, time.Millisecond)
	m.ObserveQuery("QueryRowContext", time.Millisecond)
	m.GateDecision("allow", "public")
	m.Registration("success")
	m.Availability("email", "taken")
	m.Auth("login_success")
}

func TestCounters(t *testing.T) {
	m := New()
	m.GateDecision("redirect", "anonymous")
	m.GateDecision("redirect", "anonymous")
	m.Registration("write_failed")
	m.Availability("telefono", "available")
	m.Auth("signup")

	if got := testutil.ToFloat64(m.GateDecisions.WithLabelValues("redirect", "anonymous")); got != 2 {
		t.Errorf("gate decisions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Registrations.WithLabelValues("write_failed")); got != 1 {
		t.Errorf("registrations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.AvailabilityChecks.WithLabelValues("telefono", "available")); got != 1 {
		t.Errorf("availability = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.AuthEvents.WithLabelValues("signup")); got != 1 {
		t.Errorf("auth events = %v, want 1", got)
	}
}

func TestHistograms(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", "cliente", 302, 3*time.Millisecond)
	m.ObserveQuery("ExecContext", time.Millisecond)
	if n := testutil.CollectAndCount(m.RequestDuration); n != 1 {
		t.Errorf("request series = %d, want 1", n)
	}
	if n := testutil.CollectAndCount(m.QueryDuration); n != 1 {
		t.Errorf("query series = %d, want 1", n)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Registration("success")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := rr.Body.String(); !strings.Contains(body, `studio_registrations_total{result="success"} 1`) {
		t.Errorf("body missing registration counter:\n%s", body)
	}
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{101: "1xx", 200: "2xx", 303: "3xx", 404: "4xx", 409: "4xx", 500: "5xx"}
	for status, want := range tests {
		if got := StatusClass(status); got != want {
			t.Errorf("StatusClass(%d) = %q, want %q", status, got, want)
		}
	}
}

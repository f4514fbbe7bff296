package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewCollector_Independent(t *testing.T) {
	a := NewCollector()
	b := NewCollector()
	if a.Registry() == b.Registry() {
		t.Fatal("expected separate registries")
	}
	a.GenerationWarnings.Inc()
	if got := testutil.ToFloat64(b.GenerationWarnings); got != 0 {
		t.Errorf("expected second collector untouched, got %v", got)
	}
}

func TestMiddleware_RecordsRoute(t *testing.T) {
	m := NewCollector()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/v1/timeline/next-dose/:medicineId", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/missing", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	})

	for _, path := range []string{"/api/v1/timeline/next-dose/a", "/api/v1/timeline/next-dose/b", "/missing"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	ok := m.RequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/timeline/next-dose/:medicineId", "200")
	if got := testutil.ToFloat64(ok); got != 2 {
		t.Errorf("expected 2 requests on templated route, got %v", got)
	}
	notFound := m.RequestsTotal.WithLabelValues(http.MethodGet, "/missing", "404")
	if got := testutil.ToFloat64(notFound); got != 1 {
		t.Errorf("expected 1 not-found request, got %v", got)
	}
	if got := testutil.ToFloat64(m.InFlight); got != 0 {
		t.Errorf("expected no in-flight requests, got %v", got)
	}
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := NewCollector()
	m.ConflictsDetected.WithLabelValues("timing", "moderate").Add(3)
	m.StatusUpdates.WithLabelValues("taken").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`medintel_timeline_conflicts_detected_total{severity="moderate",type="timing"} 3`,
		`medintel_timeline_status_updates_total{status="taken"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected exposition to contain %q", want)
		}
	}
}

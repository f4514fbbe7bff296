package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/medintel/medintel/internal/config"
	"github.com/medintel/medintel/internal/platform/db"
	"github.com/medintel/medintel/internal/platform/telemetry"
)

func devConfig() *config.Config {
	return &config.Config{
		Env:           "development",
		DefaultUserID: "demo",
		Timezone:      "UTC",
		CORSOrigins:   []string{"http://localhost:3000"},
	}
}

func TestNewServer_Routes(t *testing.T) {
	e, err := newServer(devConfig(), zerolog.Nop(), nil, telemetry.NewCollector())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	registered := make(map[string]bool)
	for _, r := range e.Routes() {
		registered[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /health",
		"GET /health/db",
		"GET /metrics",
		"POST /api/v1/prescriptions",
		"PUT /api/v1/medicines/:id",
		"GET /api/v1/timeline",
		"POST /api/v1/timeline/generate-schedules",
		"PUT /api/v1/timeline/status/:scheduleId",
		"GET /api/v1/timeline/conflicts",
		"PUT /api/v1/timeline/schedule/:scheduleId/meal-timing",
		"GET /api/v1/timeline/next-dose/:medicineId",
		"GET /api/v1/frequency/parse",
	} {
		if !registered[want] {
			t.Errorf("route %s not registered", want)
		}
	}
}

func TestNewServer_Health(t *testing.T) {
	e, err := newServer(devConfig(), zerolog.Nop(), nil, telemetry.NewCollector())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "ok" || body["version"] != version {
		t.Errorf("unexpected body %v", body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
}

func TestNewServer_ParseFrequencyWithoutDatabase(t *testing.T) {
	e, err := newServer(devConfig(), zerolog.Nop(), nil, telemetry.NewCollector())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/frequency/parse?text=bid", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"times_per_day":2`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestNewServer_RequiresTokenOutsideDevelopment(t *testing.T) {
	cfg := devConfig()
	cfg.Env = "production"
	cfg.AuthSigningKey = strings.Repeat("k", 32)

	e, err := newServer(cfg, zerolog.Nop(), nil, telemetry.NewCollector())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/frequency/parse?text=bid", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestNewServer_BadInteractionsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interactions.yaml")
	if err := os.WriteFile(path, []byte("interactions:\n  - drugs: [a]\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := devConfig()
	cfg.InteractionsFile = path
	if _, err := newServer(cfg, zerolog.Nop(), nil, telemetry.NewCollector()); err == nil {
		t.Error("expected error for an invalid interactions file")
	}
}

func TestNewServer_BadTimezone(t *testing.T) {
	cfg := devConfig()
	cfg.Timezone = "Mars/Olympus"
	if _, err := newServer(cfg, zerolog.Nop(), nil, telemetry.NewCollector()); err == nil {
		t.Error("expected error for an unknown timezone")
	}
}

func TestMigrationSource(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_init.sql"), []byte("SELECT 1;"), 0o600); err != nil {
		t.Fatal(err)
	}
	migrations, err := db.NewMigrator(nil, migrationSource(dir)).LoadMigrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) != 1 || migrations[0].Version != 1 {
		t.Errorf("unexpected migrations %+v", migrations)
	}

	embedded, err := db.NewMigrator(nil, migrationSource("")).LoadMigrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(embedded) == 0 {
		t.Error("expected embedded migrations")
	}
}

func TestPrintStatus(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	var buf bytes.Buffer
	printStatus(&buf, []db.MigrationStatus{
		{Version: 1, Name: "prescriptions", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "timeline"},
	})
	out := buf.String()
	if !strings.Contains(out, "applied    2024-01-02 03:04:05") {
		t.Errorf("missing applied row:\n%s", out)
	}
	if !strings.Contains(out, "timeline") || !strings.Contains(out, "pending") {
		t.Errorf("missing pending row:\n%s", out)
	}
}

package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/radarprecios/radarprecios-backend/api/responses"
	pkgerrors "github.com/radarprecios/radarprecios-backend/pkg/errors"
	"github.com/radarprecios/radarprecios-backend/pkg/logger"
	"github.com/radarprecios/radarprecios-backend/pkg/metrics"
)

func TestRequestIDPropagatesHeader(t *testing.T) {
	handler := RequestID(nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-123")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if got := resp.Header().Get(requestIDHeader); got != "req-123" {
		t.Fatalf("expected request id echoed, got %q", got)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestRequestIDReplacesUnsafeValues(t *testing.T) {
	handler := RequestID(nil)(okHandler())
	for _, id := range []string{"line\nbreak", "has space", strings.Repeat("a", 200)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestIDHeader, id)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if got := resp.Header().Get(requestIDHeader); got == id || got == "" {
			t.Fatalf("expected %q to be replaced, got %q", id, got)
		}
	}
}

func TestRecovererReturnsInternalError(t *testing.T) {
	handler := Recoverer(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
	var payload struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Success || payload.Code != string(pkgerrors.CodeInternal) {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestLoggingRecordsStatusAndRoute(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.InfoLevel, Output: &buf})
	reg := prometheus.NewRegistry()
	obs := metrics.NewHTTP(reg)

	r := chi.NewRouter()
	r.Use(Logging(logg, obs))
	r.Get("/api/agendas/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/agendas/77", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}

	if !strings.Contains(buf.String(), `"status":404`) || !strings.Contains(buf.String(), "request.complete") {
		t.Fatalf("expected completion log with status, got %s", buf.String())
	}
	if count := testutil.CollectAndCount(reg, "radar_http_request_duration_seconds"); count != 1 {
		t.Fatalf("expected one histogram series, got %d", count)
	}
	problems, err := testutil.GatherAndLint(reg)
	if err != nil || len(problems) != 0 {
		t.Fatalf("metric lint failed: %v %v", err, problems)
	}
}

func TestDebugExposesErrorChainOnlyWhenEnabled(t *testing.T) {
	failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeInternal, "db exploded"))
	})

	for _, enabled := range []bool{true, false} {
		resp := httptest.NewRecorder()
		Debug(enabled)(failing).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
		var payload map[string]any
		if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		_, has := payload["error"]
		if has != enabled {
			t.Fatalf("debug=%v: expected error field presence %v, got %v", enabled, enabled, has)
		}
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	handler := CORS([]string{" https://radar.example.com "})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/prices", nil)
	req.Header.Set("Origin", "https://radar.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "https://radar.example.com" {
		t.Fatalf("expected allowed origin, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/prices", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no cors header for unknown origin, got %q", got)
	}
}

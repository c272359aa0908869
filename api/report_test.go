package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"telemetry-gateway/middleware/admission"
	"telemetry-gateway/middleware/admission/infra"
	"telemetry-gateway/telemetry"
)

type stubCollector struct {
	payload any
	err     error
}

func (s stubCollector) Collect(context.Context) (any, error) {
	return s.payload, s.err
}

func newHandler(basic stubCollector) *ReportHandler {
	reg := telemetry.NewRegistry(zap.NewNop())
	reg.Register(telemetry.TypeBasic, basic)
	return &ReportHandler{Registry: reg}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var out struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return out.Error
}

func TestReportHandler_ReturnsCollectorPayload(t *testing.T) {
	h := newHandler(stubCollector{payload: map[string]string{"status": "fine"}})

	r := httptest.NewRequest(http.MethodGet, "http://example/report?type=basic_report", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON content type, got %q", ct)
	}
	var payload map[string]string
	if err := json.NewDecoder(w.Body).Decode(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["status"] != "fine" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestReportHandler_UnknownTypeIs400(t *testing.T) {
	h := newHandler(stubCollector{payload: "unused"})

	r := httptest.NewRequest(http.MethodGet, "http://example/report?type=turbo_report", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if got := decodeError(t, w); got != MsgInvalidReportType {
		t.Fatalf("expected %q, got %q", MsgInvalidReportType, got)
	}
}

func TestReportHandler_MissingTypeDefaultsToUnrecognized(t *testing.T) {
	h := newHandler(stubCollector{payload: "unused"})

	// sem ?type= o default é single_report, que não é reconhecido
	r := httptest.NewRequest(http.MethodGet, "http://example/report", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for default type, got %d", w.Code)
	}
}

func TestReportHandler_CollectorFailureIs500(t *testing.T) {
	h := newHandler(stubCollector{err: errors.New("proc went missing")})

	r := httptest.NewRequest(http.MethodGet, "http://example/report?type=basic_report", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if got := decodeError(t, w); got != admission.MsgInternalError {
		t.Fatalf("expected %q, got %q", admission.MsgInternalError, got)
	}
}

// Espelha o fluxo real: gate de admissão na frente do handler. Um tipo
// inválido ainda consome uma unidade de cota.
func TestReportHandler_InvalidTypeStillConsumesQuota(t *testing.T) {
	h := newHandler(stubCollector{payload: "ok"})

	gate := admission.Middleware(admission.Options{
		Store:  infra.NewMemoryCounterStore(),
		Limit:  2,
		Window: 60 * time.Second,
	})(h)

	do := func(target string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, target, nil)
		r.RemoteAddr = "5.6.7.8:4321"
		w := httptest.NewRecorder()
		gate.ServeHTTP(w, r)
		return w
	}

	if w := do("http://example/report?type=unknown"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if w := do("http://example/report?type=basic_report"); w.Code != http.StatusOK {
		t.Fatalf("expected 200 on second request, got %d", w.Code)
	}
	// a cota (2) acabou: o 400 anterior contou
	if w := do("http://example/report?type=basic_report"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once quota is spent, got %d", w.Code)
	}
}

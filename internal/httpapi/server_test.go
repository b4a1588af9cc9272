package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/admission"
	"github.com/atlas-desktop/trading-backend/internal/queue"
	"github.com/atlas-desktop/trading-backend/internal/runs"
	"github.com/atlas-desktop/trading-backend/internal/store"
)

func newTestServer() *Server {
	s := store.NewMemory()
	q := queue.NewMemory(16)
	a := admission.New(s, q)
	hub := NewHub(s, zap.NewNop())
	go hub.Run(context.Background())
	return NewServer(zap.NewNop(), a, s, hub, []string{"*"})
}

func TestHandleCreateRunReturns202AndQueuesRun(t *testing.T) {
	srv := newTestServer()
	body := `{"name":"r1","kind":"backtest_mm","cli_args":["--levels","3"]}`
	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var run runs.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if run.Status != runs.StatusQueued {
		t.Fatalf("expected queued status, got %v", run.Status)
	}
}

func TestHandleCreateRunReturns400OnBadKind(t *testing.T) {
	srv := newTestServer()
	body := `{"name":"r1","kind":"not_a_kind","cli_args":["x"]}`
	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleGetRunReturns404ForUnknownID(t *testing.T) {
	srv := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/runs/00000000-0000-0000-0000-000000000000", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleListRunsReturnsCreatedRun(t *testing.T) {
	srv := newTestServer()
	createReq := httptest.NewRequest(http.MethodPost, "/runs",
		strings.NewReader(`{"name":"r2","kind":"backtest_trend","cli_args":["x"]}`))
	createRec := httptest.NewRecorder()
	srv.router.ServeHTTP(createRec, createReq)
	if createRec.Code != http.StatusAccepted {
		t.Fatalf("setup: expected 202, got %d", createRec.Code)
	}

	listReq := httptest.NewRequest(http.MethodGet, "/runs", nil)
	listRec := httptest.NewRecorder()
	srv.router.ServeHTTP(listRec, listReq)

	var list []runs.Run
	if err := json.Unmarshal(listRec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(list) != 1 || list[0].Name != "r2" {
		t.Fatalf("expected one run named r2, got %+v", list)
	}
}

func TestHandleCreateMMMTFSweepPresetUsesFixedArgv(t *testing.T) {
	srv := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/runs/presets/mm_mtf_sweep", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var run runs.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if run.Kind != runs.KindMMMTFSweep {
		t.Fatalf("expected mm_mtf_sweep kind, got %v", run.Kind)
	}
}

// Package httpapi is the admission HTTP server: it exposes the run
// orchestrator's submit/inspect surface over REST, plus a per-run websocket
// event stream.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/admission"
	"github.com/atlas-desktop/trading-backend/internal/runs"
	"github.com/atlas-desktop/trading-backend/internal/store"
)

// Server is the run orchestrator's HTTP/WebSocket front door.
type Server struct {
	logger     *zap.Logger
	admitter   *admission.Admitter
	store      store.Store
	hub        *Hub
	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader
	corsOrigins []string
}

// NewServer builds a Server. hub should already be running (via Hub.Run in
// its own goroutine) before requests are served.
func NewServer(logger *zap.Logger, admitter *admission.Admitter, st store.Store, hub *Hub, corsOrigins []string) *Server {
	s := &Server{
		logger:      logger,
		admitter:    admitter,
		store:       st,
		hub:         hub,
		router:      mux.NewRouter(),
		corsOrigins: corsOrigins,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/runs", s.handleCreateRun).Methods("POST")
	s.router.HandleFunc("/runs/presets/mm_mtf_sweep", s.handleCreateMMMTFSweepPreset).Methods("POST")
	s.router.HandleFunc("/runs", s.handleListRuns).Methods("GET")
	s.router.HandleFunc("/runs/{id}", s.handleGetRun).Methods("GET")
	s.router.HandleFunc("/runs/{id}/events", s.handleListEvents).Methods("GET")
	s.router.HandleFunc("/runs/{id}/metrics", s.handleGetMetrics).Methods("GET")
	s.router.HandleFunc("/runs/{id}/artifacts", s.handleListArtifacts).Methods("GET")
	s.router.HandleFunc("/runs/{id}/stream", s.handleStream).Methods("GET")
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	handler := cors.New(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("admission server listening", zap.String("addr", addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req runs.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	run, err := s.admitter.Submit(r.Context(), req)
	s.respondSubmit(w, run, err)
}

func (s *Server) handleCreateMMMTFSweepPreset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Name == "" {
		body.Name = "mm_mtf_sweep"
	}
	run, err := s.admitter.SubmitMMMTFSweepPreset(r.Context(), body.Name)
	s.respondSubmit(w, run, err)
}

func (s *Server) respondSubmit(w http.ResponseWriter, run runs.Run, err error) {
	if err != nil {
		switch {
		case admission.IsValidation(err):
			writeError(w, http.StatusBadRequest, err.Error())
		case admission.IsQueueFailure(err):
			s.logger.Error("enqueue failed after run was recorded", zap.Error(err))
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			s.logger.Error("submit failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusAccepted, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50)
	list, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseRunID(w, r)
	if !ok {
		return
	}
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		s.notFoundOrInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseRunID(w, r)
	if !ok {
		return
	}
	limit := parseLimit(r, 200)
	events, err := s.store.ListEvents(r.Context(), id, limit)
	if err != nil {
		s.notFoundOrInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleGetMetrics(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseRunID(w, r)
	if !ok {
		return
	}
	metrics, err := s.store.GetMetrics(r.Context(), id)
	if err != nil {
		s.notFoundOrInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseRunID(w, r)
	if !ok {
		return
	}
	artifacts, err := s.store.ListArtifacts(r.Context(), id)
	if err != nil {
		s.notFoundOrInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, artifacts)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseRunID(w, r)
	if !ok {
		return
	}
	if _, err := s.store.GetRun(r.Context(), id); err != nil {
		s.notFoundOrInternal(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := NewClient(uuid.NewString(), id, s.hub, conn)
	s.hub.register <- client
	go client.WritePump()
	client.ReadPump()
}

func (s *Server) parseRunID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return uuid.UUID{}, false
	}
	return id, true
}

func (s *Server) notFoundOrInternal(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.logger.Error("store lookup failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

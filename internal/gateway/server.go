package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/carewire/consultscribe/internal/config"
	"github.com/carewire/consultscribe/internal/notify"
	"github.com/carewire/consultscribe/internal/repository"
	"github.com/carewire/consultscribe/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server terminates client connections: the transcription lifecycle HTTP
// endpoints, the streaming websocket, and the provider status callback.
type Server struct {
	cfg        *config.Config
	manager    *session.Manager
	reconciler *notify.Reconciler
	repo       repository.Repository
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

func New(cfg *config.Config, manager *session.Manager, reconciler *notify.Reconciler, repo repository.Repository) *Server {
	s := &Server{
		cfg:        cfg,
		manager:    manager,
		reconciler: reconciler,
		repo:       repo,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.httpServer = &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      s.routes(),
		ReadTimeout:  0, // websocket reads manage their own deadlines
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/v1/transcription", func(r chi.Router) {
		r.Post("/start", s.handleStart)
		r.Post("/end", s.handleEnd)
		r.Get("/{transcriptionSessionID}/stream", s.handleStream)
	})
	r.Post("/v1/notifications/status", s.handleStatusCallback)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) ListenAndServe() error {
	slog.Info("http server listening", "addr", s.cfg.HTTPListenAddr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type startRequest struct {
	SessionID string `json:"session_id"`
}

type startResponse struct {
	Success                bool   `json:"success"`
	Message                string `json:"message"`
	TranscriptionSessionID string `json:"transcription_session_id"`
}

type endRequest struct {
	TranscriptionSessionID string `json:"transcription_session_id"`
}

type endResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	transcriptionSessionID, err := s.manager.StartSession(r.Context(), req.SessionID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrConsultationNotFound), errors.Is(err, session.ErrConsultationNotActive):
			writeJSONError(w, http.StatusBadRequest, err.Error())
		default:
			slog.Error("failed to start transcription session", "consultation_id", req.SessionID, "error", err)
			writeJSONError(w, http.StatusInternalServerError, "failed to start transcription session")
		}
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/v1/transcription/%s", transcriptionSessionID))
	writeJSON(w, http.StatusCreated, startResponse{
		Success:                true,
		Message:                "Transcription session started successfully",
		TranscriptionSessionID: transcriptionSessionID,
	})
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	var req endRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TranscriptionSessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "transcription_session_id is required")
		return
	}

	if err := s.manager.EndSession(r.Context(), req.TranscriptionSessionID); err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSessionAlreadyEnding):
			writeJSONError(w, http.StatusBadRequest, err.Error())
		default:
			slog.Error("failed to end transcription session", "session_id", req.TranscriptionSessionID, "error", err)
			writeJSONError(w, http.StatusInternalServerError, "failed to end transcription session")
		}
		return
	}

	writeJSON(w, http.StatusOK, endResponse{
		Success: true,
		Message: "Transcription session ended successfully",
	})
}

// handleStatusCallback receives the provider's delivery updates as form
// posts. Unknown message ids are acknowledged anyway so the provider stops
// retrying.
func (s *Server) handleStatusCallback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid form payload")
		return
	}
	messageSID := r.PostFormValue("MessageSid")
	messageStatus := r.PostFormValue("MessageStatus")
	if messageSID == "" || messageStatus == "" {
		writeJSONError(w, http.StatusBadRequest, "MessageSid and MessageStatus are required")
		return
	}

	err := s.reconciler.RecordStatusCallback(r.Context(), messageSID, messageStatus,
		r.PostFormValue("ErrorCode"), r.PostFormValue("ErrorMessage"))
	if err != nil && !errors.Is(err, notify.ErrUnknownNotification) {
		slog.Error("failed to process status callback", "provider_message_id", messageSID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to process status callback")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Status update processed"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "connected"}
	status := "healthy"
	code := http.StatusOK
	if err := s.repo.Ping(r.Context()); err != nil {
		checks["database"] = fmt.Sprintf("error: %v", err)
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}

package devserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/flowmate/flowmate/internal/domain"
	"github.com/flowmate/flowmate/internal/middleware"
	"github.com/flowmate/flowmate/internal/store"
	"github.com/flowmate/flowmate/web"
)

// maxRequestBodySize caps JSON request bodies (1MB).
const maxRequestBodySize = 1 << 20

// Server hosts the REST session API and the WebSocket endpoint.
type Server struct {
	repo          store.Repository
	hub           *Hub
	assistant     mockAssistant
	allowedOrigin string
}

// New creates a dev server backed by the given repository.
func New(repo store.Repository, allowedOrigin string) *Server {
	return &Server{
		repo:          repo,
		hub:           NewHub(),
		allowedOrigin: allowedOrigin,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(s.allowedOrigin))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Get("/", s.handleListSessions)
		r.Get("/{sessionID}/messages", s.handleGetMessages)
	})
	r.Get("/ws", s.handleWS)
	r.Handle("/*", web.Handler())

	return r
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		Error(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProcessID string `json:"processId"`
		Title     string `json:"title"`
	}
	body := http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.ProcessID == "" {
		Error(w, http.StatusBadRequest, "processId is required")
		return
	}
	if req.Title == "" {
		req.Title = "New conversation"
	}

	now := time.Now()
	sess := domain.Session{
		ID:        uuid.NewString(),
		ProcessID: req.ProcessID,
		Title:     req.Title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateSession(r.Context(), &sess); err != nil {
		Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	JSON(w, http.StatusCreated, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	processID := r.URL.Query().Get("processId")
	if processID == "" {
		Error(w, http.StatusBadRequest, "processId is required")
		return
	}

	sessions, err := s.repo.ListSessions(r.Context(), processID)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*domain.Session{}
	}
	JSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	sess, err := s.repo.GetSession(r.Context(), sessionID)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if sess == nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}

	msgs, err := s.repo.GetMessages(r.Context(), sessionID)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}
	JSON(w, http.StatusOK, msgs)
}

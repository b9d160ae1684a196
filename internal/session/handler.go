package session

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/austrian-business-infrastructure/fo/internal/api"
	"github.com/austrian-business-infrastructure/fo/internal/apperr"
	"github.com/google/uuid"
)

// Handler handles session HTTP requests
type Handler struct {
	repo   *Repository
	logger *slog.Logger
}

// NewHandler creates a new session handler
func NewHandler(repo *Repository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

// RegisterRoutes registers session routes
func (h *Handler) RegisterRoutes(router *api.Router, requireAuth func(http.Handler) http.Handler) {
	router.Handle("GET /api/v1/sessions", requireAuth(http.HandlerFunc(h.List)))
	router.Handle("DELETE /api/v1/sessions/{id}", requireAuth(http.HandlerFunc(h.Terminate)))
	router.Handle("DELETE /api/v1/sessions", requireAuth(http.HandlerFunc(h.TerminateAll)))
}

// SessionDTO is a data transfer object for sessions
type SessionDTO struct {
	ID        string  `json:"id"`
	UserAgent *string `json:"user_agent,omitempty"`
	IPAddress *string `json:"ip_address,omitempty"`
	ExpiresAt string  `json:"expires_at"`
	CreatedAt string  `json:"created_at"`
}

// List handles GET /api/v1/sessions
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(api.GetUserID(r.Context()))
	if err != nil {
		apperr.Write(w, apperr.Unauthenticated("missing principal"))
		return
	}

	sessions, err := h.repo.ListForUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list sessions", "error", err)
		apperr.Write(w, apperr.Internal(err))
		return
	}

	dtos := make([]*SessionDTO, len(sessions))
	for i, s := range sessions {
		dtos[i] = &SessionDTO{
			ID:        s.ID.String(),
			UserAgent: s.UserAgent,
			IPAddress: s.IPAddress,
			ExpiresAt: s.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
			CreatedAt: s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}

	api.JSONResponse(w, http.StatusOK, map[string]interface{}{
		"sessions": dtos,
	})
}

// Terminate handles DELETE /api/v1/sessions/{id}
func (h *Handler) Terminate(w http.ResponseWriter, r *http.Request) {
	idStr := r.PathValue("id")
	sessionID, err := uuid.Parse(idStr)
	if err != nil {
		apperr.Write(w, apperr.Validation("invalid session id"))
		return
	}

	userID, err := uuid.Parse(api.GetUserID(r.Context()))
	if err != nil {
		apperr.Write(w, apperr.Unauthenticated("missing principal"))
		return
	}

	sessions, err := h.repo.ListForUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list sessions", "error", err)
		apperr.Write(w, apperr.Internal(err))
		return
	}

	found := false
	for _, s := range sessions {
		if s.ID == sessionID {
			found = true
			break
		}
	}
	if !found {
		apperr.Write(w, apperr.NotFound("session not found"))
		return
	}

	if err := h.repo.Delete(r.Context(), nil, sessionID); err != nil {
		if errors.Is(err, ErrNotFound) {
			apperr.Write(w, apperr.NotFound("session not found"))
			return
		}
		h.logger.Error("failed to terminate session", "error", err)
		apperr.Write(w, apperr.Internal(err))
		return
	}

	api.JSONResponse(w, http.StatusOK, map[string]string{
		"message": "session terminated",
	})
}

// TerminateAll handles DELETE /api/v1/sessions
func (h *Handler) TerminateAll(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(api.GetUserID(r.Context()))
	if err != nil {
		apperr.Write(w, apperr.Unauthenticated("missing principal"))
		return
	}

	if err := h.repo.DeleteAllForUser(r.Context(), userID); err != nil {
		h.logger.Error("failed to terminate all sessions", "error", err)
		apperr.Write(w, apperr.Internal(err))
		return
	}

	api.JSONResponse(w, http.StatusOK, map[string]string{
		"message": "all sessions terminated",
	})
}

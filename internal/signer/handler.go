package signer

import (
	"encoding/json"
	"net/http"

	"github.com/austrian-business-infrastructure/fo/internal/api"
	"github.com/austrian-business-infrastructure/fo/internal/apperr"
)

// Handler serves the unauthenticated signer-session HTTP surface of spec §6.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(router *api.Router) {
	router.HandleFunc("GET /api/v1/sign/{token}", h.withSession(h.Summary))
	router.HandleFunc("POST /api/v1/sign/{token}/identify", h.withSession(h.Identify))
	router.HandleFunc("POST /api/v1/sign/{token}/otp/start", h.withSession(h.StartOTP))
	router.HandleFunc("POST /api/v1/sign/{token}/otp/verify", h.withSession(h.VerifyOTP))
	router.HandleFunc("POST /api/v1/sign/{token}/position", h.withSession(h.SavePosition))
	router.HandleFunc("POST /api/v1/sign/{token}/confirm-art", h.withSession(h.ConfirmArt))
}

// withSession resolves the raw token in the URL into a Session and attaches
// it to the request context (spec §4.8 Resolve token).
func (h *Handler) withSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.service.ResolveToken(r.Context(), r.PathValue("token"))
		if err != nil {
			apperr.Write(w, err)
			return
		}
		next(w, r.WithContext(withSession(r.Context(), sess)))
	}
}

type signerDTO struct {
	Status     string `json:"status"`
	Name       string `json:"name"`
	DocTitle   string `json:"documentTitle"`
	DocumentID string `json:"documentId"`
}

// Summary handles GET /api/v1/sign/{token} (spec §4.8 Summary GET).
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	if err := h.service.Summary(r.Context(), sess, clientIP(r), r.UserAgent()); err != nil {
		apperr.Write(w, apperr.Internal(err))
		return
	}
	api.JSONResponse(w, http.StatusOK, signerDTO{
		Status: string(sess.Signer.Status), Name: sess.Signer.Name,
		DocTitle: sess.Document.Title, DocumentID: sess.Document.ID.String(),
	})
}

type identifyRequest struct {
	CPF   *string `json:"cpf,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// Identify handles POST /api/v1/sign/{token}/identify (spec §4.8 Identify).
func (h *Handler) Identify(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	var req identifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.Validation("invalid request body"))
		return
	}
	if err := h.service.Identify(r.Context(), sess.Signer.ID, req.CPF, req.Phone); err != nil {
		apperr.Write(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartOTP handles POST /api/v1/sign/{token}/otp/start (spec §4.8 Start OTP).
func (h *Handler) StartOTP(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	if err := h.service.StartOTP(r.Context(), sess, clientIP(r), r.UserAgent()); err != nil {
		apperr.Write(w, apperr.Internal(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type verifyOTPRequest struct {
	Code string `json:"code"`
}

// VerifyOTP handles POST /api/v1/sign/{token}/otp/verify (spec §4.8 Verify OTP).
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.Validation("invalid request body"))
		return
	}
	if err := h.service.VerifyOTP(r.Context(), sess, req.Code, clientIP(r), r.UserAgent()); err != nil {
		apperr.Write(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type savePositionRequest struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Page int     `json:"page"`
}

// SavePosition handles POST /api/v1/sign/{token}/position (spec §4.8 Save position).
func (h *Handler) SavePosition(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	var req savePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.Validation("invalid request body"))
		return
	}
	if err := h.service.SavePosition(r.Context(), sess.Signer.ID, req.X, req.Y, req.Page); err != nil {
		apperr.Write(w, apperr.Internal(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ConfirmArt handles POST /api/v1/sign/{token}/confirm-art (spec §4.8 confirm art).
func (h *Handler) ConfirmArt(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	if err := h.service.ConfirmArt(r.Context(), sess.Signer.ID); err != nil {
		apperr.Write(w, apperr.Internal(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}
	return r.RemoteAddr
}

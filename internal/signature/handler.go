package signature

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/austrian-business-infrastructure/fo/internal/api"
	"github.com/austrian-business-infrastructure/fo/internal/apperr"
	"github.com/austrian-business-infrastructure/fo/internal/signer"
	"github.com/google/uuid"
)

type signerSessionKey struct{}

func withSignerSession(ctx context.Context, sess *signer.Session) context.Context {
	return context.WithValue(ctx, signerSessionKey{}, sess)
}

func signerSessionFromContext(ctx context.Context) (*signer.Session, bool) {
	sess, ok := ctx.Value(signerSessionKey{}).(*signer.Session)
	return sess, ok
}

// Handler serves the invite and commit HTTP surface of spec §6:
// POST /documents/:id/invite (authenticated) and POST /sign/:token/commit
// (unauthenticated, resolved via signerSvc).
type Handler struct {
	service   *Service
	signerSvc *signer.Service
}

func NewHandler(service *Service, signerSvc *signer.Service) *Handler {
	return &Handler{service: service, signerSvc: signerSvc}
}

func (h *Handler) RegisterRoutes(router *api.Router, requireAuth func(http.Handler) http.Handler) {
	router.Handle("POST /api/v1/documents/{id}/invite", requireAuth(http.HandlerFunc(h.Invite)))
	router.HandleFunc("POST /api/v1/sign/{token}/commit", h.withSession(h.Commit))
}

// withSession mirrors internal/signer.Handler's own wrapper; kept here too
// since the commit route is owned by this package, not internal/signer.
func (h *Handler) withSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.signerSvc.ResolveToken(r.Context(), r.PathValue("token"))
		if err != nil {
			apperr.Write(w, err)
			return
		}
		next(w, r.WithContext(withSignerSession(r.Context(), sess)))
	}
}

type inviteSignerRequest struct {
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	Qualification *string  `json:"qualification,omitempty"`
	AuthChannels  []string `json:"authChannels"`
	Order         int      `json:"order"`
}

type inviteRequest struct {
	Signers []inviteSignerRequest `json:"signers"`
}

type inviteResultDTO struct {
	SignerID string `json:"signerId"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Status   string `json:"status"`
}

// Invite handles POST /api/v1/documents/{id}/invite (spec §4.4/§6). Mints a
// ShareToken per signer and delivers it over each signer's authChannels.
func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(api.GetTenantID(r.Context()))
	if err != nil {
		apperr.Write(w, apperr.Unauthenticated("invalid tenant context"))
		return
	}
	documentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		apperr.Write(w, apperr.Validation("invalid document id"))
		return
	}

	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.Validation("invalid request body"))
		return
	}
	if len(req.Signers) == 0 {
		apperr.Write(w, apperr.Validation("at least one signer is required"))
		return
	}

	inputs := make([]InviteInput, 0, len(req.Signers))
	for _, s := range req.Signers {
		inputs = append(inputs, InviteInput{
			Name: s.Name, Email: s.Email, Qualification: s.Qualification,
			AuthChannels: s.AuthChannels, Order: s.Order,
		})
	}

	results, err := h.service.Invite(r.Context(), tenantID, documentID, inputs)
	if err != nil {
		apperr.Write(w, err)
		return
	}

	dtos := make([]inviteResultDTO, 0, len(results))
	for _, res := range results {
		dtos = append(dtos, inviteResultDTO{
			SignerID: res.Signer.ID.String(), Name: res.Signer.Name,
			Email: res.Signer.Email, Status: string(res.Signer.Status),
		})
		h.service.notifySigner(r.Context(), tenantID, res)
	}
	api.JSONResponse(w, http.StatusCreated, map[string]any{"signers": dtos})
}

type commitRequest struct {
	ClientFingerprint string `json:"clientFingerprint"`
	SignatureImage    string `json:"signatureImage"`
}

type commitResponse struct {
	ShortCode     string `json:"shortCode"`
	SignatureHash string `json:"signatureHash"`
	IsComplete    bool   `json:"isComplete"`
}

// Commit handles POST /api/v1/sign/{token}/commit (spec §4.9).
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	sess, ok := signerSessionFromContext(r.Context())
	if !ok {
		apperr.Write(w, apperr.Unauthenticated("signing session required"))
		return
	}
	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.Validation("invalid request body"))
		return
	}
	result, err := h.service.Commit(r.Context(), sess, req.ClientFingerprint, req.SignatureImage, clientIP(r), r.UserAgent())
	if err != nil {
		apperr.Write(w, err)
		return
	}
	api.JSONResponse(w, http.StatusOK, commitResponse{
		ShortCode: result.ShortCode, SignatureHash: result.SignatureHash, IsComplete: result.IsComplete,
	})
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

// Package invitation exposes the HTTP surface over tenant membership
// invites (spec §4.4 Invite member / List/respond invites). The invite
// itself is a TenantMember row (internal/tenant), not a standalone
// entity — this package only adapts that service to routes.
package invitation

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/austrian-business-infrastructure/fo/internal/api"
	"github.com/austrian-business-infrastructure/fo/internal/apperr"
	"github.com/austrian-business-infrastructure/fo/internal/tenant"
	"github.com/google/uuid"
)

// Handler handles tenant-membership invitation HTTP requests.
type Handler struct {
	tenantService *tenant.Service
	logger        *slog.Logger
}

func NewHandler(tenantService *tenant.Service, logger *slog.Logger) *Handler {
	return &Handler{tenantService: tenantService, logger: logger}
}

// RegisterRoutes registers invitation routes.
func (h *Handler) RegisterRoutes(router *api.Router, requireAuth func(http.Handler) http.Handler) {
	router.Handle("POST /api/v1/invitations", requireAuth(http.HandlerFunc(h.Invite)))
	router.Handle("GET /api/v1/invitations/pending", requireAuth(http.HandlerFunc(h.Pending)))
	router.Handle("POST /api/v1/invitations/{id}/respond", requireAuth(http.HandlerFunc(h.Respond)))
}

// MemberDTO is the wire shape of a TenantMember row.
type MemberDTO struct {
	ID        string  `json:"id"`
	TenantID  string  `json:"tenantId"`
	UserID    *string `json:"userId,omitempty"`
	Email     string  `json:"email"`
	Role      string  `json:"role"`
	Status    string  `json:"status"`
	InvitedAt string  `json:"invitedAt"`
}

func toMemberDTO(m *tenant.Member) *MemberDTO {
	dto := &MemberDTO{
		ID: m.ID.String(), TenantID: m.TenantID.String(), Email: m.Email,
		Role: m.Role, Status: string(m.Status), InvitedAt: m.InvitedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if m.UserID != nil {
		id := m.UserID.String()
		dto.UserID = &id
	}
	return dto
}

// InviteRequest is the input to Invite (spec §4.4 Invite member).
type InviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Invite handles POST /api/v1/invitations.
func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.Validation("invalid request body"))
		return
	}
	if req.Email == "" || req.Role == "" {
		apperr.Write(w, apperr.Validation("email and role are required"))
		return
	}

	tenantID, err := uuid.Parse(api.GetTenantID(ctx))
	if err != nil {
		apperr.Write(w, apperr.Unauthenticated("invalid tenant context"))
		return
	}

	member, err := h.tenantService.InviteMember(ctx, tenant.InviteInput{
		CurrentTenantID: tenantID, Email: req.Email, Role: req.Role,
	})
	if err != nil {
		apperr.Write(w, err)
		return
	}

	api.JSONResponse(w, http.StatusCreated, toMemberDTO(member))
}

// Pending handles GET /api/v1/invitations/pending (spec §4.4 listPending).
func (h *Handler) Pending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := uuid.Parse(api.GetUserID(ctx))
	if err != nil {
		apperr.Write(w, apperr.Unauthenticated("invalid principal"))
		return
	}

	members, err := h.tenantService.Pending(ctx, userID, api.GetUserEmail(ctx))
	if err != nil {
		apperr.Write(w, err)
		return
	}

	dtos := make([]*MemberDTO, len(members))
	for i, m := range members {
		dtos[i] = toMemberDTO(m)
	}
	api.JSONResponse(w, http.StatusOK, map[string]any{"invitations": dtos})
}

// RespondRequest is the input to Respond (spec §4.4 respond).
type RespondRequest struct {
	Accept bool `json:"accept"`
}

// Respond handles POST /api/v1/invitations/{id}/respond.
func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	inviteID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		apperr.Write(w, apperr.Validation("invalid invitation id"))
		return
	}

	var req RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.Validation("invalid request body"))
		return
	}

	userID, err := uuid.Parse(api.GetUserID(ctx))
	if err != nil {
		apperr.Write(w, apperr.Unauthenticated("invalid principal"))
		return
	}

	if err := h.tenantService.Respond(ctx, userID, api.GetUserEmail(ctx), inviteID, req.Accept); err != nil {
		apperr.Write(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

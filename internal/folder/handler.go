package folder

import (
	"encoding/json"
	"net/http"

	"github.com/austrian-business-infrastructure/fo/internal/api"
	"github.com/austrian-business-infrastructure/fo/internal/apperr"
	"github.com/google/uuid"
)

// Handler serves the folder HTTP surface of spec §3/C7.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(router *api.Router, requireAuth func(http.Handler) http.Handler) {
	router.Handle("POST /api/v1/folders", requireAuth(http.HandlerFunc(h.Create)))
	router.Handle("GET /api/v1/folders", requireAuth(http.HandlerFunc(h.List)))
	router.Handle("GET /api/v1/folders/{id}", requireAuth(http.HandlerFunc(h.Get)))
	router.Handle("PATCH /api/v1/folders/{id}", requireAuth(http.HandlerFunc(h.Rename)))
	router.Handle("POST /api/v1/folders/{id}/move", requireAuth(http.HandlerFunc(h.Move)))
	router.Handle("DELETE /api/v1/folders/{id}", requireAuth(http.HandlerFunc(h.Delete)))
}

// FolderDTO is the wire shape of a Folder row.
type FolderDTO struct {
	ID       string  `json:"id"`
	ParentID *string `json:"parentId,omitempty"`
	Name     string  `json:"name"`
	Color    *string `json:"color,omitempty"`
}

func toDTO(f *Folder) *FolderDTO {
	dto := &FolderDTO{ID: f.ID.String(), Name: f.Name, Color: f.Color}
	if f.ParentID != nil {
		s := f.ParentID.String()
		dto.ParentID = &s
	}
	return dto
}

func tenantAndUser(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	tenantID, err := uuid.Parse(api.GetTenantID(r.Context()))
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	userID, err := uuid.Parse(api.GetUserID(r.Context()))
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return tenantID, userID, nil
}

type createRequest struct {
	ParentID *string `json:"parentId"`
	Name     string  `json:"name"`
	Color    *string `json:"color"`
}

// Create handles POST /api/v1/folders.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, err := tenantAndUser(r)
	if err != nil {
		apperr.Write(w, apperr.Unauthenticated("invalid principal"))
		return
	}
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.Validation("invalid request body"))
		return
	}
	var parentID *uuid.UUID
	if req.ParentID != nil && *req.ParentID != "" {
		id, err := uuid.Parse(*req.ParentID)
		if err != nil {
			apperr.Write(w, apperr.Validation("invalid parentId"))
			return
		}
		parentID = &id
	}
	f, err := h.service.Create(r.Context(), &CreateInput{
		TenantID: tenantID, OwnerID: userID, ParentID: parentID, Name: req.Name, Color: req.Color,
	})
	if err != nil {
		apperr.Write(w, err)
		return
	}
	api.JSONResponse(w, http.StatusCreated, toDTO(f))
}

// List handles GET /api/v1/folders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(api.GetTenantID(r.Context()))
	if err != nil {
		apperr.Write(w, apperr.Unauthenticated("invalid tenant context"))
		return
	}
	folders, err := h.service.List(r.Context(), tenantID)
	if err != nil {
		apperr.Write(w, apperr.Internal(err))
		return
	}
	dtos := make([]*FolderDTO, len(folders))
	for i, f := range folders {
		dtos[i] = toDTO(f)
	}
	api.JSONResponse(w, http.StatusOK, map[string]any{"folders": dtos})
}

// Get handles GET /api/v1/folders/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(api.GetTenantID(r.Context()))
	if err != nil {
		apperr.Write(w, apperr.Unauthenticated("invalid tenant context"))
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		apperr.Write(w, apperr.NotFound("folder not found"))
		return
	}
	f, err := h.service.GetByID(r.Context(), tenantID, id)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	api.JSONResponse(w, http.StatusOK, toDTO(f))
}

type renameRequest struct {
	Name  string  `json:"name"`
	Color *string `json:"color"`
}

// Rename handles PATCH /api/v1/folders/{id}.
func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, err := tenantAndUser(r)
	if err != nil {
		apperr.Write(w, apperr.Unauthenticated("invalid principal"))
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		apperr.Write(w, apperr.NotFound("folder not found"))
		return
	}
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.Validation("invalid request body"))
		return
	}
	if err := h.service.Rename(r.Context(), tenantID, userID, id, req.Name, req.Color); err != nil {
		apperr.Write(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type moveRequest struct {
	ParentID *string `json:"parentId"`
}

// Move handles POST /api/v1/folders/{id}/move (spec §3 "No cycle (enforced on move)").
func (h *Handler) Move(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, err := tenantAndUser(r)
	if err != nil {
		apperr.Write(w, apperr.Unauthenticated("invalid principal"))
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		apperr.Write(w, apperr.NotFound("folder not found"))
		return
	}
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.Validation("invalid request body"))
		return
	}
	var parentID *uuid.UUID
	if req.ParentID != nil && *req.ParentID != "" {
		pid, err := uuid.Parse(*req.ParentID)
		if err != nil {
			apperr.Write(w, apperr.Validation("invalid parentId"))
			return
		}
		parentID = &pid
	}
	if err := h.service.Move(r.Context(), tenantID, userID, id, parentID); err != nil {
		apperr.Write(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/v1/folders/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, err := tenantAndUser(r)
	if err != nil {
		apperr.Write(w, apperr.Unauthenticated("invalid principal"))
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		apperr.Write(w, apperr.NotFound("folder not found"))
		return
	}
	if err := h.service.Delete(r.Context(), tenantID, userID, id); err != nil {
		apperr.Write(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

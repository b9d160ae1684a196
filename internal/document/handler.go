package document

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/austrian-business-infrastructure/fo/internal/api"
	"github.com/austrian-business-infrastructure/fo/internal/apperr"
	"github.com/austrian-business-infrastructure/fo/internal/audit"
	"github.com/google/uuid"
)

// Handler serves the document HTTP surface of spec §6. Signer invitation
// (POST /documents/:id/invite) is mounted separately by internal/signature,
// which owns the Signer/ShareToken entities.
type Handler struct {
	service         *Service
	auditLog        *audit.Logger
	signerIDsFor    func(ctx context.Context, documentID uuid.UUID) ([]uuid.UUID, error)
	checkQuota      func(ctx context.Context, tenantID uuid.UUID) error
	checkFolder     func(ctx context.Context, tenantID, folderID uuid.UUID) error
	signerSummaries func(ctx context.Context, documentID uuid.UUID) ([]SignerSummary, error)
	logger          *slog.Logger
}

func NewHandler(service *Service, auditLog *audit.Logger, signerIDsFor func(ctx context.Context, documentID uuid.UUID) ([]uuid.UUID, error),
	checkQuota func(ctx context.Context, tenantID uuid.UUID) error,
	checkFolder func(ctx context.Context, tenantID, folderID uuid.UUID) error,
	signerSummaries func(ctx context.Context, documentID uuid.UUID) ([]SignerSummary, error), logger *slog.Logger) *Handler {
	return &Handler{service: service, auditLog: auditLog, signerIDsFor: signerIDsFor, checkQuota: checkQuota,
		checkFolder: checkFolder, signerSummaries: signerSummaries, logger: logger}
}

func (h *Handler) RegisterRoutes(router *api.Router, requireAuth func(http.Handler) http.Handler) {
	router.Handle("POST /api/v1/documents", requireAuth(http.HandlerFunc(h.Upload)))
	router.Handle("GET /api/v1/documents", requireAuth(http.HandlerFunc(h.List)))
	router.Handle("GET /api/v1/documents/stats", requireAuth(http.HandlerFunc(h.Stats)))
	router.Handle("GET /api/v1/documents/{id}", requireAuth(http.HandlerFunc(h.Get)))
	router.Handle("POST /api/v1/documents/{id}/cancel", requireAuth(http.HandlerFunc(h.Cancel)))
	router.Handle("POST /api/v1/documents/{id}/expire", requireAuth(http.HandlerFunc(h.Expire)))
	router.Handle("GET /api/v1/documents/{id}/audit", requireAuth(http.HandlerFunc(h.Audit)))
	router.Handle("GET /api/v1/documents/{id}/verify-chain", requireAuth(http.HandlerFunc(h.VerifyChain)))
	router.HandleFunc("POST /api/v1/documents/validate-file", h.ValidateFile)
}

// DocumentDTO is the wire shape of a Document row.
type DocumentDTO struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	MimeType      string  `json:"mimeType"`
	Size          int64   `json:"size"`
	SHA256        string  `json:"sha256"`
	Status        string  `json:"status"`
	DeadlineAt    *string `json:"deadlineAt,omitempty"`
	AutoReminders bool    `json:"autoReminders"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

func toDTO(d *Document) *DocumentDTO {
	dto := &DocumentDTO{
		ID: d.ID.String(), Title: d.Title, MimeType: d.MimeType, Size: d.Size, SHA256: d.SHA256,
		Status: d.Status, AutoReminders: d.AutoReminders,
		CreatedAt: d.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), UpdatedAt: d.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if d.DeadlineAt != nil {
		s := d.DeadlineAt.Format("2006-01-02T15:04:05Z07:00")
		dto.DeadlineAt = &s
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

// Upload handles POST /api/v1/documents (multipart, field "documentFile").
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, err := tenantAndUser(r)
	if err != nil {
		apperr.Write(w, apperr.Unauthenticated("invalid principal"))
		return
	}

	if h.checkQuota != nil {
		if err := h.checkQuota(r.Context(), tenantID); err != nil {
			apperr.Write(w, err)
			return
		}
	}

	if err := r.ParseMultipartForm(DefaultMaxDocumentSize); err != nil {
		apperr.Write(w, apperr.Validation("invalid multipart body"))
		return
	}
	file, header, err := r.FormFile("documentFile")
	if err != nil {
		apperr.Write(w, apperr.Validation("documentFile is required"))
		return
	}
	defer file.Close()

	var folderID *uuid.UUID
	if raw := r.FormValue("folderId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			apperr.Write(w, apperr.Validation("invalid folderId"))
			return
		}
		if h.checkFolder != nil {
			if err := h.checkFolder(r.Context(), tenantID, id); err != nil {
				apperr.Write(w, err)
				return
			}
		}
		folderID = &id
	}

	doc, err := h.service.Upload(r.Context(), &UploadInput{
		TenantID: tenantID, OwnerID: userID, File: file, OriginalName: header.Filename,
		MimeType: header.Header.Get("Content-Type"), Title: r.FormValue("title"),
		FolderID: folderID, AutoReminders: r.FormValue("autoReminders") == "true",
		IP: clientIP(r), UserAgent: r.UserAgent(),
	})
	if err != nil {
		apperr.Write(w, err)
		return
	}
	api.JSONResponse(w, http.StatusCreated, toDTO(doc))
}

// List handles GET /api/v1/documents?status=pendentes|concluidos|lixeira.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(api.GetTenantID(r.Context()))
	if err != nil {
		apperr.Write(w, apperr.Unauthenticated("invalid tenant context"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	docs, err := h.service.List(r.Context(), tenantID, r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		apperr.Write(w, apperr.Internal(err))
		return
	}
	dtos := make([]*DocumentDTO, len(docs))
	for i, d := range docs {
		dtos[i] = toDTO(d)
	}
	api.JSONResponse(w, http.StatusOK, map[string]any{"documents": dtos})
}

// Stats handles GET /api/v1/documents/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(api.GetTenantID(r.Context()))
	if err != nil {
		apperr.Write(w, apperr.Unauthenticated("invalid tenant context"))
		return
	}
	stats, err := h.service.Stats(r.Context(), tenantID)
	if err != nil {
		apperr.Write(w, apperr.Internal(err))
		return
	}
	api.JSONResponse(w, http.StatusOK, stats)
}

// Get handles GET /api/v1/documents/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(api.GetTenantID(r.Context()))
	if err != nil {
		apperr.Write(w, apperr.Unauthenticated("invalid tenant context"))
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		apperr.Write(w, apperr.NotFound("document not found"))
		return
	}
	doc, err := h.service.GetByID(r.Context(), tenantID, id)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	api.JSONResponse(w, http.StatusOK, toDTO(doc))
}

// Cancel handles POST /api/v1/documents/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, err := tenantAndUser(r)
	if err != nil {
		apperr.Write(w, apperr.Unauthenticated("invalid principal"))
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		apperr.Write(w, apperr.NotFound("document not found"))
		return
	}
	if err := h.service.Cancel(r.Context(), userID, tenantID, id, clientIP(r), r.UserAgent()); err != nil {
		apperr.Write(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Expire handles POST /api/v1/documents/{id}/expire.
func (h *Handler) Expire(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, err := tenantAndUser(r)
	if err != nil {
		apperr.Write(w, apperr.Unauthenticated("invalid principal"))
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		apperr.Write(w, apperr.NotFound("document not found"))
		return
	}
	if err := h.service.Expire(r.Context(), userID, tenantID, id, clientIP(r), r.UserAgent()); err != nil {
		apperr.Write(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Audit handles GET /api/v1/documents/{id}/audit.
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(api.GetTenantID(r.Context()))
	if err != nil {
		apperr.Write(w, apperr.Unauthenticated("invalid tenant context"))
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		apperr.Write(w, apperr.NotFound("document not found"))
		return
	}
	if _, err := h.service.GetByID(r.Context(), tenantID, id); err != nil {
		apperr.Write(w, err)
		return
	}
	signerIDs, err := h.signerIDsFor(r.Context(), id)
	if err != nil {
		apperr.Write(w, apperr.Internal(err))
		return
	}
	events, err := h.auditLog.Chain().EventsForDocument(r.Context(), id, signerIDs)
	if err != nil {
		apperr.Write(w, apperr.Internal(err))
		return
	}
	api.JSONResponse(w, http.StatusOK, map[string]any{"events": events})
}

// VerifyChain handles GET /api/v1/documents/{id}/verify-chain (spec §4.1).
func (h *Handler) VerifyChain(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(api.GetTenantID(r.Context()))
	if err != nil {
		apperr.Write(w, apperr.Unauthenticated("invalid tenant context"))
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		apperr.Write(w, apperr.NotFound("document not found"))
		return
	}
	if _, err := h.service.GetByID(r.Context(), tenantID, id); err != nil {
		apperr.Write(w, err)
		return
	}
	signerIDs, err := h.signerIDsFor(r.Context(), id)
	if err != nil {
		apperr.Write(w, apperr.Internal(err))
		return
	}
	result, err := h.auditLog.Chain().VerifyChainForDocument(r.Context(), id, signerIDs)
	if err != nil {
		apperr.Write(w, apperr.Internal(err))
		return
	}
	api.JSONResponse(w, http.StatusOK, result)
}

// ValidateFile handles POST /api/v1/documents/validate-file (public, spec §4.7).
func (h *Handler) ValidateFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(DefaultMaxDocumentSize); err != nil {
		apperr.Write(w, apperr.Validation("invalid multipart body"))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		apperr.Write(w, apperr.Validation("file is required"))
		return
	}
	defer file.Close()
	content, err := io.ReadAll(io.LimitReader(file, DefaultMaxDocumentSize+1))
	if err != nil {
		apperr.Write(w, apperr.Internal(err))
		return
	}
	result, err := h.service.ValidateBuffer(r.Context(), content, h.signerSummaries)
	if err != nil {
		apperr.Write(w, apperr.Internal(err))
		return
	}
	api.JSONResponse(w, http.StatusOK, result)
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

package document

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/austrian-business-infrastructure/fo/internal/apperr"
	"github.com/austrian-business-infrastructure/fo/internal/audit"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultMaxDocumentSize caps upload size to guard against memory exhaustion.
const DefaultMaxDocumentSize = 50 * 1024 * 1024

// Service implements the upload/status-machine/listing/stats operations of
// spec §4.7, grounded on the teacher's size-limited-read/sha256/dedup
// pattern but retargeted at the signing-document domain.
type Service struct {
	pool            *pgxpool.Pool
	repo            *Repository
	storage         Storage
	auditLog        *audit.Logger
	maxDocumentSize int64
}

func NewService(pool *pgxpool.Pool, repo *Repository, storage Storage, auditLog *audit.Logger) *Service {
	return &Service{pool: pool, repo: repo, storage: storage, auditLog: auditLog, maxDocumentSize: DefaultMaxDocumentSize}
}

// UploadInput is the input to Upload (spec §4.7 Upload).
type UploadInput struct {
	TenantID      uuid.UUID
	OwnerID       uuid.UUID
	File          io.Reader
	OriginalName  string
	MimeType      string
	Title         string
	DeadlineAt    *time.Time
	FolderID      *uuid.UUID
	AutoReminders bool
	IP            string
	UserAgent     string
}

// Upload runs the full create-then-store-then-finalize flow of spec §4.7
// Upload steps 1-5. The caller is responsible for running the quota gate
// (internal/tenant.CheckDocumentQuota) before calling this.
func (s *Service) Upload(ctx context.Context, in *UploadInput) (*Document, error) {
	title := in.Title
	if title == "" {
		title = in.OriginalName
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("begin upload tx: %w", err))
	}
	defer tx.Rollback(ctx)

	doc := &Document{
		TenantID: in.TenantID, OwnerID: in.OwnerID, FolderID: in.FolderID,
		Title: title, MimeType: in.MimeType, DeadlineAt: in.DeadlineAt,
		AutoReminders: in.AutoReminders, Status: StatusDraft,
	}
	if err := s.repo.Create(ctx, tx, doc); err != nil {
		return nil, apperr.Internal(fmt.Errorf("create document: %w", err))
	}

	limited := io.LimitReader(in.File, s.maxDocumentSize+1)
	content, err := io.ReadAll(limited)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("read upload: %w", err))
	}
	if int64(len(content)) > s.maxDocumentSize {
		return nil, apperr.Validation("document exceeds maximum allowed size")
	}

	ext := filepath.Ext(in.OriginalName)
	filename := doc.ID.String() + ext
	storageInfo, err := s.storage.Store(ctx, in.TenantID.String(), "", filename, bytes.NewReader(content), in.MimeType)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("store document: %w", err))
	}

	sum := sha256.Sum256(content)
	sha256Hex := hex.EncodeToString(sum[:])
	doc.Size = storageInfo.Size
	doc.StorageKey = storageInfo.Path
	doc.SHA256 = sha256Hex
	doc.Status = StatusReady

	if err := s.repo.FinalizeUpload(ctx, tx, doc.ID, storageInfo.Path, sha256Hex); err != nil {
		s.storage.Delete(ctx, storageInfo.Path)
		return nil, apperr.Internal(fmt.Errorf("finalize upload: %w", err))
	}

	if err := s.auditLog.Log(ctx, tx, audit.Event{
		TenantID: in.TenantID, ActorKind: audit.ActorUser, ActorID: &in.OwnerID,
		EntityType: audit.EntityDocument, EntityID: doc.ID, Action: audit.ActionStorageUploaded,
		IP: &in.IP, UserAgent: &in.UserAgent,
		Payload: map[string]any{"fileName": in.OriginalName, "sha256": sha256Hex},
	}); err != nil {
		s.storage.Delete(ctx, storageInfo.Path)
		return nil, apperr.Internal(fmt.Errorf("append audit: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		s.storage.Delete(ctx, storageInfo.Path)
		return nil, apperr.Internal(fmt.Errorf("commit upload: %w", err))
	}
	return doc, nil
}

func (s *Service) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Document, error) {
	d, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, apperr.NotFound("document not found")
	}
	return d, nil
}

// List returns documents matching the keyword filter (spec §4.7 Listing).
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, keyword string, limit, offset int) ([]*Document, error) {
	return s.repo.List(ctx, &DocumentFilter{TenantID: tenantID, Keyword: keyword, Limit: limit, Offset: offset})
}

func (s *Service) Stats(ctx context.Context, tenantID uuid.UUID) (*DocumentStats, error) {
	return s.repo.Stats(ctx, tenantID)
}

// Cancel and Expire are the owner-driven transitions of spec §4.7's status
// machine (READY/PARTIALLY_SIGNED → CANCELLED/EXPIRED).
func (s *Service) transition(ctx context.Context, actorID, tenantID, id uuid.UUID, newStatus, ip, userAgent string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperr.Internal(err)
	}
	defer tx.Rollback(ctx)

	doc, err := s.repo.GetForUpdate(ctx, tx, id)
	if err != nil || doc.TenantID != tenantID {
		return apperr.NotFound("document not found")
	}
	if doc.Status != StatusReady && doc.Status != StatusPartiallySigned {
		return apperr.Conflict("document is no longer pending")
	}
	if err := s.repo.UpdateStatus(ctx, tx, tenantID, id, newStatus); err != nil {
		return apperr.NotFound("document not found")
	}
	if err := s.auditLog.Log(ctx, tx, audit.Event{
		TenantID: tenantID, ActorKind: audit.ActorUser, ActorID: &actorID,
		EntityType: audit.EntityDocument, EntityID: id, Action: audit.ActionStatusChanged,
		IP: &ip, UserAgent: &userAgent, Payload: map[string]any{"newStatus": newStatus},
	}); err != nil {
		return apperr.Internal(err)
	}
	return tx.Commit(ctx)
}

func (s *Service) Cancel(ctx context.Context, actorID, tenantID, id uuid.UUID, ip, userAgent string) error {
	return s.transition(ctx, actorID, tenantID, id, StatusCancelled, ip, userAgent)
}

func (s *Service) Expire(ctx context.Context, actorID, tenantID, id uuid.UUID, ip, userAgent string) error {
	return s.transition(ctx, actorID, tenantID, id, StatusExpired, ip, userAgent)
}

// ValidationResult is the outcome of the public integrity re-check (spec
// §4.7 Integrity re-check).
type ValidationResult struct {
	Valid          bool
	Reason         string // NOT_FOUND | NOT_SIGNED
	HashCalculated string
	Title          string
	SignedAt       time.Time
	OwnerName      string
	Signers        []SignerSummary
}

// SignerSummary is the {name, email, status, signedAt} shape returned by
// validateBuffer for each signer of a SIGNED document.
type SignerSummary struct {
	Name     string
	Email    string
	Status   string
	SignedAt *time.Time
}

// ValidateBuffer recomputes sha256 and checks it against a SIGNED document
// (spec §4.7 Integrity re-check). signerLookup is supplied by the caller
// (cmd/server wiring) to avoid an import cycle on internal/signature.
func (s *Service) ValidateBuffer(ctx context.Context, content []byte, signerLookup func(context.Context, uuid.UUID) ([]SignerSummary, error)) (*ValidationResult, error) {
	sum := sha256.Sum256(content)
	hashCalc := hex.EncodeToString(sum[:])

	doc, err := s.repo.GetBySHA256WithOwner(ctx, hashCalc)
	if err != nil {
		return &ValidationResult{Valid: false, Reason: "NOT_FOUND", HashCalculated: hashCalc}, nil
	}
	if doc.Status != StatusSigned {
		return &ValidationResult{Valid: false, Reason: "NOT_SIGNED", HashCalculated: hashCalc}, nil
	}

	result := &ValidationResult{
		Valid: true, HashCalculated: hashCalc, Title: doc.Title, SignedAt: doc.UpdatedAt, OwnerName: doc.OwnerName,
	}
	if signerLookup != nil {
		signers, err := signerLookup(ctx, doc.ID)
		if err == nil {
			result.Signers = signers
		}
	}
	return result, nil
}

// DueReminders exposes the C10 scheduler hook (spec §4.10).
func (s *Service) DueReminders(ctx context.Context, now time.Time) ([]*Document, error) {
	return s.repo.DueReminders(ctx, now)
}

// ExpireOverdue implements the second C10 scheduler hook (spec §4.10),
// appending a STATUS_CHANGED audit event per transitioned document.
func (s *Service) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	ids, err := s.repo.ExpireOverdue(ctx, tx, now)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := s.auditLog.Log(ctx, tx, audit.Event{
			ActorKind: audit.ActorSystem, EntityType: audit.EntityDocument, EntityID: id,
			Action: audit.ActionStatusChanged, Payload: map[string]any{"newStatus": StatusExpired},
		}); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(ids), nil
}

package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pagination limits
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

var (
	ErrDocumentNotFound      = errors.New("document not found")
	ErrDuplicateDocument     = errors.New("document already exists")
	ErrSignedURLNotSupported = errors.New("signed URLs not supported")
	ErrDocumentTooLarge      = errors.New("document exceeds maximum allowed size")
)

// Status is the Document lifecycle state (spec §4.7 status machine).
const (
	StatusDraft            = "DRAFT"
	StatusReady            = "READY"
	StatusPartiallySigned  = "PARTIALLY_SIGNED"
	StatusSigned           = "SIGNED"
	StatusExpired          = "EXPIRED"
	StatusCancelled        = "CANCELLED"
)

// Document is an uploaded artifact awaiting or carrying signatures (spec §3 Document).
type Document struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	OwnerID        uuid.UUID
	FolderID       *uuid.UUID
	Title          string
	StorageKey     string
	MimeType       string
	Size           int64
	SHA256         string
	DeadlineAt     *time.Time
	AutoReminders  bool
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Joined for list/stats views.
	OwnerName string
}

// DocumentFilter holds filter criteria for listing documents (spec §4.7 Listing).
type DocumentFilter struct {
	TenantID uuid.UUID
	Keyword  string // "" | "pendentes" | "concluidos" | "lixeira"
	Limit    int
	Offset   int
}

// DocumentStats holds the counts/bytes summary of spec §4.7 Stats.
type DocumentStats struct {
	Pending int
	Signed  int
	Expired int
	Draft   int
	Total   int // excluding CANCELLED
	Bytes   int64
	Recent  []*Document // five most recently updated
}

// Repository handles document persistence.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const selectCols = `d.id, d.tenant_id, d.owner_id, d.folder_id, d.title, d.storage_key, d.mime_type,
	d.size, d.sha256, d.deadline_at, d.auto_reminders, d.status, d.created_at, d.updated_at`

func (r *Repository) scan(row pgx.Row) (*Document, error) {
	d := &Document{}
	if err := row.Scan(&d.ID, &d.TenantID, &d.OwnerID, &d.FolderID, &d.Title, &d.StorageKey, &d.MimeType,
		&d.Size, &d.SHA256, &d.DeadlineAt, &d.AutoReminders, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return d, nil
}

// Create inserts a Document in DRAFT status (spec §4.7 Upload step 1).
func (r *Repository) Create(ctx context.Context, tx pgx.Tx, d *Document) error {
	const q = `INSERT INTO documents (tenant_id, owner_id, folder_id, title, storage_key, mime_type,
		size, sha256, deadline_at, auto_reminders, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id, created_at, updated_at`
	return tx.QueryRow(ctx, q, d.TenantID, d.OwnerID, d.FolderID, d.Title, d.StorageKey, d.MimeType,
		d.Size, d.SHA256, d.DeadlineAt, d.AutoReminders, d.Status).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

// FinalizeUpload records the persisted storage key/hash and flips DRAFT→READY (spec §4.7 Upload step 4).
func (r *Repository) FinalizeUpload(ctx context.Context, tx pgx.Tx, id uuid.UUID, storageKey, sha256 string) error {
	_, err := tx.Exec(ctx, `UPDATE documents SET storage_key=$1, sha256=$2, status=$3, updated_at=now() WHERE id=$4`,
		storageKey, sha256, StatusReady, id)
	return err
}

// GetByID loads a document scoped to tenantID (cross-tenant access reads as not-found).
func (r *Repository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Document, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectCols+` FROM documents d WHERE d.id=$1 AND d.tenant_id=$2`, id, tenantID)
	return r.scan(row)
}

// GetByIDAny loads a document without tenant scoping, for the unauthenticated
// signer-session resolve path (spec §4.8 Resolve token), which only knows
// the document id via the signer/share-token chain.
func (r *Repository) GetByIDAny(ctx context.Context, id uuid.UUID) (*Document, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectCols+` FROM documents d WHERE d.id=$1`, id)
	return r.scan(row)
}

// GetForUpdate row-locks the document for the last-signer finalization race (spec §4.9 Idempotency).
func (r *Repository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Document, error) {
	row := tx.QueryRow(ctx, `SELECT `+selectCols+` FROM documents d WHERE d.id=$1 FOR UPDATE`, id)
	return r.scan(row)
}

// GetBySHA256 supports the public integrity re-check (spec §4.7 Integrity re-check).
func (r *Repository) GetBySHA256(ctx context.Context, sha256 string) (*Document, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectCols+` FROM documents d WHERE d.sha256=$1`, sha256)
	return r.scan(row)
}

// GetBySHA256WithOwner is GetBySHA256 plus the owner's name, for the public
// validate-file response (spec §4.7 Integrity re-check, ValidationResult.ownerName).
func (r *Repository) GetBySHA256WithOwner(ctx context.Context, sha256 string) (*Document, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectCols+`, u.name FROM documents d
		JOIN users u ON u.id = d.owner_id WHERE d.sha256=$1`, sha256)
	d := &Document{}
	if err := row.Scan(&d.ID, &d.TenantID, &d.OwnerID, &d.FolderID, &d.Title, &d.StorageKey, &d.MimeType,
		&d.Size, &d.SHA256, &d.DeadlineAt, &d.AutoReminders, &d.Status, &d.CreatedAt, &d.UpdatedAt, &d.OwnerName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return d, nil
}

// UpdateStatus transitions status inside tx (CANCELLED/EXPIRED/SIGNED transitions).
func (r *Repository) UpdateStatus(ctx context.Context, tx pgx.Tx, tenantID, id uuid.UUID, status string) error {
	tag, err := tx.Exec(ctx, `UPDATE documents SET status=$1, updated_at=now() WHERE id=$2 AND tenant_id=$3`, status, id, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// FinalizeSigned rewrites storage_key/sha256 and flips status to SIGNED (spec §4.9 step 8e).
func (r *Repository) FinalizeSigned(ctx context.Context, tx pgx.Tx, id uuid.UUID, storageKey, sha256 string) error {
	_, err := tx.Exec(ctx, `UPDATE documents SET storage_key=$1, sha256=$2, status=$3, updated_at=now() WHERE id=$4`,
		storageKey, sha256, StatusSigned, id)
	return err
}

// List returns documents matching the keyword filter, newest first (spec §4.7 Listing).
func (r *Repository) List(ctx context.Context, filter *DocumentFilter) ([]*Document, error) {
	query := `SELECT ` + selectCols + `, u.name FROM documents d JOIN users u ON u.id = d.owner_id WHERE d.tenant_id = $1`
	args := []any{filter.TenantID}

	switch filter.Keyword {
	case "pendentes":
		query += ` AND d.status = ANY($2)`
		args = append(args, []string{StatusReady, StatusPartiallySigned})
	case "concluidos":
		query += ` AND d.status = $2`
		args = append(args, StatusSigned)
	case "lixeira":
		query += ` AND d.status = ANY($2)`
		args = append(args, []string{StatusCancelled, StatusExpired})
	default:
		query += ` AND d.status != $2`
		args = append(args, StatusCancelled)
	}

	query += ` ORDER BY d.created_at DESC`
	limit := filter.Limit
	if limit <= 0 || limit > MaxPageSize {
		limit = DefaultPageSize
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		d := &Document{}
		if err := rows.Scan(&d.ID, &d.TenantID, &d.OwnerID, &d.FolderID, &d.Title, &d.StorageKey, &d.MimeType,
			&d.Size, &d.SHA256, &d.DeadlineAt, &d.AutoReminders, &d.Status, &d.CreatedAt, &d.UpdatedAt, &d.OwnerName); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// CountByTenant counts all of the tenant's documents, whatever their status, used by the quota gate (spec §4.6 Document limit).
func (r *Repository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE tenant_id=$1`, tenantID).Scan(&n)
	return n, err
}

// Stats computes the spec §4.7 Stats summary.
func (r *Repository) Stats(ctx context.Context, tenantID uuid.UUID) (*DocumentStats, error) {
	s := &DocumentStats{}
	const q = `SELECT
		COUNT(*) FILTER (WHERE status != 'CANCELLED') AS total,
		COUNT(*) FILTER (WHERE status IN ('READY','PARTIALLY_SIGNED')) AS pending,
		COUNT(*) FILTER (WHERE status = 'SIGNED') AS signed,
		COUNT(*) FILTER (WHERE status = 'EXPIRED') AS expired,
		COUNT(*) FILTER (WHERE status = 'DRAFT') AS draft,
		COALESCE(SUM(size) FILTER (WHERE status != 'CANCELLED'), 0) AS bytes
		FROM documents WHERE tenant_id = $1`
	if err := r.db.QueryRow(ctx, q, tenantID).Scan(&s.Total, &s.Pending, &s.Signed, &s.Expired, &s.Draft, &s.Bytes); err != nil {
		return nil, fmt.Errorf("document stats: %w", err)
	}

	rows, err := r.db.Query(ctx, `SELECT `+selectCols+`, u.name FROM documents d JOIN users u ON u.id = d.owner_id
		WHERE d.tenant_id=$1 ORDER BY d.updated_at DESC LIMIT 5`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("recent documents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		d := &Document{}
		if err := rows.Scan(&d.ID, &d.TenantID, &d.OwnerID, &d.FolderID, &d.Title, &d.StorageKey, &d.MimeType,
			&d.Size, &d.SHA256, &d.DeadlineAt, &d.AutoReminders, &d.Status, &d.CreatedAt, &d.UpdatedAt, &d.OwnerName); err != nil {
			return nil, err
		}
		s.Recent = append(s.Recent, d)
	}
	return s, rows.Err()
}

// DueReminders returns documents due for a reminder in the next 24h (spec §4.10).
func (r *Repository) DueReminders(ctx context.Context, now time.Time) ([]*Document, error) {
	rows, err := r.db.Query(ctx, `SELECT `+selectCols+` FROM documents d
		WHERE d.status = ANY($1) AND d.auto_reminders AND d.deadline_at IS NOT NULL
		AND d.deadline_at BETWEEN $2 AND $3`,
		[]string{StatusReady, StatusPartiallySigned}, now, now.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []*Document
	for rows.Next() {
		d, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// ExpireOverdue transitions past-deadline documents to EXPIRED, returning the ids changed (spec §4.10).
func (r *Repository) ExpireOverdue(ctx context.Context, tx pgx.Tx, now time.Time) ([]uuid.UUID, error) {
	rows, err := tx.Query(ctx, `UPDATE documents SET status=$1, updated_at=now()
		WHERE status = ANY($2) AND deadline_at < $3 RETURNING id`,
		StatusExpired, []string{StatusReady, StatusPartiallySigned}, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

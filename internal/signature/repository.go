package signature

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrCertificateNotFound = errors.New("certificate not found")

// Repository persists the Certificate row (spec §3 Certificate).
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertCertificate inserts the unique-per-document Certificate row inside
// tx (spec §4.9 step 8f).
func (r *Repository) InsertCertificate(ctx context.Context, tx pgx.Tx, c *Certificate) error {
	const q = `INSERT INTO certificates (document_id, storage_key, sha256, issued_at)
	           VALUES ($1,$2,$3,$4) RETURNING id`
	return tx.QueryRow(ctx, q, c.DocumentID, c.StorageKey, c.SHA256, c.IssuedAt).Scan(&c.ID)
}

func (r *Repository) ByDocumentID(ctx context.Context, documentID uuid.UUID) (*Certificate, error) {
	const q = `SELECT id, document_id, storage_key, sha256, issued_at FROM certificates WHERE document_id = $1`
	c := &Certificate{}
	err := r.pool.QueryRow(ctx, q, documentID).Scan(&c.ID, &c.DocumentID, &c.StorageKey, &c.SHA256, &c.IssuedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCertificateNotFound
		}
		return nil, err
	}
	return c, nil
}

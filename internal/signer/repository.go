package signer

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrSignerNotFound = errors.New("signer not found")
	ErrTokenNotFound  = errors.New("share token not found")
)

// Repository persists Signer and ShareToken rows.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const signerCols = `id, document_id, name, email, cpf, phone_e164, qualification, auth_channels,
	"order", status, signed_at, ip, signature_uuid, signature_hash, signature_artefact_path,
	position_x, position_y, position_page, art_confirmed, created_at`

func scanSigner(row pgx.Row) (*Signer, error) {
	s := &Signer{}
	if err := row.Scan(&s.ID, &s.DocumentID, &s.Name, &s.Email, &s.CPF, &s.PhoneE164, &s.Qualification,
		&s.AuthChannels, &s.Order, &s.Status, &s.SignedAt, &s.IP, &s.SignatureUUID, &s.SignatureHash,
		&s.SignatureArtefactPath, &s.PositionX, &s.PositionY, &s.PositionPage, &s.ArtConfirmed, &s.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSignerNotFound
		}
		return nil, err
	}
	return s, nil
}

// Create inserts a Signer row in PENDING status (invite step).
func (r *Repository) Create(ctx context.Context, tx pgx.Tx, s *Signer) error {
	const q = `INSERT INTO signers (document_id, name, email, cpf, phone_e164, qualification, auth_channels, "order", status)
	           VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id, created_at`
	return tx.QueryRow(ctx, q, s.DocumentID, s.Name, s.Email, s.CPF, s.PhoneE164, s.Qualification,
		s.AuthChannels, s.Order, StatusPending).Scan(&s.ID, &s.CreatedAt)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Signer, error) {
	return scanSigner(r.pool.QueryRow(ctx, `SELECT `+signerCols+` FROM signers WHERE id = $1`, id))
}

func (r *Repository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Signer, error) {
	return scanSigner(tx.QueryRow(ctx, `SELECT `+signerCols+` FROM signers WHERE id = $1 FOR UPDATE`, id))
}

// IDsForDocument supports the document audit chain's DOCUMENT∪SIGNER union
// query (spec §4.1, wired as document.Handler's signerIDsFor callback).
func (r *Repository) IDsForDocument(ctx context.Context, documentID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM signers WHERE document_id = $1`, documentID)
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

// ForDocument lists every signer of a document ordered by Order (used by
// validateBuffer's signer lookup and by SendReminders; the commit
// algorithm's allSigned re-read uses ForDocumentTx).
func (r *Repository) ForDocument(ctx context.Context, documentID uuid.UUID) ([]*Signer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+signerCols+` FROM signers WHERE document_id = $1 ORDER BY "order"`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Signer
	for rows.Next() {
		s, err := scanSigner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ForDocumentTx is the transactional counterpart used inside commit's
// re-read step (spec §4.9 step 6), returning rows without locking (the
// document row lock in step 8 already serializes finalization).
func (r *Repository) ForDocumentTx(ctx context.Context, tx pgx.Tx, documentID uuid.UUID) ([]*Signer, error) {
	rows, err := tx.Query(ctx, `SELECT `+signerCols+` FROM signers WHERE document_id = $1 ORDER BY "order"`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Signer
	for rows.Next() {
		s, err := scanSigner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// MarkViewed flips PENDING→VIEWED on first successful token resolve.
func (r *Repository) MarkViewed(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE signers SET status = $1 WHERE id = $2 AND status = $3`, StatusViewed, id, StatusPending)
	return err
}

// Identify persists the {cpf, phone} identification step.
func (r *Repository) Identify(ctx context.Context, id uuid.UUID, cpf, phone *string) error {
	_, err := r.pool.Exec(ctx, `UPDATE signers SET cpf = COALESCE($2, cpf), phone_e164 = COALESCE($3, phone_e164) WHERE id = $1`, id, cpf, phone)
	return err
}

// SavePosition persists the signature field placement chosen by the signer.
func (r *Repository) SavePosition(ctx context.Context, id uuid.UUID, x, y float64, page int) error {
	_, err := r.pool.Exec(ctx, `UPDATE signers SET position_x = $2, position_y = $3, position_page = $4 WHERE id = $1`, id, x, y, page)
	return err
}

// ConfirmArt flags the signer's chosen signature appearance as confirmed,
// ahead of commit (spec §4.8 "confirm art").
func (r *Repository) ConfirmArt(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE signers SET art_confirmed = true WHERE id = $1`, id)
	return err
}

// CommitSign applies spec §4.9 step 4 inside tx: the one transition that
// finalizes a signer's row. The caller must have already verified
// status ∈ {PENDING, VIEWED}.
func (r *Repository) CommitSign(ctx context.Context, tx pgx.Tx, id uuid.UUID, signatureHash, artefactPath, ip string, sigUUID uuid.UUID, signedAt time.Time) error {
	const q = `UPDATE signers SET status = $2, signed_at = $3, signature_hash = $4,
	           signature_artefact_path = $5, ip = $6, signature_uuid = $7
	           WHERE id = $1 AND status IN ($8, $9)`
	tag, err := tx.Exec(ctx, q, id, StatusSigned, signedAt, signatureHash, artefactPath, ip, sigUUID, StatusPending, StatusViewed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSignerNotFound
	}
	return nil
}

// --- ShareToken ---

// MintShareToken generates a CSPRNG token (>=256 bits) and returns the raw
// base64url token for delivery plus its sha256 hex hash for the caller to
// persist (spec §4.1 mintShareToken).
func MintShareToken() (raw, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	raw = base64.RawURLEncoding.EncodeToString(buf)
	sum := sha256.Sum256([]byte(raw))
	hash = hex.EncodeToString(sum[:])
	return raw, hash, nil
}

func (r *Repository) CreateShareToken(ctx context.Context, tx pgx.Tx, t *ShareToken) error {
	const q = `INSERT INTO share_tokens (document_id, signer_id, token_hash, expires_at, times_used)
	           VALUES ($1,$2,$3,$4,0) RETURNING id`
	return tx.QueryRow(ctx, q, t.DocumentID, t.SignerID, t.TokenHash, t.ExpiresAt).Scan(&t.ID)
}

// ByTokenHash resolves a raw token's hash to its ShareToken row (spec §4.8
// Resolve token).
func (r *Repository) ByTokenHash(ctx context.Context, hash string) (*ShareToken, error) {
	const q = `SELECT id, document_id, signer_id, token_hash, expires_at, times_used FROM share_tokens WHERE token_hash = $1`
	t := &ShareToken{}
	err := r.pool.QueryRow(ctx, q, hash).Scan(&t.ID, &t.DocumentID, &t.SignerID, &t.TokenHash, &t.ExpiresAt, &t.TimesUsed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *Repository) IncrementUse(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE share_tokens SET times_used = times_used + 1 WHERE id = $1`, id)
	return err
}

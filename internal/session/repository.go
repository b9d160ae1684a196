// Package session persists refresh credentials (spec Session entity).
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/austrian-business-infrastructure/fo/pkg/cache"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrExpired  = errors.New("session has expired")
)

// Session is a refresh credential row (spec §3 Session).
type Session struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	RefreshTokenHash string
	UserAgent        *string
	IPAddress        *string
	ExpiresAt        time.Time
	CreatedAt        time.Time
}

// Repository is the pgx-backed Session store. Unlike the teacher's
// Redis-backed refresh store, Session is a Postgres row here because
// Refresh (spec §4.3) requires enumerating and deleting a specific row,
// not a keyed cache lookup. When Redis is configured, Create also writes a
// session:{id} key and Delete removes it; nothing reads those keys.
type Repository struct {
	pool  *pgxpool.Pool
	redis *cache.Client
	ttl   time.Duration
}

func NewRepository(pool *pgxpool.Pool, redis *cache.Client, ttl time.Duration) *Repository {
	return &Repository{pool: pool, redis: redis, ttl: ttl}
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Create persists a new Session for a freshly minted refresh credential.
func (r *Repository) Create(ctx context.Context, tx pgx.Tx, userID uuid.UUID, rawRefreshToken, userAgent, ip string, expiresAt time.Time) (*Session, error) {
	s := &Session{
		ID:               uuid.New(),
		UserID:           userID,
		RefreshTokenHash: hashToken(rawRefreshToken),
		ExpiresAt:        expiresAt,
	}
	if userAgent != "" {
		s.UserAgent = &userAgent
	}
	if ip != "" {
		s.IPAddress = &ip
	}

	q := `INSERT INTO sessions (id, user_id, refresh_token_hash, user_agent, ip_address, expires_at)
	      VALUES ($1,$2,$3,$4,$5,$6) RETURNING created_at`
	exec := pgxExecer(tx, r.pool)
	if err := exec.QueryRow(ctx, q, s.ID, s.UserID, s.RefreshTokenHash, s.UserAgent, s.IPAddress, s.ExpiresAt).Scan(&s.CreatedAt); err != nil {
		return nil, err
	}

	if r.redis != nil {
		_ = r.redis.Set(ctx, "session:"+s.ID.String(), userID.String(), r.ttl).Err()
	}
	return s, nil
}

// FindByRawToken locates the Session whose refreshTokenHash matches raw,
// scoped to userID as spec §4.3 Refresh requires ("enumerate Sessions for
// the embedded userId and locate the one whose refreshTokenHash matches").
func (r *Repository) FindByRawToken(ctx context.Context, userID uuid.UUID, raw string) (*Session, error) {
	hash := hashToken(raw)
	q := `SELECT id, user_id, refresh_token_hash, user_agent, ip_address, expires_at, created_at
	      FROM sessions WHERE user_id = $1 AND refresh_token_hash = $2`
	s := &Session{}
	err := r.pool.QueryRow(ctx, q, userID, hash).Scan(
		&s.ID, &s.UserID, &s.RefreshTokenHash, &s.UserAgent, &s.IPAddress, &s.ExpiresAt, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if time.Now().After(s.ExpiresAt) {
		_ = r.Delete(ctx, nil, s.ID)
		return nil, ErrExpired
	}
	return s, nil
}

// Delete removes a Session row. Pass a non-nil tx to run inside a
// transaction (rotation), or nil to run standalone (logout).
func (r *Repository) Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	exec := pgxExecer(tx, r.pool)
	if _, err := exec.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return err
	}
	if r.redis != nil {
		r.redis.Del(ctx, "session:"+id.String())
	}
	return nil
}

// DeleteAllForUser removes every Session belonging to a user (used after a
// password reset and by DELETE /api/v1/sessions).
func (r *Repository) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*Session, error) {
	q := `SELECT id, user_id, refresh_token_hash, user_agent, ip_address, expires_at, created_at
	      FROM sessions WHERE user_id = $1 AND expires_at > NOW() ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		s := &Session{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.RefreshTokenHash, &s.UserAgent, &s.IPAddress, &s.ExpiresAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CleanupExpired deletes expired sessions. Nothing in cmd/ calls it.
func (r *Repository) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

// execer is the subset of pgx.Tx / pgxpool.Pool that Create/Delete need,
// so the same code path works whether or not the caller has an open
// transaction (rotation runs inside one, logout does not).
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func pgxExecer(tx pgx.Tx, pool *pgxpool.Pool) execer {
	if tx != nil {
		return tx
	}
	return pool
}

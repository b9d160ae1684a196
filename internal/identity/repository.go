// Package identity holds the spec's global User entity — the account a
// person authenticates as, distinct from TenantMember (internal/tenant),
// which is the per-tenant role assignment for that account.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound     = errors.New("user not found")
	ErrEmailInUse   = errors.New("email already in use")
	ErrCpfInUse     = errors.New("cpf already in use")
)

// Status is the account lifecycle state.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// User is the spec §3 User entity: a global account, home-tenanted via
// TenantID, carrying a global Role (SUPER_ADMIN or ADMIN — the role a
// TenantMember row can override per-tenant).
type User struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	CPF          *string
	Phone        *string
	Role         string
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Repository provides User data access.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts user inside tx. Call from Register, which owns the
// tenant/plan/member/audit transaction (spec §4.3).
func (r *Repository) Create(ctx context.Context, tx pgx.Tx, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Email = strings.ToLower(u.Email)
	const q = `INSERT INTO users (id, tenant_id, name, email, password_hash, cpf, phone, role, status)
	           VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING created_at, updated_at`
	err := tx.QueryRow(ctx, q, u.ID, u.TenantID, u.Name, u.Email, u.PasswordHash, u.CPF, u.Phone, u.Role, u.Status).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return ErrEmailInUse
		}
		if isUniqueViolation(err, "users_cpf_key") {
			return ErrCpfInUse
		}
		return err
	}
	return nil
}

func (r *Repository) ByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanOne(ctx, `SELECT id, tenant_id, name, email, password_hash, cpf, phone, role, status,
	       created_at, updated_at
	       FROM users WHERE email = $1`, strings.ToLower(email))
}

func (r *Repository) ByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.scanOne(ctx, `SELECT id, tenant_id, name, email, password_hash, cpf, phone, role, status,
	       created_at, updated_at
	       FROM users WHERE id = $1`, id)
}

func (r *Repository) scanOne(ctx context.Context, q string, arg any) (*User, error) {
	u := &User{}
	err := r.pool.QueryRow(ctx, q, arg).Scan(&u.ID, &u.TenantID, &u.Name, &u.Email, &u.PasswordHash, &u.CPF, &u.Phone,
		&u.Role, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// SetPassword updates passwordHash inside tx (used by resetPassword, which
// must destroy the OTP row in the same transaction — spec §4.3).
func (r *Repository) SetPassword(ctx context.Context, tx pgx.Tx, userID uuid.UUID, passwordHash string) error {
	_, err := tx.Exec(ctx, `UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`, passwordHash, userID)
	return err
}

func isUniqueViolation(err error, constraint string) bool {
	return strings.Contains(err.Error(), constraint) || strings.Contains(err.Error(), "duplicate key")
}

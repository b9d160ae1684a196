package tenant

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
	ErrMemberNotFound   = errors.New("tenant member not found")
	ErrAlreadyActive    = errors.New("user is already an active member")
	ErrUserNotFound     = errors.New("invited email does not correspond to a registered user")
)

// MemberStatus is the TenantMember lifecycle state (spec §3 TenantMember).
type MemberStatus string

const (
	MemberPending  MemberStatus = "PENDING"
	MemberActive   MemberStatus = "ACTIVE"
	MemberDeclined MemberStatus = "DECLINED"
)

// Member is a user's membership in a non-personal tenant (spec §3
// TenantMember). (TenantID, Email) is unique (invariant 8).
type Member struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	UserID     *uuid.UUID
	Email      string
	Role       string
	Status     MemberStatus
	InvitedAt  time.Time
}

// MemberRepository provides TenantMember data access.
type MemberRepository struct {
	pool *pgxpool.Pool
}

func NewMemberRepository(pool *pgxpool.Pool) *MemberRepository {
	return &MemberRepository{pool: pool}
}

// ByUserAndTenant locates the membership authorizing a switch-tenant
// request (spec §4.3 Switch tenant step b).
func (r *MemberRepository) ByUserAndTenant(ctx context.Context, userID, tenantID uuid.UUID) (*Member, error) {
	const q = `SELECT id, tenant_id, user_id, email, role, status, invited_at
	           FROM tenant_members WHERE user_id = $1 AND tenant_id = $2`
	return r.scan(r.pool.QueryRow(ctx, q, userID, tenantID))
}

// ActiveForUser lists every ACTIVE membership for a user (spec §4.4 List
// my tenants).
func (r *MemberRepository) ActiveForUser(ctx context.Context, userID uuid.UUID) ([]*Member, error) {
	const q = `SELECT id, tenant_id, user_id, email, role, status, invited_at
	           FROM tenant_members WHERE user_id = $1 AND status = 'ACTIVE'`
	return r.query(ctx, q, userID)
}

// Pending returns TenantMember rows where (userId OR email) matches and
// status=PENDING (spec §4.4 listPending).
func (r *MemberRepository) Pending(ctx context.Context, userID uuid.UUID, email string) ([]*Member, error) {
	const q = `SELECT id, tenant_id, user_id, email, role, status, invited_at
	           FROM tenant_members WHERE status = 'PENDING' AND (user_id = $1 OR email = $2)`
	return r.query(ctx, q, userID, strings.ToLower(email))
}

func (r *MemberRepository) query(ctx context.Context, q string, args ...any) ([]*Member, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Member
	for rows.Next() {
		m := &Member{}
		if err := rows.Scan(&m.ID, &m.TenantID, &m.UserID, &m.Email, &m.Role, &m.Status, &m.InvitedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MemberRepository) scan(row pgx.Row) (*Member, error) {
	m := &Member{}
	if err := row.Scan(&m.ID, &m.TenantID, &m.UserID, &m.Email, &m.Role, &m.Status, &m.InvitedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return m, nil
}

// CreateTx inserts a Member row inside tx (Register's initial
// self-membership, spec §4.3 step 5).
func (r *MemberRepository) CreateTx(ctx context.Context, tx pgx.Tx, m *Member) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.InvitedAt.IsZero() {
		m.InvitedAt = time.Now().UTC()
	}
	m.Email = strings.ToLower(m.Email)
	const q = `INSERT INTO tenant_members (id, tenant_id, user_id, email, role, status, invited_at)
	           VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := tx.Exec(ctx, q, m.ID, m.TenantID, m.UserID, m.Email, m.Role, m.Status, m.InvitedAt)
	return err
}

// Upsert inserts or updates the (tenantId, email) row for Invite member
// (spec §4.4): status=PENDING, role, userId=targetUser.id, invitedAt=now.
func (r *MemberRepository) Upsert(ctx context.Context, m *Member) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.Email = strings.ToLower(m.Email)
	m.InvitedAt = time.Now().UTC()
	const q = `INSERT INTO tenant_members (id, tenant_id, user_id, email, role, status, invited_at)
	           VALUES ($1,$2,$3,$4,$5,$6,$7)
	           ON CONFLICT (tenant_id, email) DO UPDATE
	             SET user_id = EXCLUDED.user_id, role = EXCLUDED.role,
	                 status = EXCLUDED.status, invited_at = EXCLUDED.invited_at`
	_, err := r.pool.Exec(ctx, q, m.ID, m.TenantID, m.UserID, m.Email, m.Role, m.Status, m.InvitedAt)
	return err
}

// Respond sets status to ACTIVE or DECLINED, populating userID if the row
// had none yet (spec §4.4 respond).
func (r *MemberRepository) Respond(ctx context.Context, inviteID, userID uuid.UUID, status MemberStatus) error {
	const q = `UPDATE tenant_members SET status = $2, user_id = $3 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, inviteID, status, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (r *MemberRepository) ByID(ctx context.Context, id uuid.UUID) (*Member, error) {
	const q = `SELECT id, tenant_id, user_id, email, role, status, invited_at FROM tenant_members WHERE id = $1`
	return r.scan(r.pool.QueryRow(ctx, q, id))
}

package tenant

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrTenantNotFound    = errors.New("tenant not found")
	ErrTenantSlugExists  = errors.New("tenant slug already exists")
	ErrInvalidTenantSlug = errors.New("invalid tenant slug format")
)

// Status is the Tenant lifecycle state (spec §3 Tenant).
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusInactive  Status = "INACTIVE"
	StatusSuspended Status = "SUSPENDED"
)

// SubscriptionStatus mirrors the Asaas subscription lifecycle.
type SubscriptionStatus string

const (
	SubscriptionPending  SubscriptionStatus = "PENDING"
	SubscriptionActive   SubscriptionStatus = "ACTIVE"
	SubscriptionOverdue  SubscriptionStatus = "OVERDUE"
	SubscriptionCanceled SubscriptionStatus = "CANCELED"
)

// Tenant is the isolation boundary (spec §3 Tenant).
type Tenant struct {
	ID                   uuid.UUID
	Name                 string
	Slug                 string
	Status               Status
	PlanID               uuid.UUID
	AsaasCustomerID      *string
	AsaasSubscriptionID  *string
	SubscriptionStatus   *SubscriptionStatus
	Settings             map[string]interface{}
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Repository provides tenant data access.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts tenant inside tx (Register and CreateWithAdmin both run
// inside a wider transaction — spec §4.3/§4.4).
func (r *Repository) Create(ctx context.Context, tx pgx.Tx, t *Tenant) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Settings == nil {
		t.Settings = make(map[string]interface{})
	}
	const q = `INSERT INTO tenants (id, name, slug, status, plan_id, settings)
	           VALUES ($1,$2,$3,$4,$5,$6) RETURNING created_at, updated_at`
	err := tx.QueryRow(ctx, q, t.ID, t.Name, t.Slug, t.Status, t.PlanID, t.Settings).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err, "tenants_slug_key") {
			return ErrTenantSlugExists
		}
		return err
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	const q = `SELECT id, name, slug, status, plan_id, asaas_customer_id, asaas_subscription_id,
	                  subscription_status, settings, created_at, updated_at
	           FROM tenants WHERE id = $1`
	return r.scanOne(ctx, q, id)
}

func (r *Repository) GetBySlug(ctx context.Context, slug string) (*Tenant, error) {
	const q = `SELECT id, name, slug, status, plan_id, asaas_customer_id, asaas_subscription_id,
	                  subscription_status, settings, created_at, updated_at
	           FROM tenants WHERE slug = $1`
	return r.scanOne(ctx, q, slug)
}

// ByAsaasSubscriptionID resolves the tenant a webhook status update applies
// to (spec §6 External Interfaces).
func (r *Repository) ByAsaasSubscriptionID(ctx context.Context, asaasSubscriptionID string) (*Tenant, error) {
	const q = `SELECT id, name, slug, status, plan_id, asaas_customer_id, asaas_subscription_id,
	                  subscription_status, settings, created_at, updated_at
	           FROM tenants WHERE asaas_subscription_id = $1`
	return r.scanOne(ctx, q, asaasSubscriptionID)
}

func (r *Repository) scanOne(ctx context.Context, q string, arg any) (*Tenant, error) {
	t := &Tenant{}
	err := r.pool.QueryRow(ctx, q, arg).Scan(&t.ID, &t.Name, &t.Slug, &t.Status, &t.PlanID, &t.AsaasCustomerID,
		&t.AsaasSubscriptionID, &t.SubscriptionStatus, &t.Settings, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *Repository) Update(ctx context.Context, t *Tenant) error {
	const q = `UPDATE tenants SET name=$2, slug=$3, status=$4, plan_id=$5, asaas_customer_id=$6,
	             asaas_subscription_id=$7, subscription_status=$8, settings=$9, updated_at=now()
	           WHERE id=$1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, t.ID, t.Name, t.Slug, t.Status, t.PlanID, t.AsaasCustomerID,
		t.AsaasSubscriptionID, t.SubscriptionStatus, t.Settings).Scan(&t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTenantNotFound
		}
		if isDuplicateKeyError(err, "tenants_slug_key") {
			return ErrTenantSlugExists
		}
		return err
	}
	return nil
}

// Exists checks whether slug is already taken (used by the slug-suffix
// collision loop in Register — spec §4.3 step 1, §9 slug-race note).
func (r *Repository) Exists(ctx context.Context, tx pgx.Tx, slug string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM tenants WHERE slug = $1)`
	var exists bool
	err := tx.QueryRow(ctx, q, slug).Scan(&exists)
	return exists, err
}

// CountOccupancy returns (#ACTIVE users with tenantId=t) + (#TenantMember
// with tenantId=t and status ∈ predicateStatuses) for quota enforcement
// (spec §4.4 Invite member precondition, invariant 6).
func (r *Repository) CountOccupancy(ctx context.Context, tenantID uuid.UUID, memberStatuses []string) (int, error) {
	const q = `SELECT
	             (SELECT count(*) FROM users WHERE tenant_id = $1 AND status = 'ACTIVE') +
	             (SELECT count(*) FROM tenant_members WHERE tenant_id = $1 AND status = ANY($2))`
	var n int
	err := r.pool.QueryRow(ctx, q, tenantID, memberStatuses).Scan(&n)
	return n, err
}

func isDuplicateKeyError(err error, constraint string) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return containsAt(errStr, "23505") || containsAt(errStr, constraint) || containsAt(errStr, "unique constraint")
}

func containsAt(s, substr string) bool {
	if len(substr) == 0 || len(s) < len(substr) {
		return len(substr) == 0
	}
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

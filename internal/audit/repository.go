package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog is one tamper-evident event (spec §3 AuditLog).
type AuditLog struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	ActorKind     ActorKind
	ActorID       *uuid.UUID
	EntityType    EntityType
	EntityID      uuid.UUID
	Action        Action
	IP            *string
	UserAgent     *string
	PayloadJSON   map[string]any
	PrevEventHash string
	EventHash     string
	CreatedAt     time.Time
}

// Repository persists AuditLog rows.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LatestForEntity returns the most recent event for entityID, locking the
// row set (FOR UPDATE) so concurrent appends to the same entity serialize —
// spec §4.1 requires a second append in the same transaction to observe the
// first one's hash.
func (r *Repository) LatestForEntity(ctx context.Context, tx pgx.Tx, entityID uuid.UUID) (*AuditLog, error) {
	const q = `SELECT id, tenant_id, actor_kind, actor_id, entity_type, entity_id, action,
	                  ip, user_agent, payload_json, prev_event_hash, event_hash, created_at
	           FROM audit_logs WHERE entity_id = $1
	           ORDER BY created_at DESC, id DESC LIMIT 1 FOR UPDATE`
	row := tx.QueryRow(ctx, q, entityID)
	a := &AuditLog{}
	err := row.Scan(&a.ID, &a.TenantID, &a.ActorKind, &a.ActorID, &a.EntityType, &a.EntityID, &a.Action,
		&a.IP, &a.UserAgent, &a.PayloadJSON, &a.PrevEventHash, &a.EventHash, &a.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// Insert persists a single AuditLog row inside tx.
func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, a *AuditLog) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	const q = `INSERT INTO audit_logs
	             (id, tenant_id, actor_kind, actor_id, entity_type, entity_id, action,
	              ip, user_agent, payload_json, prev_event_hash, event_hash, created_at)
	           VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := tx.Exec(ctx, q, a.ID, a.TenantID, a.ActorKind, a.ActorID, a.EntityType, a.EntityID, a.Action,
		a.IP, a.UserAgent, a.PayloadJSON, a.PrevEventHash, a.EventHash, a.CreatedAt)
	return err
}

// ForDocumentChain returns every event belonging to a document's chain:
// (entityType=DOCUMENT, entityId=documentID) union (entityType=SIGNER,
// entityId IN signerIDs), ordered by createdAt ascending (spec §4.1
// verifyChainForDocument step 1).
func (r *Repository) ForDocumentChain(ctx context.Context, documentID uuid.UUID, signerIDs []uuid.UUID) ([]*AuditLog, error) {
	const q = `SELECT id, tenant_id, actor_kind, actor_id, entity_type, entity_id, action,
	                  ip, user_agent, payload_json, prev_event_hash, event_hash, created_at
	           FROM audit_logs
	           WHERE (entity_type = 'DOCUMENT' AND entity_id = $1)
	              OR (entity_type = 'SIGNER' AND entity_id = ANY($2))
	           ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, q, documentID, signerIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*AuditLog
	for rows.Next() {
		a := &AuditLog{}
		if err := rows.Scan(&a.ID, &a.TenantID, &a.ActorKind, &a.ActorID, &a.EntityType, &a.EntityID, &a.Action,
			&a.IP, &a.UserAgent, &a.PayloadJSON, &a.PrevEventHash, &a.EventHash, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ForTenant lists events scoped to a tenant, newest first, for audit review UIs.
func (r *Repository) ForTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*AuditLog, error) {
	const q = `SELECT id, tenant_id, actor_kind, actor_id, entity_type, entity_id, action,
	                  ip, user_agent, payload_json, prev_event_hash, event_hash, created_at
	           FROM audit_logs WHERE tenant_id = $1
	           ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, q, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*AuditLog
	for rows.Next() {
		a := &AuditLog{}
		if err := rows.Scan(&a.ID, &a.TenantID, &a.ActorKind, &a.ActorID, &a.EntityType, &a.EntityID, &a.Action,
			&a.IP, &a.UserAgent, &a.PayloadJSON, &a.PrevEventHash, &a.EventHash, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

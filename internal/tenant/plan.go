package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrPlanNotFound = errors.New("plan not found")

const (
	PlanGratuito     = "gratuito"
	PlanBasico       = "basico"
	PlanProfissional = "profissional"
	PlanEmpresa      = "empresa"
)

// Plan is the catalog row a Tenant is billed and quota-limited against
// (spec §3 Plan). Seeded once by migration; mutable only by a super-admin.
type Plan struct {
	ID            uuid.UUID
	Slug          string
	Price         float64
	UserLimit     int
	DocumentLimit int
	Features      []string
}

// PlanRepository provides Plan data access.
type PlanRepository struct {
	pool *pgxpool.Pool
}

func NewPlanRepository(pool *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{pool: pool}
}

func (r *PlanRepository) BySlug(ctx context.Context, slug string) (*Plan, error) {
	const q = `SELECT id, slug, price, user_limit, document_limit, features FROM plans WHERE slug = $1`
	return r.scan(r.pool.QueryRow(ctx, q, slug))
}

// BySlugTx resolves a plan within tx, so Register and CreateWithAdmin read
// it inside their own transaction. The plan row is not locked.
func (r *PlanRepository) BySlugTx(ctx context.Context, tx pgx.Tx, slug string) (*Plan, error) {
	const q = `SELECT id, slug, price, user_limit, document_limit, features FROM plans WHERE slug = $1`
	return r.scan(tx.QueryRow(ctx, q, slug))
}

func (r *PlanRepository) ByID(ctx context.Context, id uuid.UUID) (*Plan, error) {
	const q = `SELECT id, slug, price, user_limit, document_limit, features FROM plans WHERE id = $1`
	return r.scan(r.pool.QueryRow(ctx, q, id))
}

func (r *PlanRepository) scan(row pgx.Row) (*Plan, error) {
	p := &Plan{}
	if err := row.Scan(&p.ID, &p.Slug, &p.Price, &p.UserLimit, &p.DocumentLimit, &p.Features); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *PlanRepository) List(ctx context.Context) ([]*Plan, error) {
	const q = `SELECT id, slug, price, user_limit, document_limit, features FROM plans ORDER BY price ASC`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Plan
	for rows.Next() {
		p := &Plan{}
		if err := rows.Scan(&p.ID, &p.Slug, &p.Price, &p.UserLimit, &p.DocumentLimit, &p.Features); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update lets a super-admin edit catalog pricing/limits (spec §3 Plan:
// "mutable by super-admin").
func (r *PlanRepository) Update(ctx context.Context, p *Plan) error {
	const q = `UPDATE plans SET price=$2, user_limit=$3, document_limit=$4, features=$5 WHERE id=$1`
	tag, err := r.pool.Exec(ctx, q, p.ID, p.Price, p.UserLimit, p.DocumentLimit, p.Features)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPlanNotFound
	}
	return nil
}

// Package folder owns the Folder entity (spec §3 Folder), the hierarchical
// container documents may be organized under (spec C7 "folders").
package folder

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrFolderNotFound = errors.New("folder not found")

// Folder is a hierarchical container (spec §3 Folder).
type Folder struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	OwnerID   uuid.UUID
	ParentID  *uuid.UUID
	Name      string
	Color     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository handles folder persistence.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const selectCols = `id, tenant_id, owner_id, parent_id, name, color, created_at, updated_at`

func scan(row pgx.Row) (*Folder, error) {
	f := &Folder{}
	if err := row.Scan(&f.ID, &f.TenantID, &f.OwnerID, &f.ParentID, &f.Name, &f.Color, &f.CreatedAt, &f.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFolderNotFound
		}
		return nil, err
	}
	return f, nil
}

// Create inserts a Folder (spec §3 Folder / C7).
func (r *Repository) Create(ctx context.Context, f *Folder) error {
	const q = `INSERT INTO folders (tenant_id, owner_id, parent_id, name, color)
		VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, q, f.TenantID, f.OwnerID, f.ParentID, f.Name, f.Color).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
}

// GetByID loads a folder scoped to tenantID (cross-tenant access reads as not-found).
func (r *Repository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Folder, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectCols+` FROM folders WHERE id=$1 AND tenant_id=$2`, id, tenantID)
	return scan(row)
}

// ListForTenant lists every folder in a tenant, for the client to assemble
// into a tree (spec C7 "folders" listing responsibility).
func (r *Repository) ListForTenant(ctx context.Context, tenantID uuid.UUID) ([]*Folder, error) {
	rows, err := r.db.Query(ctx, `SELECT `+selectCols+` FROM folders WHERE tenant_id=$1 ORDER BY name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Folder
	for rows.Next() {
		f, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Rename updates a folder's name/color.
func (r *Repository) Rename(ctx context.Context, tenantID, id uuid.UUID, name string, color *string) error {
	tag, err := r.db.Exec(ctx, `UPDATE folders SET name=$1, color=$2, updated_at=now() WHERE id=$3 AND tenant_id=$4`,
		name, color, id, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrFolderNotFound
	}
	return nil
}

// Move reparents a folder (spec §3 "No cycle (enforced on move)"). Cycle
// detection runs in the service layer, which holds the full tree in memory
// before calling Move.
func (r *Repository) Move(ctx context.Context, tenantID, id uuid.UUID, parentID *uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE folders SET parent_id=$1, updated_at=now() WHERE id=$2 AND tenant_id=$3`,
		parentID, id, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrFolderNotFound
	}
	return nil
}

// Delete removes a folder. Documents and child folders referencing it are
// not cascaded here; the service layer must re-home or reject first.
func (r *Repository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM folders WHERE id=$1 AND tenant_id=$2`, id, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrFolderNotFound
	}
	return nil
}

// HasChildren reports whether any folder or document still references id,
// used to guard Delete (spec doesn't define cascade semantics, so deletion
// of a non-empty folder is rejected rather than silently orphaning rows).
func (r *Repository) HasChildren(ctx context.Context, id uuid.UUID) (bool, error) {
	var n int
	const q = `SELECT
		(SELECT COUNT(*) FROM folders WHERE parent_id=$1) +
		(SELECT COUNT(*) FROM documents WHERE folder_id=$1)`
	if err := r.db.QueryRow(ctx, q, id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

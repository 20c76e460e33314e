package profiles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vertice-erp/vertice-erp/internal/platform/db"
)

const uniqueViolation = "23505"

// RepositoryPort defines data access methods for profiles.
type RepositoryPort interface {
	List(ctx context.Context, companyID int64) ([]Profile, error)
	Get(ctx context.Context, companyID, id int64) (Profile, error)
	Create(ctx context.Context, companyID int64, name string, isAdmin bool) (Profile, error)
	Update(ctx context.Context, companyID, id int64, name string, isAdmin, isActive bool) (Profile, error)
	Delete(ctx context.Context, companyID, id int64) error
	AssignedUserCount(ctx context.Context, id int64) (int64, error)
	ListGrants(ctx context.Context, profileID int64) ([]ModuleGrant, error)
	ReplaceGrants(ctx context.Context, profileID int64, grants []ModuleGrant) error
	ListModuleRefs(ctx context.Context) ([]ModuleRef, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns all profiles of a company ordered by name.
func (r *Repository) List(ctx context.Context, companyID int64) ([]Profile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, company_id, name, is_admin, is_active, created_at, updated_at
		FROM access_profiles WHERE company_id = $1 ORDER BY name`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var profiles []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Name, &p.IsAdmin, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// Get fetches one profile scoped to a company.
func (r *Repository) Get(ctx context.Context, companyID, id int64) (Profile, error) {
	var p Profile
	err := r.pool.QueryRow(ctx, `
		SELECT id, company_id, name, is_admin, is_active, created_at, updated_at
		FROM access_profiles WHERE company_id = $1 AND id = $2`, companyID, id).
		Scan(&p.ID, &p.CompanyID, &p.Name, &p.IsAdmin, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	return p, nil
}

// Create inserts a new active profile.
func (r *Repository) Create(ctx context.Context, companyID int64, name string, isAdmin bool) (Profile, error) {
	var p Profile
	err := r.pool.QueryRow(ctx, `
		INSERT INTO access_profiles (company_id, name, is_admin, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, TRUE, NOW(), NOW())
		RETURNING id, company_id, name, is_admin, is_active, created_at, updated_at`,
		companyID, name, isAdmin).
		Scan(&p.ID, &p.CompanyID, &p.Name, &p.IsAdmin, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Profile{}, ErrDuplicateName
		}
		return Profile{}, err
	}
	return p, nil
}

// Update rewrites the mutable profile fields.
func (r *Repository) Update(ctx context.Context, companyID, id int64, name string, isAdmin, isActive bool) (Profile, error) {
	var p Profile
	err := r.pool.QueryRow(ctx, `
		UPDATE access_profiles
		SET name = $3, is_admin = $4, is_active = $5, updated_at = NOW()
		WHERE company_id = $1 AND id = $2
		RETURNING id, company_id, name, is_admin, is_active, created_at, updated_at`,
		companyID, id, name, isAdmin, isActive).
		Scan(&p.ID, &p.CompanyID, &p.Name, &p.IsAdmin, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		if isUniqueViolation(err) {
			return Profile{}, ErrDuplicateName
		}
		return Profile{}, err
	}
	return p, nil
}

// Delete removes a profile and its grant rows.
func (r *Repository) Delete(ctx context.Context, companyID, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM profile_module_permissions WHERE profile_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM access_profiles WHERE company_id = $1 AND id = $2`, companyID, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// AssignedUserCount counts users currently referencing the profile.
func (r *Repository) AssignedUserCount(ctx context.Context, id int64) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE profile_id = $1`, id).Scan(&count)
	return count, err
}

// ListGrants returns the grant rows of a profile.
func (r *Repository) ListGrants(ctx context.Context, profileID int64) ([]ModuleGrant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT module_id, can_view, can_edit, can_delete
		FROM profile_module_permissions WHERE profile_id = $1 ORDER BY module_id`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []ModuleGrant
	for rows.Next() {
		var g ModuleGrant
		if err := rows.Scan(&g.ModuleID, &g.CanView, &g.CanEdit, &g.CanDelete); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// ReplaceGrants swaps the grant set of a profile in one transaction.
func (r *Repository) ReplaceGrants(ctx context.Context, profileID int64, grants []ModuleGrant) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM profile_module_permissions WHERE profile_id = $1`, profileID); err != nil {
			return err
		}
		for _, g := range grants {
			if _, err := tx.Exec(ctx, `
				INSERT INTO profile_module_permissions (profile_id, module_id, can_view, can_edit, can_delete)
				VALUES ($1, $2, $3, $4, $5)`,
				profileID, g.ModuleID, g.CanView, g.CanEdit, g.CanDelete); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListModuleRefs returns the module catalog slice needed for invariants.
func (r *Repository) ListModuleRefs(ctx context.Context) ([]ModuleRef, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, is_core, is_active FROM modules ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []ModuleRef
	for rows.Next() {
		var m ModuleRef
		if err := rows.Scan(&m.ID, &m.IsCore, &m.IsActive); err != nil {
			return nil, err
		}
		refs = append(refs, m)
	}
	return refs, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var _ RepositoryPort = (*Repository)(nil)

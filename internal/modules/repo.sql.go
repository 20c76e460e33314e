package modules

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryPort defines data access methods for the module catalog.
type RepositoryPort interface {
	ListModules(ctx context.Context) ([]Module, error)
	ListSubModules(ctx context.Context) ([]SubModule, error)
	GetModule(ctx context.Context, id int64) (Module, error)
	CreateModule(ctx context.Context, m Module) (Module, error)
	UpdateModule(ctx context.Context, id int64, name, category string, isActive bool) (Module, error)
	UpdateSubModule(ctx context.Context, id int64, name string, sortOrder int, isActive bool) (SubModule, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListModules returns the whole catalog, active and inactive.
func (r *Repository) ListModules(ctx context.Context) ([]Module, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, route_path, name, category, is_core, is_active, created_at, updated_at
		FROM modules ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Module
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.ID, &m.RoutePath, &m.Name, &m.Category, &m.IsCore, &m.IsActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListSubModules returns every tab in the catalog.
func (r *Repository) ListSubModules(ctx context.Context) ([]SubModule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, module_id, tab_key, name, sort_order, is_active
		FROM sub_modules ORDER BY module_id, sort_order`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SubModule
	for rows.Next() {
		var sm SubModule
		if err := rows.Scan(&sm.ID, &sm.ModuleID, &sm.TabKey, &sm.Name, &sm.SortOrder, &sm.IsActive); err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

// GetModule returns one catalog entry.
func (r *Repository) GetModule(ctx context.Context, id int64) (Module, error) {
	var m Module
	err := r.pool.QueryRow(ctx, `
		SELECT id, route_path, name, category, is_core, is_active, created_at, updated_at
		FROM modules WHERE id = $1`, id).
		Scan(&m.ID, &m.RoutePath, &m.Name, &m.Category, &m.IsCore, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Module{}, ErrNotFound
		}
		return Module{}, err
	}
	return m, nil
}

// CreateModule inserts a catalog entry.
func (r *Repository) CreateModule(ctx context.Context, m Module) (Module, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO modules (route_path, name, category, is_core, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW())
		RETURNING id, is_active, created_at, updated_at`,
		m.RoutePath, m.Name, m.Category, m.IsCore).
		Scan(&m.ID, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Module{}, ErrDuplicateRoute
		}
		return Module{}, err
	}
	return m, nil
}

// UpdateModule rewrites mutable fields of a catalog entry.
func (r *Repository) UpdateModule(ctx context.Context, id int64, name, category string, isActive bool) (Module, error) {
	var m Module
	err := r.pool.QueryRow(ctx, `
		UPDATE modules SET name = $2, category = $3, is_active = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING id, route_path, name, category, is_core, is_active, created_at, updated_at`,
		id, name, category, isActive).
		Scan(&m.ID, &m.RoutePath, &m.Name, &m.Category, &m.IsCore, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Module{}, ErrNotFound
		}
		return Module{}, err
	}
	return m, nil
}

// UpdateSubModule rewrites mutable fields of a tab.
func (r *Repository) UpdateSubModule(ctx context.Context, id int64, name string, sortOrder int, isActive bool) (SubModule, error) {
	var sm SubModule
	err := r.pool.QueryRow(ctx, `
		UPDATE sub_modules SET name = $2, sort_order = $3, is_active = $4
		WHERE id = $1
		RETURNING id, module_id, tab_key, name, sort_order, is_active`,
		id, name, sortOrder, isActive).
		Scan(&sm.ID, &sm.ModuleID, &sm.TabKey, &sm.Name, &sm.SortOrder, &sm.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SubModule{}, ErrNotFound
		}
		return SubModule{}, err
	}
	return sm, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

package access

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository provides PostgreSQL backed reads for the snapshot loader.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FetchRole returns the stored global role for a user, defaulting to
// RoleUser when no row exists.
func (r *PGRepository) FetchRole(ctx context.Context, userID int64) (Role, error) {
	var value string
	err := r.pool.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, userID).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RoleUser, nil
		}
		return RoleUser, err
	}
	return ParseRole(value), nil
}

// FetchProfile returns the user's assigned profile, or nil when the user
// references none.
func (r *PGRepository) FetchProfile(ctx context.Context, userID int64) (*AccessProfile, error) {
	var p AccessProfile
	err := r.pool.QueryRow(ctx, `
		SELECT p.id, p.company_id, p.name, p.is_admin, p.is_active
		FROM users u
		JOIN access_profiles p ON p.id = u.profile_id
		WHERE u.id = $1`, userID).
		Scan(&p.ID, &p.CompanyID, &p.Name, &p.IsAdmin, &p.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// FetchProfileModulePermissions returns the grant rows of a profile.
func (r *PGRepository) FetchProfileModulePermissions(ctx context.Context, profileID int64) ([]ModulePermission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT module_id, can_view, can_edit, can_delete
		FROM profile_module_permissions
		WHERE profile_id = $1`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []ModulePermission
	for rows.Next() {
		var g ModulePermission
		if err := rows.Scan(&g.ModuleID, &g.CanView, &g.CanEdit, &g.CanDelete); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// FetchActiveModules returns the active module catalog in catalog order.
func (r *PGRepository) FetchActiveModules(ctx context.Context) ([]Module, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, route_path, name, category, is_core, is_active
		FROM modules
		WHERE is_active
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var modules []Module
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.ID, &m.RoutePath, &m.Name, &m.Category, &m.IsCore, &m.IsActive); err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

// FetchActiveSubModules returns the active tabs of every active module.
func (r *PGRepository) FetchActiveSubModules(ctx context.Context) ([]SubModule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.module_id, s.tab_key, s.name, s.sort_order, s.is_active
		FROM sub_modules s
		JOIN modules m ON m.id = s.module_id
		WHERE s.is_active AND m.is_active
		ORDER BY s.module_id, s.sort_order`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tabs []SubModule
	for rows.Next() {
		var t SubModule
		if err := rows.Scan(&t.ID, &t.ModuleID, &t.TabKey, &t.Name, &t.SortOrder, &t.IsActive); err != nil {
			return nil, err
		}
		tabs = append(tabs, t)
	}
	return tabs, rows.Err()
}

// FetchUserTabPermissions returns the sub-module IDs granted to a user.
func (r *PGRepository) FetchUserTabPermissions(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT sub_module_id FROM user_tab_permissions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ Repository = (*PGRepository)(nil)

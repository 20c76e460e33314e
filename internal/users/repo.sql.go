package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vertice-erp/vertice-erp/internal/platform/db"
)

// RepositoryPort defines data access methods for user management.
type RepositoryPort interface {
	List(ctx context.Context, companyID int64) ([]User, error)
	Get(ctx context.Context, companyID, id int64) (User, error)
	Create(ctx context.Context, user User, passwordHash string) (User, error)
	AssignProfile(ctx context.Context, companyID, id int64, profileID *int64) error
	SetActive(ctx context.Context, companyID, id int64, active bool) error
	SetRole(ctx context.Context, companyID, id int64, role string) error
	ProfileBelongsToCompany(ctx context.Context, companyID, profileID int64) (bool, error)
	ListTabGrants(ctx context.Context, userID int64) ([]int64, error)
	ReplaceTabGrants(ctx context.Context, userID int64, subModuleIDs []int64) error
	ListTabRefs(ctx context.Context) ([]TabRef, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `
	u.id, u.company_id, u.email, u.name, u.role, u.profile_id, p.name,
	u.is_active, u.created_at, u.updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.CompanyID, &u.Email, &u.Name, &u.Role, &u.ProfileID, &u.ProfileName,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// List returns all users of a company ordered by name.
func (r *Repository) List(ctx context.Context, companyID int64) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users u
		LEFT JOIN access_profiles p ON p.id = u.profile_id
		WHERE u.company_id = $1
		ORDER BY u.name`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Get returns a single user scoped to the company.
func (r *Repository) Get(ctx context.Context, companyID, id int64) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users u
		LEFT JOIN access_profiles p ON p.id = u.profile_id
		WHERE u.company_id = $1 AND u.id = $2`, companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// Create inserts a new user account.
func (r *Repository) Create(ctx context.Context, user User, passwordHash string) (User, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (company_id, email, name, role, profile_id, password_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, NOW(), NOW())
		RETURNING id, is_active, created_at, updated_at`,
		user.CompanyID, user.Email, user.Name, user.Role, user.ProfileID, passwordHash).
		Scan(&user.ID, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrDuplicateEmail
		}
		return User{}, err
	}
	return user, nil
}

// AssignProfile links (or unlinks, with nil) an access profile.
func (r *Repository) AssignProfile(ctx context.Context, companyID, id int64, profileID *int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET profile_id = $3, updated_at = NOW()
		WHERE company_id = $1 AND id = $2`, companyID, id, profileID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActive toggles the account.
func (r *Repository) SetActive(ctx context.Context, companyID, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET is_active = $3, updated_at = NOW()
		WHERE company_id = $1 AND id = $2`, companyID, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRole changes the account role.
func (r *Repository) SetRole(ctx context.Context, companyID, id int64, role string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET role = $3, updated_at = NOW()
		WHERE company_id = $1 AND id = $2`, companyID, id, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ProfileBelongsToCompany reports whether the profile exists for the company.
func (r *Repository) ProfileBelongsToCompany(ctx context.Context, companyID, profileID int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM access_profiles WHERE company_id = $1 AND id = $2)`,
		companyID, profileID).Scan(&ok)
	return ok, err
}

// ListTabGrants returns the sub-module ids granted to a user.
func (r *Repository) ListTabGrants(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT sub_module_id FROM user_tab_permissions WHERE user_id = $1 ORDER BY sub_module_id`, userID)
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

// ReplaceTabGrants swaps the user's tab grant set inside one transaction.
func (r *Repository) ReplaceTabGrants(ctx context.Context, userID int64, subModuleIDs []int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_tab_permissions WHERE user_id = $1`, userID); err != nil {
			return err
		}
		for _, id := range subModuleIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO user_tab_permissions (user_id, sub_module_id, created_at)
				VALUES ($1, $2, NOW())`, userID, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListTabRefs returns the sub-module catalog for grant validation.
func (r *Repository) ListTabRefs(ctx context.Context) ([]TabRef, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, module_id, is_active FROM sub_modules`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []TabRef
	for rows.Next() {
		var ref TabRef
		if err := rows.Scan(&ref.ID, &ref.ModuleID, &ref.IsActive); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

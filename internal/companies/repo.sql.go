package companies

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryPort defines data access methods for tenants.
type RepositoryPort interface {
	List(ctx context.Context) ([]Company, error)
	Get(ctx context.Context, id int64) (Company, error)
	Create(ctx context.Context, c Company) (Company, error)
	Update(ctx context.Context, id int64, name, tradeName string) (Company, error)
	SetSubscriptionStatus(ctx context.Context, id int64, status string) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const companyColumns = `
	c.id, c.name, c.trade_name, c.tax_id, c.subscription_status,
	(SELECT COUNT(*) FROM users u WHERE u.company_id = c.id),
	c.created_at, c.updated_at`

func scanCompany(row pgx.Row) (Company, error) {
	var c Company
	err := row.Scan(&c.ID, &c.Name, &c.TradeName, &c.TaxID, &c.SubscriptionStatus,
		&c.UserCount, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// List returns every tenant ordered by name.
func (r *Repository) List(ctx context.Context) ([]Company, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+companyColumns+` FROM companies c ORDER BY c.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Get returns one tenant.
func (r *Repository) Get(ctx context.Context, id int64) (Company, error) {
	c, err := scanCompany(r.pool.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies c WHERE c.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, ErrNotFound
		}
		return Company{}, err
	}
	return c, nil
}

// Create inserts a tenant, starting on trial.
func (r *Repository) Create(ctx context.Context, c Company) (Company, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO companies (name, trade_name, tax_id, subscription_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		c.Name, c.TradeName, c.TaxID, SubscriptionTrial).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Company{}, ErrDuplicateTaxID
		}
		return Company{}, err
	}
	c.SubscriptionStatus = SubscriptionTrial
	return c, nil
}

// Update rewrites the tenant's names.
func (r *Repository) Update(ctx context.Context, id int64, name, tradeName string) (Company, error) {
	c, err := scanCompany(r.pool.QueryRow(ctx, `
		UPDATE companies c SET name = $2, trade_name = $3, updated_at = NOW()
		WHERE c.id = $1
		RETURNING `+companyColumns, id, name, tradeName))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, ErrNotFound
		}
		return Company{}, err
	}
	return c, nil
}

// SetSubscriptionStatus changes the tenant's billing state.
func (r *Repository) SetSubscriptionStatus(ctx context.Context, id int64, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE companies SET subscription_status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

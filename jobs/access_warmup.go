package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vertice-erp/vertice-erp/internal/access"
	jobmetrics "github.com/vertice-erp/vertice-erp/internal/jobs"
)

// SnapshotWarmer loads (and thereby caches) a permission snapshot.
type SnapshotWarmer interface {
	Get(ctx context.Context, principal access.Principal) (*access.Snapshot, error)
}

// AccessWarmupJob preloads permission snapshots for users with live
// sessions. Running it after a cache bump means those users never pay the
// load on their next request.
type AccessWarmupJob struct {
	Store   SnapshotWarmer
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAccessWarmupJob wires dependencies for the warmup handler.
func NewAccessWarmupJob(store SnapshotWarmer, pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *AccessWarmupJob {
	return &AccessWarmupJob{Store: store, Pool: pool, Logger: logger, Metrics: metrics}
}

// Handle processes snapshot warmup tasks.
func (j *AccessWarmupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Store == nil || j.Pool == nil {
		return errors.New("access warmup: handler not configured")
	}

	tracker := j.metrics().Track(TaskAccessWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	principals, err := j.fetchPrincipals(ctx)
	if err != nil {
		resultErr = err
		j.logger().Error("load warmup principals", slog.Any("error", err))
		return resultErr
	}
	if len(principals) == 0 {
		j.logger().Info("no live sessions to warm")
		return nil
	}

	warmed := 0
	for _, principal := range principals {
		if _, err := j.Store.Get(ctx, principal); err != nil {
			j.logger().Warn("warm snapshot", slog.Int64("user_id", principal.ID), slog.Any("error", err))
			continue
		}
		warmed++
	}
	j.logger().Info("snapshots warmed", slog.Int("warmed", warmed), slog.Int("total", len(principals)))
	return nil
}

func (j *AccessWarmupJob) fetchPrincipals(ctx context.Context) ([]access.Principal, error) {
	rows, err := j.Pool.Query(ctx, `
		SELECT DISTINCT u.id, u.company_id, u.role
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.expires_at > NOW() AND u.is_active`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []access.Principal
	for rows.Next() {
		var id, companyID int64
		var role string
		if err := rows.Scan(&id, &companyID, &role); err != nil {
			return nil, err
		}
		out = append(out, access.Principal{ID: id, CompanyID: companyID, Role: access.ParseRole(role)})
	}
	return out, rows.Err()
}

func (j *AccessWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AccessWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/vertice-erp/vertice-erp/internal/jobs"
)

// SessionStore removes expired session rows.
type SessionStore interface {
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// SessionPruneJob clears session rows whose expiry has passed. Redis keys
// expire on their own, this keeps the Postgres audit copy in check.
type SessionPruneJob struct {
	Sessions SessionStore
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewSessionPruneJob wires dependencies for the prune handler.
func NewSessionPruneJob(sessions SessionStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionPruneJob {
	return &SessionPruneJob{Sessions: sessions, Logger: logger, Metrics: metrics}
}

// Handle processes session prune tasks.
func (j *SessionPruneJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Sessions == nil {
		return errors.New("session prune: handler not configured")
	}

	tracker := j.metrics().Track(TaskSessionPrune)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	removed, err := j.Sessions.DeleteExpiredSessions(ctx)
	if err != nil {
		resultErr = err
		j.logger().Error("prune expired sessions", slog.Any("error", err))
		return resultErr
	}
	j.logger().Info("expired sessions pruned", slog.Int64("removed", removed))
	return nil
}

func (j *SessionPruneJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *SessionPruneJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

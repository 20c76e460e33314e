package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/vertice-erp/vertice-erp/internal/jobs"
	"github.com/vertice-erp/vertice-erp/internal/platform/mail"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// InviteMailJob delivers welcome emails for invited accounts.
type InviteMailJob struct {
	Sender  mail.Sender
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewInviteMailJob wires dependencies for the invite mail handler.
func NewInviteMailJob(sender mail.Sender, logger *slog.Logger, metrics *jobmetrics.Metrics) *InviteMailJob {
	return &InviteMailJob{Sender: sender, Logger: logger, Metrics: metrics}
}

// Handle processes invite delivery tasks.
func (j *InviteMailJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sender == nil {
		return errors.New("invite mail: handler not configured")
	}
	var payload InviteEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Email == "" {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskSendInvite)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	body := fmt.Sprintf(
		"Olá %s,\n\nSua conta foi criada. Acesse com a senha temporária abaixo e troque-a no primeiro login.\n\nSenha temporária: %s\n",
		payload.Name, payload.TempPassword)
	if err := j.Sender.Send(ctx, payload.Email, "Bem-vindo ao Vertice ERP", body); err != nil {
		resultErr = err
		j.logger().Error("send invite email", slog.String("to", payload.Email), slog.Any("error", err))
		return resultErr
	}
	j.logger().Info("invite email sent", slog.String("to", payload.Email))
	return nil
}

func (j *InviteMailJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *InviteMailJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

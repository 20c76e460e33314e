package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskSendInvite delivers the welcome email of a freshly invited user.
	TaskSendInvite = "mail:invite"
	// TaskSessionPrune removes expired session rows.
	TaskSessionPrune = "session:prune"
	// TaskAccessWarmup preloads permission snapshots for users with live
	// sessions, so the first request after a cache bump stays fast.
	TaskAccessWarmup = "access:warmup"
)

// InviteEmailPayload describes the welcome email of an invited account.
type InviteEmailPayload struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	TempPassword string `json:"temp_password"`
}

// NewInviteEmailTask constructs the invite delivery task.
func NewInviteEmailTask(payload InviteEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSendInvite, data), nil
}

// NewSessionPruneTask constructs the session cleanup task. It carries no
// payload.
func NewSessionPruneTask() *asynq.Task {
	return asynq.NewTask(TaskSessionPrune, nil)
}

// NewAccessWarmupTask constructs the snapshot warmup task. It carries no
// payload.
func NewAccessWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskAccessWarmup, nil)
}

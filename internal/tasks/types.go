package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/pipedesk/internal/notify"
	"github.com/hugh/pipedesk/pkg/queue"
)

// Task type names
const (
	TypeMentionNotify = "notify:mention"
	TypeUsageReset    = "billing:usage_reset"
)

// MentionNotifyPayload is one mention waiting to become a notification.
type MentionNotifyPayload struct {
	Mention notify.Mention `json:"mention"`
}

func NewMentionNotifyTask(m notify.Mention) (*asynq.Task, error) {
	data, err := json.Marshal(MentionNotifyPayload{Mention: m})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeMentionNotify, data,
		asynq.Queue(queue.QueueDefault),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	), nil
}

// UsageResetPayload is empty; the task resets every subscription.
type UsageResetPayload struct{}

func NewUsageResetTask() (*asynq.Task, error) {
	data, err := json.Marshal(UsageResetPayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeUsageReset, data,
		asynq.Queue(queue.QueueLow),
		asynq.MaxRetry(3),
	), nil
}

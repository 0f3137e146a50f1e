package tasks

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/hugh/pipedesk/internal/notify"
)

// Enqueuer is the part of *asynq.Client the notifier needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueNotifier hands mentions to the worker instead of writing them inline.
type QueueNotifier struct {
	client Enqueuer
}

func NewQueueNotifier(client Enqueuer) *QueueNotifier {
	return &QueueNotifier{client: client}
}

func (n *QueueNotifier) NotifyMention(ctx context.Context, m notify.Mention) error {
	task, err := NewMentionNotifyTask(m)
	if err != nil {
		return fmt.Errorf("building mention task: %w", err)
	}
	if _, err := n.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueueing mention task: %w", err)
	}
	return nil
}

var _ notify.Notifier = (*QueueNotifier)(nil)

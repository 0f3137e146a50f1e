package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/hugh/pipedesk/internal/notify"
	"github.com/hugh/pipedesk/internal/store"
)

type Handler struct {
	store    *store.Store
	notifier *notify.StoreNotifier
	logger   *slog.Logger
}

func NewHandler(st *store.Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:    st,
		notifier: notify.NewStoreNotifier(st),
		logger:   logger,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeMentionNotify, h.HandleMentionNotify)
	mux.HandleFunc(TypeUsageReset, h.HandleUsageReset)
}

func (h *Handler) HandleMentionNotify(ctx context.Context, t *asynq.Task) error {
	var payload MentionNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	m := payload.Mention
	if err := h.notifier.NotifyMention(ctx, m); err != nil {
		return err
	}

	h.logger.Info("mention delivered",
		"org_id", m.OrganizationID,
		"comment_id", m.CommentID,
		"user_id", m.UserID,
	)
	return nil
}

// HandleUsageReset starts a new metering period for every subscription.
func (h *Handler) HandleUsageReset(ctx context.Context, t *asynq.Task) error {
	n, err := h.store.ResetAllUsage(ctx)
	if err != nil {
		return fmt.Errorf("resetting usage: %w", err)
	}

	h.logger.Info("usage counters reset", "subscriptions", n)
	return nil
}

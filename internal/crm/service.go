// Package crm implements the pipeline, stage, lead and comment hierarchy.
// Every operation is scoped to the caller's organization and checks that
// referenced parents belong to it.
package crm

import (
	"errors"
	"log/slog"

	"github.com/hugh/pipedesk/internal/audit"
	"github.com/hugh/pipedesk/internal/notify"
	"github.com/hugh/pipedesk/internal/store"
	"github.com/hugh/pipedesk/pkg/apperr"
)

var (
	ErrNameRequired     = apperr.Validation("Name is required")
	ErrBodyRequired     = apperr.Validation("Comment body is required")
	ErrEmptyReorder     = apperr.Validation("stageOrders must not be empty")
	ErrPlanLimitReached = apperr.Conflict("Pipeline limit reached for your plan")
	ErrPipelineNotFound = apperr.NotFound("Pipeline not found")
	ErrStageNotFound    = apperr.NotFound("Stage not found")
	ErrLeadNotFound     = apperr.NotFound("Lead not found")
	ErrCommentNotFound  = apperr.NotFound("Comment not found")
	ErrNotCommentAuthor = apperr.Forbidden("Only the author or an admin can delete this comment")
)

type Service struct {
	store    *store.Store
	audit    *audit.Recorder
	notifier notify.Notifier
	logger   *slog.Logger
}

func NewService(st *store.Store, recorder *audit.Recorder, notifier notify.Notifier, logger *slog.Logger) *Service {
	return &Service{store: st, audit: recorder, notifier: notifier, logger: logger}
}

// notFoundAs maps the store's generic not-found onto a specific error.
func notFoundAs(err, target error) error {
	if errors.Is(err, store.ErrNotFound) {
		return target
	}
	return err
}

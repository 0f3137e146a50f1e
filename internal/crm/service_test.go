package crm

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/access"
	"github.com/hugh/pipedesk/internal/audit"
	"github.com/hugh/pipedesk/internal/database/models"
	"github.com/hugh/pipedesk/internal/notify"
	"github.com/hugh/pipedesk/internal/store"
	"github.com/hugh/pipedesk/internal/testutil"
	"github.com/hugh/pipedesk/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu       sync.Mutex
	mentions []notify.Mention
	err      error
}

func (n *recordingNotifier) NotifyMention(_ context.Context, m notify.Mention) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mentions = append(n.mentions, m)
	return n.err
}

func newTestService(t *testing.T) (*Service, *testutil.TestSetup, *recordingNotifier) {
	t.Helper()
	setup := testutil.NewTestContext(t)
	logger := testutil.DiscardLogger()
	notifier := &recordingNotifier{}
	svc := NewService(setup.Store, audit.NewRecorder(setup.Store, logger), notifier, logger)
	return svc, setup, notifier
}

func TestCreatePipeline_PlanLimit(t *testing.T) {
	svc, setup, _ := newTestService(t)
	ctx := context.Background()
	admin := setup.Admin()

	_, err := svc.CreatePipeline(ctx, admin, "Sales")
	require.NoError(t, err)

	_, err = svc.CreatePipeline(ctx, admin, "Second")
	require.ErrorIs(t, err, ErrPlanLimitReached)
	assert.Equal(t, 400, apperr.HTTPStatus(err))

	pipelines, err := svc.ListPipelines(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, pipelines, 1)
}

func TestCreatePipeline_ConcurrentCreatesRespectLimit(t *testing.T) {
	svc, setup, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, setup.Store.UpdateOrganization(ctx, setup.Org.ID, map[string]any{"plan": models.PlanPro}))

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.CreatePipeline(ctx, setup.Admin(), "P"); err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, models.PlanPro.MaxPipelines(), created)
	count, err := setup.Store.CountPipelines(ctx, setup.Org.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(models.PlanPro.MaxPipelines()), count)
}

func TestCreatePipeline_ViewerForbidden(t *testing.T) {
	svc, setup, _ := newTestService(t)
	_, viewer := setup.Member(t, "Vera", models.RoleViewer)

	_, err := svc.CreatePipeline(context.Background(), viewer, "Sales")
	require.ErrorIs(t, err, access.ErrInsufficientRole)
	assert.Equal(t, 403, apperr.HTTPStatus(err))
}

func TestCreatePipeline_NameRequired(t *testing.T) {
	svc, setup, _ := newTestService(t)

	_, err := svc.CreatePipeline(context.Background(), setup.Admin(), "   ")
	assert.ErrorIs(t, err, ErrNameRequired)
}

func TestCreateStage_AppendsAfterLast(t *testing.T) {
	svc, setup, _ := newTestService(t)
	ctx := context.Background()
	admin := setup.Admin()

	pipeline, err := svc.CreatePipeline(ctx, admin, "Sales")
	require.NoError(t, err)

	first, err := svc.CreateStage(ctx, admin, StageInput{PipelineID: pipeline.ID, Name: "New"})
	require.NoError(t, err)
	second, err := svc.CreateStage(ctx, admin, StageInput{PipelineID: pipeline.ID, Name: "Won"})
	require.NoError(t, err)

	assert.Equal(t, 0, first.Order)
	assert.Equal(t, 1, second.Order)
}

func TestCreateStage_UnknownPipeline(t *testing.T) {
	svc, setup, _ := newTestService(t)

	_, err := svc.CreateStage(context.Background(), setup.Admin(), StageInput{PipelineID: uuid.New(), Name: "New"})
	assert.ErrorIs(t, err, ErrPipelineNotFound)
}

func TestReorderStages(t *testing.T) {
	svc, setup, _ := newTestService(t)
	ctx := context.Background()
	admin := setup.Admin()

	pipeline, first := testutil.CreateTestPipeline(t, setup.Store, setup.Org.ID, "Sales")
	second := testutil.CreateTestStage(t, setup.Store, setup.Org.ID, pipeline.ID, "Won", 1)

	stages, err := svc.ReorderStages(ctx, admin, []StageOrder{
		{ID: first.ID, Order: 1},
		{ID: second.ID, Order: 0},
	})
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, second.ID, stages[0].ID)

	listed, err := svc.ListStages(ctx, admin, &pipeline.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, listed[0].ID)
	assert.Equal(t, first.ID, listed[1].ID)
}

func TestReorderStages_AllOrNothing(t *testing.T) {
	svc, setup, _ := newTestService(t)
	ctx := context.Background()

	_, stage := testutil.CreateTestPipeline(t, setup.Store, setup.Org.ID, "Sales")

	_, err := svc.ReorderStages(ctx, setup.Admin(), []StageOrder{
		{ID: stage.ID, Order: 5},
		{ID: uuid.New(), Order: 6},
	})
	require.ErrorIs(t, err, ErrStageNotFound)

	got, err := setup.Store.GetStage(ctx, setup.Org.ID, stage.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Order)

	_, err = svc.ReorderStages(ctx, setup.Admin(), nil)
	assert.ErrorIs(t, err, ErrEmptyReorder)
}

func TestMoveLead(t *testing.T) {
	svc, setup, _ := newTestService(t)
	ctx := context.Background()
	admin := setup.Admin()

	pipeline, from := testutil.CreateTestPipeline(t, setup.Store, setup.Org.ID, "Sales")
	to := testutil.CreateTestStage(t, setup.Store, setup.Org.ID, pipeline.ID, "Won", 1)
	lead := testutil.CreateTestLead(t, setup.Store, setup.Org.ID, from.ID, "Acme")

	moved, err := svc.MoveLead(ctx, admin, lead.ID, to.ID)
	require.NoError(t, err)
	assert.Equal(t, to.ID, moved.StageID)

	logs, err := setup.Store.ListAuditLogs(ctx, setup.Org.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, audit.ActionMove, logs[0].Action)

	_, err = svc.MoveLead(ctx, admin, lead.ID, uuid.New())
	assert.ErrorIs(t, err, ErrStageNotFound)
}

func TestTenantIsolation(t *testing.T) {
	svc, setup, _ := newTestService(t)
	ctx := context.Background()

	_, stage := testutil.CreateTestPipeline(t, setup.Store, setup.Org.ID, "Sales")
	lead := testutil.CreateTestLead(t, setup.Store, setup.Org.ID, stage.ID, "Acme")

	outsider := testutil.CreateTestUser(t, setup.Store, "Mallory")
	otherOrg := testutil.CreateTestOrg(t, setup.Store, outsider)
	other := testutil.Principal(otherOrg.ID, outsider.ID, models.RoleAdmin)

	_, err := svc.GetLead(ctx, other, lead.ID)
	assert.ErrorIs(t, err, ErrLeadNotFound)

	_, err = svc.CreateLead(ctx, other, LeadInput{StageID: stage.ID, Name: "Sneaky"})
	assert.ErrorIs(t, err, ErrStageNotFound)

	leads, err := svc.ListLeads(ctx, other, store.LeadFilter{})
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestDeletePipeline_Cascades(t *testing.T) {
	svc, setup, _ := newTestService(t)
	ctx := context.Background()
	admin := setup.Admin()

	pipeline, stage := testutil.CreateTestPipeline(t, setup.Store, setup.Org.ID, "Sales")
	lead := testutil.CreateTestLead(t, setup.Store, setup.Org.ID, stage.ID, "Acme")
	_, err := svc.CreateComment(ctx, admin, lead.ID, "first call done")
	require.NoError(t, err)

	require.NoError(t, svc.DeletePipeline(ctx, admin, pipeline.ID))

	_, err = svc.GetStage(ctx, admin, stage.ID)
	assert.ErrorIs(t, err, ErrStageNotFound)
	_, err = svc.GetLead(ctx, admin, lead.ID)
	assert.ErrorIs(t, err, ErrLeadNotFound)

	var comments int64
	require.NoError(t, setup.DB.Model(&models.LeadComment{}).Count(&comments).Error)
	assert.Zero(t, comments)

	assert.ErrorIs(t, svc.DeletePipeline(ctx, admin, pipeline.ID), ErrPipelineNotFound)
}

func TestCreateComment_Mentions(t *testing.T) {
	svc, setup, notifier := newTestService(t)
	ctx := context.Background()

	bob, _ := setup.Member(t, "Bob Stone", models.RoleViewer)
	ann, _ := setup.Member(t, "Ann Lee", models.RoleEditor)
	_, stage := testutil.CreateTestPipeline(t, setup.Store, setup.Org.ID, "Sales")
	lead := testutil.CreateTestLead(t, setup.Store, setup.Org.ID, stage.ID, "Acme")

	comment, err := svc.CreateComment(ctx, setup.Admin(), lead.ID, "@bobstone and @Ann, please follow up. @owner @nobody")
	require.NoError(t, err)

	assert.ElementsMatch(t, []uuid.UUID{bob.ID, ann.ID}, []uuid.UUID(comment.Mentions))
	require.Len(t, notifier.mentions, 2)
	assert.Equal(t, comment.ID, notifier.mentions[0].CommentID)

	comments, err := svc.ListComments(ctx, setup.Admin(), lead.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Len(t, comments[0].Mentions, 2)
}

func TestCreateComment_NotifierFailureKeepsComment(t *testing.T) {
	svc, setup, notifier := newTestService(t)
	notifier.err = errors.New("queue unavailable")
	ctx := context.Background()

	setup.Member(t, "Bob", models.RoleViewer)
	_, stage := testutil.CreateTestPipeline(t, setup.Store, setup.Org.ID, "Sales")
	lead := testutil.CreateTestLead(t, setup.Store, setup.Org.ID, stage.ID, "Acme")

	comment, err := svc.CreateComment(ctx, setup.Admin(), lead.ID, "ping @bob")
	require.NoError(t, err)
	assert.Len(t, comment.Mentions, 1)
}

func TestCreateComment_Validation(t *testing.T) {
	svc, setup, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateComment(ctx, setup.Admin(), uuid.New(), "hello")
	assert.ErrorIs(t, err, ErrLeadNotFound)

	_, stage := testutil.CreateTestPipeline(t, setup.Store, setup.Org.ID, "Sales")
	lead := testutil.CreateTestLead(t, setup.Store, setup.Org.ID, stage.ID, "Acme")
	_, err = svc.CreateComment(ctx, setup.Admin(), lead.ID, "  ")
	assert.ErrorIs(t, err, ErrBodyRequired)
}

func TestDeleteComment_AuthorOrAdmin(t *testing.T) {
	svc, setup, _ := newTestService(t)
	ctx := context.Background()

	_, viewer := setup.Member(t, "Vera", models.RoleViewer)
	_, editor := setup.Member(t, "Ed", models.RoleEditor)
	_, stage := testutil.CreateTestPipeline(t, setup.Store, setup.Org.ID, "Sales")
	lead := testutil.CreateTestLead(t, setup.Store, setup.Org.ID, stage.ID, "Acme")

	comment, err := svc.CreateComment(ctx, viewer, lead.ID, "looks promising")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteComment(ctx, editor, lead.ID, comment.ID), ErrNotCommentAuthor)
	require.NoError(t, svc.DeleteComment(ctx, viewer, lead.ID, comment.ID))

	again, err := svc.CreateComment(ctx, viewer, lead.ID, "second thought")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteComment(ctx, setup.Admin(), lead.ID, again.ID))
	assert.ErrorIs(t, svc.DeleteComment(ctx, setup.Admin(), lead.ID, again.ID), ErrCommentNotFound)
}

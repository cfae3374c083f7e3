package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	api "github.com/warden-io/warden/api/v1"
	"github.com/warden-io/warden/model"
	"github.com/warden-io/warden/persistence/inmem"
)

func TestWorkflowStore(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, s *Service){
		"test create records version one":        testCreateRecordsVersionOne,
		"test update records next version":       testUpdateRecordsNextVersion,
		"test restore snapshots then overwrites": testRestoreSnapshotsThenOverwrites,
		"test restore missing version":           testRestoreMissingVersion,
		"test get active rejects draft":          testGetActiveRejectsDraft,
		"test versions listed newest first":      testVersionsNewestFirst,
		"test create without name rejected":      testCreateWithoutName,
		"test invalid graph rejected":            testInvalidGraphRejected,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, NewService(inmem.NewStorage().Workflows()))
		})
	}
}

func definition(id string, actionName string) *model.WorkflowDefinition {
	return &model.WorkflowDefinition{
		Id:        id,
		Workspace: "ws-1",
		Name:      "onboarding",
		Status:    model.WORKFLOW_STATUS_ACTIVE,
		Steps: []model.Step{
			{Id: "a", Name: "first", Kind: model.STEP_KIND_ACTION, Action: actionName},
		},
	}
}

func testCreateRecordsVersionOne(t *testing.T, s *Service) {
	ctx := context.Background()
	def, err := s.Create(ctx, definition("wf-1", "send-email"), "alice")
	require.NoError(t, err)

	versions, err := s.ListVersions(ctx, "ws-1", def.Id)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	require.Equal(t, 1, versions[0].Version)
	require.Equal(t, "initial version", versions[0].ChangeDescription)
	require.Equal(t, "alice", versions[0].Author)
}

func testUpdateRecordsNextVersion(t *testing.T, s *Service) {
	ctx := context.Background()
	def, err := s.Create(ctx, definition("wf-1", "send-email"), "alice")
	require.NoError(t, err)

	updated := definition(def.Id, "send-slack")
	_, err = s.Update(ctx, updated, "bob", "switch channel")
	require.NoError(t, err)

	latest, err := s.LatestVersionNumber(ctx, "ws-1", def.Id)
	require.NoError(t, err)
	require.Equal(t, 2, latest)

	// the new version row holds the new content
	fl, err := s.GetFlow(ctx, "ws-1", def.Id, 2)
	require.NoError(t, err)
	require.Equal(t, "send-slack", fl.Steps["a"].Def().Action)

	// version one still holds the original content
	fl, err = s.GetFlow(ctx, "ws-1", def.Id, 1)
	require.NoError(t, err)
	require.Equal(t, "send-email", fl.Steps["a"].Def().Action)
}

func testRestoreSnapshotsThenOverwrites(t *testing.T, s *Service) {
	ctx := context.Background()
	def, err := s.Create(ctx, definition("wf-1", "send-email"), "alice")
	require.NoError(t, err)
	_, err = s.Update(ctx, definition(def.Id, "send-slack"), "bob", "switch channel")
	require.NoError(t, err)

	result, err := s.Restore(ctx, "ws-1", def.Id, 1, "carol")
	require.NoError(t, err)
	require.Equal(t, 3, result.NewVersionNumber)
	require.Equal(t, 1, result.RestoredFromVersion)

	// live definition now matches version one
	live, err := s.Get(ctx, "ws-1", def.Id)
	require.NoError(t, err)
	require.Equal(t, "send-email", live.Steps[0].Action)

	// version three snapshots the pre-restore live state
	fl, err := s.GetFlow(ctx, "ws-1", def.Id, 3)
	require.NoError(t, err)
	require.Equal(t, "send-slack", fl.Steps["a"].Def().Action)

	versions, err := s.ListVersions(ctx, "ws-1", def.Id)
	require.NoError(t, err)
	require.Equal(t, "restored from version 1", versions[0].ChangeDescription)
}

func testRestoreMissingVersion(t *testing.T, s *Service) {
	ctx := context.Background()
	def, err := s.Create(ctx, definition("wf-1", "send-email"), "alice")
	require.NoError(t, err)

	_, err = s.Restore(ctx, "ws-1", def.Id, 9, "carol")
	require.Error(t, err)
	require.Equal(t, api.KindNotFound, api.KindOf(err))
}

func testGetActiveRejectsDraft(t *testing.T, s *Service) {
	ctx := context.Background()
	def := definition("wf-1", "send-email")
	def.Status = model.WORKFLOW_STATUS_DRAFT
	_, err := s.Create(ctx, def, "alice")
	require.NoError(t, err)

	_, err = s.GetActive(ctx, "ws-1", "wf-1")
	require.Error(t, err)
	require.Equal(t, api.KindNotActive, api.KindOf(err))
}

func testVersionsNewestFirst(t *testing.T, s *Service) {
	ctx := context.Background()
	def, err := s.Create(ctx, definition("wf-1", "send-email"), "alice")
	require.NoError(t, err)
	_, err = s.Update(ctx, definition(def.Id, "send-slack"), "bob", "second")
	require.NoError(t, err)
	_, err = s.Update(ctx, definition(def.Id, "send-sms"), "bob", "third")
	require.NoError(t, err)

	versions, err := s.ListVersions(ctx, "ws-1", def.Id)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	require.Equal(t, 3, versions[0].Version)
	require.Equal(t, 2, versions[1].Version)
	require.Equal(t, 1, versions[2].Version)
}

func testCreateWithoutName(t *testing.T, s *Service) {
	def := definition("wf-1", "send-email")
	def.Name = ""
	_, err := s.Create(context.Background(), def, "alice")
	require.Error(t, err)
	require.Equal(t, api.KindValidation, api.KindOf(err))
}

func testInvalidGraphRejected(t *testing.T, s *Service) {
	def := definition("wf-1", "send-email")
	def.Steps[0].OnSuccess = "a"
	_, err := s.Create(context.Background(), def, "alice")
	require.Error(t, err)
	require.Equal(t, api.KindValidation, api.KindOf(err))
}

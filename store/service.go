package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	c "github.com/patrickmn/go-cache"
	api "github.com/warden-io/warden/api/v1"
	"github.com/warden-io/warden/flow"
	"github.com/warden-io/warden/logger"
	"github.com/warden-io/warden/model"
	"github.com/warden-io/warden/persistence"
	"go.uber.org/zap"
)

// Service owns workflow definitions and their append-only version history.
// Version numbers per workflow increase strictly by 1 with no gaps; every
// mutation of the live definition lands a version row first.
type Service struct {
	storage persistence.WorkflowStorage
	// mu serializes version-number allocation per process
	mu sync.Mutex
	// defCache fronts live definitions, flowCache holds compiled versions
	// (immutable, so never invalidated)
	defCache  *c.Cache
	flowCache *c.Cache
}

func NewService(storage persistence.WorkflowStorage) *Service {
	return &Service{
		storage:   storage,
		defCache:  c.New(5*time.Minute, 10*time.Minute),
		flowCache: c.New(c.NoExpiration, 10*time.Minute),
	}
}

type RestoreResult struct {
	Definition          *model.WorkflowDefinition `json:"definition"`
	NewVersionNumber    int                       `json:"newVersionNumber"`
	RestoredFromVersion int                       `json:"restoredFromVersion"`
}

func (s *Service) Create(ctx context.Context, def *model.WorkflowDefinition, actor string) (*model.WorkflowDefinition, error) {
	if def.Id == "" {
		def.Id = uuid.New().String()
	}
	if def.Workspace == "" {
		return nil, api.ValidationError{Message: "workspace can not be empty"}
	}
	if def.Name == "" {
		return nil, api.ValidationError{Message: "workflow name can not be empty"}
	}
	if def.Status == "" {
		def.Status = model.WORKFLOW_STATUS_DRAFT
	}
	version := flow.VersionFromDefinition(def, 1, "initial version", actor)
	if err := flow.Validate(version); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	def.CreatedAt = now
	def.UpdatedAt = now
	version.Id = uuid.New().String()
	version.CreatedAt = now
	if err := s.storage.SaveVersion(ctx, version); err != nil {
		return nil, err
	}
	if err := s.storage.SaveWorkflowDefinition(ctx, def); err != nil {
		return nil, err
	}
	s.defCache.Delete(defKey(def.Workspace, def.Id))
	logger.Info("workflow created", zap.String("workflowId", def.Id), zap.String("workspace", def.Workspace))
	return def, nil
}

// Update overwrites the live definition, recording the new state as the
// next version.
func (s *Service) Update(ctx context.Context, def *model.WorkflowDefinition, actor string, changeDescription string) (*model.WorkflowDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.storage.GetWorkflowDefinition(ctx, def.Workspace, def.Id)
	if err != nil {
		return nil, err
	}
	next, err := s.nextVersionNumber(ctx, def.Workspace, def.Id)
	if err != nil {
		return nil, err
	}
	if changeDescription == "" {
		changeDescription = "updated"
	}
	version := flow.VersionFromDefinition(def, next, changeDescription, actor)
	if err := flow.Validate(version); err != nil {
		return nil, err
	}
	version.Id = uuid.New().String()
	version.CreatedAt = time.Now()
	if err := s.storage.SaveVersion(ctx, version); err != nil {
		return nil, err
	}
	def.CreatedAt = current.CreatedAt
	def.UpdatedAt = version.CreatedAt
	if def.Status == "" {
		def.Status = current.Status
	}
	if err := s.storage.SaveWorkflowDefinition(ctx, def); err != nil {
		return nil, err
	}
	s.defCache.Delete(defKey(def.Workspace, def.Id))
	logger.Info("workflow updated", zap.String("workflowId", def.Id), zap.Int("version", next))
	return def, nil
}

// Restore snapshots the current live state as a new version, then
// overwrites the live definition from the target snapshot. Restoring is a
// recorded, reversible edit, never destructive.
func (s *Service) Restore(ctx context.Context, workspace string, workflowId string, targetVersion int, actor string) (*RestoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, err := s.storage.GetVersion(ctx, workspace, workflowId, targetVersion)
	if err != nil {
		return nil, err
	}
	current, err := s.storage.GetWorkflowDefinition(ctx, workspace, workflowId)
	if err != nil {
		return nil, err
	}
	next, err := s.nextVersionNumber(ctx, workspace, workflowId)
	if err != nil {
		return nil, err
	}
	snapshot := flow.VersionFromDefinition(current, next, fmt.Sprintf("restored from version %d", targetVersion), actor)
	snapshot.Id = uuid.New().String()
	snapshot.CreatedAt = time.Now()
	if err := s.storage.SaveVersion(ctx, snapshot); err != nil {
		return nil, err
	}
	current.Name = target.Name
	current.Description = target.Description
	current.TriggerType = target.TriggerType
	current.TriggerConfig = target.TriggerConfig
	current.StartStep = target.StartStep
	current.Steps = target.Steps
	current.UpdatedAt = snapshot.CreatedAt
	if err := s.storage.SaveWorkflowDefinition(ctx, current); err != nil {
		return nil, err
	}
	s.defCache.Delete(defKey(workspace, workflowId))
	logger.Info("workflow restored", zap.String("workflowId", workflowId), zap.Int("fromVersion", targetVersion), zap.Int("newVersion", next))
	return &RestoreResult{
		Definition:          current,
		NewVersionNumber:    next,
		RestoredFromVersion: targetVersion,
	}, nil
}

func (s *Service) GetActive(ctx context.Context, workspace string, workflowId string) (*model.WorkflowDefinition, error) {
	def, err := s.Get(ctx, workspace, workflowId)
	if err != nil {
		return nil, err
	}
	if def.Status != model.WORKFLOW_STATUS_ACTIVE {
		return nil, api.InactiveWorkflowError{WorkflowId: workflowId, Status: string(def.Status)}
	}
	return def, nil
}

func (s *Service) Get(ctx context.Context, workspace string, workflowId string) (*model.WorkflowDefinition, error) {
	if cached, found := s.defCache.Get(defKey(workspace, workflowId)); found {
		def := cached.(model.WorkflowDefinition)
		return &def, nil
	}
	def, err := s.storage.GetWorkflowDefinition(ctx, workspace, workflowId)
	if err != nil {
		return nil, err
	}
	s.defCache.Set(defKey(workspace, workflowId), *def, c.DefaultExpiration)
	return def, nil
}

func (s *Service) ListVersions(ctx context.Context, workspace string, workflowId string) ([]model.VersionSummary, error) {
	versions, err := s.storage.ListVersions(ctx, workspace, workflowId)
	if err != nil {
		return nil, err
	}
	summaries := make([]model.VersionSummary, 0, len(versions))
	for _, v := range versions {
		summaries = append(summaries, model.VersionSummary{
			Id:                v.Id,
			Version:           v.Version,
			ChangeDescription: v.ChangeDescription,
			Author:            v.Author,
			CreatedAt:         v.CreatedAt,
		})
	}
	return summaries, nil
}

// LatestVersionNumber reports the number the live definition corresponds to.
func (s *Service) LatestVersionNumber(ctx context.Context, workspace string, workflowId string) (int, error) {
	versions, err := s.storage.ListVersions(ctx, workspace, workflowId)
	if err != nil {
		return 0, err
	}
	if len(versions) == 0 {
		return 0, api.NotFoundError{Entity: "workflow", Id: workflowId}
	}
	return versions[0].Version, nil
}

// GetFlow returns the compiled, immutable form of one workflow version.
func (s *Service) GetFlow(ctx context.Context, workspace string, workflowId string, version int) (*flow.Flow, error) {
	key := fmt.Sprintf("%s:%s:%d", workspace, workflowId, version)
	if cached, found := s.flowCache.Get(key); found {
		return cached.(*flow.Flow), nil
	}
	v, err := s.storage.GetVersion(ctx, workspace, workflowId, version)
	if err != nil {
		return nil, err
	}
	fl, err := flow.Compile(v)
	if err != nil {
		return nil, err
	}
	s.flowCache.Set(key, fl, c.NoExpiration)
	return fl, nil
}

func (s *Service) nextVersionNumber(ctx context.Context, workspace string, workflowId string) (int, error) {
	latest, err := s.LatestVersionNumber(ctx, workspace, workflowId)
	if err != nil {
		return 0, err
	}
	return latest + 1, nil
}

func defKey(workspace string, workflowId string) string {
	return workspace + ":" + workflowId
}

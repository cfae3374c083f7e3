package model

import "time"

type WorkflowStatus string

const (
	WORKFLOW_STATUS_DRAFT    WorkflowStatus = "draft"
	WORKFLOW_STATUS_ACTIVE   WorkflowStatus = "active"
	WORKFLOW_STATUS_PAUSED   WorkflowStatus = "paused"
	WORKFLOW_STATUS_ARCHIVED WorkflowStatus = "archived"
)

type TriggerType string

const (
	TRIGGER_TYPE_MANUAL   TriggerType = "manual"
	TRIGGER_TYPE_EVENT    TriggerType = "event"
	TRIGGER_TYPE_SCHEDULE TriggerType = "schedule"
	TRIGGER_TYPE_AGENT    TriggerType = "agent-request"
)

type StepKind string

const (
	STEP_KIND_ACTION    StepKind = "action"
	STEP_KIND_TRANSFORM StepKind = "transform"
	STEP_KIND_DELAY     StepKind = "delay"
)

type MatchPolicy string

const (
	MATCH_ALL MatchPolicy = "all"
	MATCH_ANY MatchPolicy = "any"
)

type RetryPolicy string

const (
	RETRY_POLICY_FIXED   RetryPolicy = "FIXED"
	RETRY_POLICY_BACKOFF RetryPolicy = "BACKOFF"
)

type WorkflowDefinition struct {
	Id            string         `json:"id"`
	Workspace     string         `json:"workspace"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	TriggerType   TriggerType    `json:"triggerType"`
	TriggerConfig map[string]any `json:"triggerConfig,omitempty"`
	Status        WorkflowStatus `json:"status"`
	StartStep     string         `json:"startStep,omitempty"`
	Steps         []Step         `json:"steps"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// WorkflowVersion is an immutable snapshot of a definition taken before any
// in-place edit or restore. Appended, never mutated.
type WorkflowVersion struct {
	Id                string         `json:"id"`
	WorkflowId        string         `json:"workflowId"`
	Workspace         string         `json:"workspace"`
	Version           int            `json:"version"`
	Name              string         `json:"name"`
	Description       string         `json:"description"`
	TriggerType       TriggerType    `json:"triggerType"`
	TriggerConfig     map[string]any `json:"triggerConfig,omitempty"`
	StartStep         string         `json:"startStep,omitempty"`
	Steps             []Step         `json:"steps"`
	ChangeDescription string         `json:"changeDescription"`
	Author            string         `json:"author"`
	CreatedAt         time.Time      `json:"createdAt"`
}

type VersionSummary struct {
	Id                string    `json:"id"`
	Version           int       `json:"version"`
	ChangeDescription string    `json:"changeDescription"`
	Author            string    `json:"author"`
	CreatedAt         time.Time `json:"createdAt"`
}

type Step struct {
	Id           string         `json:"id"`
	Name         string         `json:"name"`
	Kind         StepKind       `json:"kind"`
	Action       string         `json:"action,omitempty"`
	Input        map[string]any `json:"input,omitempty"`
	Conditions   []Condition    `json:"conditions,omitempty"`
	Match        MatchPolicy    `json:"match,omitempty"`
	OnSuccess    string         `json:"onSuccess,omitempty"`
	OnFailure    string         `json:"onFailure,omitempty"`
	TimeoutMs    int            `json:"timeoutMs,omitempty"`
	Retry        *RetryConfig   `json:"retry,omitempty"`
	Transform    string         `json:"transform,omitempty"`
	DelaySeconds int            `json:"delaySeconds,omitempty"`
}

type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

type RetryConfig struct {
	MaxAttempts int         `json:"maxAttempts"`
	BackoffMs   int         `json:"backoffMs"`
	Policy      RetryPolicy `json:"policy,omitempty"`
}

type WorkflowRunRequest struct {
	WorkflowId     string         `json:"workflowId"`
	Workspace      string         `json:"workspace"`
	TriggerType    TriggerType    `json:"triggerType"`
	TriggerData    map[string]any `json:"triggerData,omitempty"`
	InitialContext map[string]any `json:"initialContext,omitempty"`
	TriggeredBy    string         `json:"triggeredBy"`
}

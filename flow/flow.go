package flow

import (
	"fmt"
	"time"

	api "github.com/warden-io/warden/api/v1"
	"github.com/warden-io/warden/model"
)

// Step is one compiled node of the graph. The concrete variant (action,
// transform, delay) is resolved once at compile time so the engine never
// string-matches step kinds per execution.
type Step interface {
	Id() string
	Name() string
	Kind() model.StepKind
	Def() *model.Step
}

type baseStep struct {
	def model.Step
}

func (b *baseStep) Id() string           { return b.def.Id }
func (b *baseStep) Name() string         { return b.def.Name }
func (b *baseStep) Kind() model.StepKind { return b.def.Kind }
func (b *baseStep) Def() *model.Step     { return &b.def }

// ActionStep dispatches through the agent-action interface.
type ActionStep struct {
	baseStep
	Action string
}

// TransformStep applies a named operation from the transform library.
type TransformStep struct {
	baseStep
	Op TransformFunc
}

// DelayStep parks the branch on the delay queue before following the
// success edge.
type DelayStep struct {
	baseStep
	Delay time.Duration
}

// Flow is the immutable compiled form of one workflow version. Executions
// each hold their own Flow snapshot; nothing here is mutated after Compile.
type Flow struct {
	WorkflowId string
	Workspace  string
	Version    int
	Entry      string
	Steps      map[string]Step
}

func Compile(v *model.WorkflowVersion) (*Flow, error) {
	steps := make(map[string]Step, len(v.Steps))
	for _, def := range v.Steps {
		base := baseStep{def: def}
		switch def.Kind {
		case model.STEP_KIND_TRANSFORM:
			op, ok := LookupTransform(def.Transform)
			if !ok {
				return nil, api.ValidationError{Message: fmt.Sprintf("step %s: unknown transform %q", def.Id, def.Transform)}
			}
			steps[def.Id] = &TransformStep{baseStep: base, Op: op}
		case model.STEP_KIND_DELAY:
			steps[def.Id] = &DelayStep{baseStep: base, Delay: time.Duration(def.DelaySeconds) * time.Second}
		default:
			steps[def.Id] = &ActionStep{baseStep: base, Action: def.Action}
		}
	}
	entry, err := resolveEntry(v.StartStep, v.Steps)
	if err != nil {
		return nil, err
	}
	return &Flow{
		WorkflowId: v.WorkflowId,
		Workspace:  v.Workspace,
		Version:    v.Version,
		Entry:      entry,
		Steps:      steps,
	}, nil
}

// ReachableCount is the number of steps reachable from the entry over
// success and failure edges; executions record it as totalSteps at start.
func (f *Flow) ReachableCount() int {
	seen := make(map[string]bool)
	queue := []string{f.Entry}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == "" || seen[id] {
			continue
		}
		step, ok := f.Steps[id]
		if !ok {
			continue
		}
		seen[id] = true
		queue = append(queue, step.Def().OnSuccess, step.Def().OnFailure)
	}
	return len(seen)
}

// resolveEntry returns the explicit start step when set, otherwise the
// unique step no edge points at.
func resolveEntry(startStep string, steps []model.Step) (string, error) {
	if len(steps) == 0 {
		return "", api.ValidationError{Message: "workflow has no steps"}
	}
	byId := make(map[string]bool, len(steps))
	for _, s := range steps {
		byId[s.Id] = true
	}
	if startStep != "" {
		if !byId[startStep] {
			return "", api.ValidationError{Message: fmt.Sprintf("start step %s does not exist", startStep)}
		}
		return startStep, nil
	}
	incoming := make(map[string]int)
	for _, s := range steps {
		if s.OnSuccess != "" {
			incoming[s.OnSuccess]++
		}
		if s.OnFailure != "" {
			incoming[s.OnFailure]++
		}
	}
	var roots []string
	for _, s := range steps {
		if incoming[s.Id] == 0 {
			roots = append(roots, s.Id)
		}
	}
	if len(roots) != 1 {
		return "", api.ValidationError{Message: fmt.Sprintf("workflow needs exactly one entry step, found %d", len(roots))}
	}
	return roots[0], nil
}

// Validate runs at save time: structural checks plus a DFS cycle check so a
// stored graph is always a DAG.
func Validate(v *model.WorkflowVersion) error {
	byId := make(map[string]model.Step, len(v.Steps))
	for _, s := range v.Steps {
		if s.Id == "" {
			return api.ValidationError{Message: "step id can not be empty"}
		}
		if _, ok := byId[s.Id]; ok {
			return api.ValidationError{Message: fmt.Sprintf("step id %s is duplicate", s.Id)}
		}
		byId[s.Id] = s
	}
	for _, s := range v.Steps {
		if s.OnSuccess != "" {
			if _, ok := byId[s.OnSuccess]; !ok {
				return api.ValidationError{Message: fmt.Sprintf("step %s: onSuccess references unknown step %s", s.Id, s.OnSuccess)}
			}
		}
		if s.OnFailure != "" {
			if _, ok := byId[s.OnFailure]; !ok {
				return api.ValidationError{Message: fmt.Sprintf("step %s: onFailure references unknown step %s", s.Id, s.OnFailure)}
			}
		}
		switch s.Kind {
		case model.STEP_KIND_ACTION, "":
			if s.Action == "" {
				return api.ValidationError{Message: fmt.Sprintf("step %s: action identifier can not be empty", s.Id)}
			}
		case model.STEP_KIND_TRANSFORM:
			if _, ok := LookupTransform(s.Transform); !ok {
				return api.ValidationError{Message: fmt.Sprintf("step %s: unknown transform %q", s.Id, s.Transform)}
			}
		case model.STEP_KIND_DELAY:
			if s.DelaySeconds <= 0 {
				return api.ValidationError{Message: fmt.Sprintf("step %s: delay must be positive", s.Id)}
			}
		default:
			return api.ValidationError{Message: fmt.Sprintf("step %s: unknown kind %q", s.Id, s.Kind)}
		}
		if s.Retry != nil && s.Retry.MaxAttempts < 1 {
			return api.ValidationError{Message: fmt.Sprintf("step %s: retry maxAttempts must be at least 1", s.Id)}
		}
	}
	if _, err := resolveEntry(v.StartStep, v.Steps); err != nil {
		return err
	}
	if cycle := findCycle(byId); cycle != "" {
		return api.ValidationError{Message: fmt.Sprintf("workflow graph has a cycle through step %s", cycle)}
	}
	return nil
}

// findCycle is a three-color DFS over success/failure edges; it returns a
// step id on the first back edge found, empty string for a DAG.
func findCycle(steps map[string]model.Step) string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(steps))
	var visit func(id string) string
	visit = func(id string) string {
		color[id] = gray
		s := steps[id]
		for _, next := range []string{s.OnSuccess, s.OnFailure} {
			if next == "" {
				continue
			}
			switch color[next] {
			case gray:
				return next
			case white:
				if found := visit(next); found != "" {
					return found
				}
			}
		}
		color[id] = black
		return ""
	}
	for id := range steps {
		if color[id] == white {
			if found := visit(id); found != "" {
				return found
			}
		}
	}
	return ""
}

// VersionFromDefinition snapshots the mutable live fields of a definition
// into a version row.
func VersionFromDefinition(def *model.WorkflowDefinition, version int, changeDescription string, author string) *model.WorkflowVersion {
	return &model.WorkflowVersion{
		WorkflowId:        def.Id,
		Workspace:         def.Workspace,
		Version:           version,
		Name:              def.Name,
		Description:       def.Description,
		TriggerType:       def.TriggerType,
		TriggerConfig:     def.TriggerConfig,
		StartStep:         def.StartStep,
		Steps:             def.Steps,
		ChangeDescription: changeDescription,
		Author:            author,
	}
}

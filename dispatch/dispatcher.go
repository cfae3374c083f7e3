package dispatch

import (
	"context"
	"sync"

	api "github.com/warden-io/warden/api/v1"
	"github.com/warden-io/warden/model"
)

// ActionRequest carries the merged step input to a connector.
type ActionRequest struct {
	Workspace   string
	ExecutionId string
	StepId      string
	Action      string
	Attempt     int
	Input       map[string]any
}

// Handler performs the real-world effect of one action identifier.
// Connector implementations (calendar, payments, messaging, content
// generation) register here; the engine never knows which is which.
type Handler interface {
	Execute(ctx context.Context, req ActionRequest) (map[string]any, error)
	SideEffect() model.SideEffect
}

// Dispatcher routes an action identifier to its registered handler.
type Dispatcher interface {
	Dispatch(ctx context.Context, req ActionRequest) (map[string]any, error)
	SideEffectOf(action string) model.SideEffect
}

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

var _ Dispatcher = new(Registry)

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(action string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[action] = handler
}

func (r *Registry) Dispatch(ctx context.Context, req ActionRequest) (map[string]any, error) {
	r.mu.RLock()
	handler, ok := r.handlers[req.Action]
	r.mu.RUnlock()
	if !ok {
		return nil, api.StepExecutionError{StepId: req.StepId, Message: "no handler registered for action " + req.Action, Terminal: true}
	}
	return handler.Execute(ctx, req)
}

// SideEffectOf reports the declared category of a registered action;
// unregistered actions report destructive so the classifier gates them.
func (r *Registry) SideEffectOf(action string) model.SideEffect {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if handler, ok := r.handlers[action]; ok {
		return handler.SideEffect()
	}
	return model.SIDE_EFFECT_DESTRUCTIVE
}

// HandlerFunc adapts a function and a declared side effect to Handler.
type HandlerFunc struct {
	Fn     func(ctx context.Context, req ActionRequest) (map[string]any, error)
	Effect model.SideEffect
}

func (h HandlerFunc) Execute(ctx context.Context, req ActionRequest) (map[string]any, error) {
	return h.Fn(ctx, req)
}

func (h HandlerFunc) SideEffect() model.SideEffect {
	return h.Effect
}

package stagecraft

import (
	"context"
	"time"
)

// EngineCallbacks defines the callback interface for engine execution events
type EngineCallbacks interface {
	// Step-level callbacks: one external start/continue/feedback command
	BeforeSessionStep(ctx context.Context, event *SessionStepEvent)
	AfterSessionStep(ctx context.Context, event *SessionStepEvent)

	// Group-level callbacks
	BeforeGroupExecution(ctx context.Context, event *GroupExecutionEvent)
	AfterGroupExecution(ctx context.Context, event *GroupExecutionEvent)

	// Generation-call callbacks
	BeforeGeneration(ctx context.Context, event *GenerationEvent)
	AfterGeneration(ctx context.Context, event *GenerationEvent)
}

// SessionStepEvent provides context for one external command against a session
type SessionStepEvent struct {
	SessionID string
	Command   string
	Stage     string
	Status    SessionStatus
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Error     error
}

// GroupExecutionEvent provides context for stage-group execution events
type GroupExecutionEvent struct {
	SessionID string
	Stages    []string
	Parallel  bool
	Feedback  []string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Error     error
}

// GenerationEvent provides context for a single generation call
type GenerationEvent struct {
	SessionID string
	Stage     string
	Feedback  []string
	Kind      string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Error     error
}

// BaseEngineCallbacks provides a default implementation that does nothing
type BaseEngineCallbacks struct{}

func (n *BaseEngineCallbacks) BeforeSessionStep(ctx context.Context, event *SessionStepEvent) {
	// noop
}

func (n *BaseEngineCallbacks) AfterSessionStep(ctx context.Context, event *SessionStepEvent) {
	// noop
}

func (n *BaseEngineCallbacks) BeforeGroupExecution(ctx context.Context, event *GroupExecutionEvent) {
	// noop
}

func (n *BaseEngineCallbacks) AfterGroupExecution(ctx context.Context, event *GroupExecutionEvent) {
	// noop
}

func (n *BaseEngineCallbacks) BeforeGeneration(ctx context.Context, event *GenerationEvent) {
	// noop
}

func (n *BaseEngineCallbacks) AfterGeneration(ctx context.Context, event *GenerationEvent) {
	// noop
}

// NewBaseEngineCallbacks creates a new no-op callbacks implementation.
// Embed this in your own callbacks to get a default implementation that does nothing.
func NewBaseEngineCallbacks() EngineCallbacks {
	return &BaseEngineCallbacks{}
}

// CallbackChain allows chaining multiple callback implementations
type CallbackChain struct {
	callbacks []EngineCallbacks
}

// NewCallbackChain creates a new callback chain
func NewCallbackChain(callbacks ...EngineCallbacks) *CallbackChain {
	return &CallbackChain{callbacks: callbacks}
}

// Add adds a callback to the chain
func (c *CallbackChain) Add(callback EngineCallbacks) {
	c.callbacks = append(c.callbacks, callback)
}

func (c *CallbackChain) BeforeSessionStep(ctx context.Context, event *SessionStepEvent) {
	for _, callback := range c.callbacks {
		callback.BeforeSessionStep(ctx, event)
	}
}

func (c *CallbackChain) AfterSessionStep(ctx context.Context, event *SessionStepEvent) {
	for _, callback := range c.callbacks {
		callback.AfterSessionStep(ctx, event)
	}
}

func (c *CallbackChain) BeforeGroupExecution(ctx context.Context, event *GroupExecutionEvent) {
	for _, callback := range c.callbacks {
		callback.BeforeGroupExecution(ctx, event)
	}
}

func (c *CallbackChain) AfterGroupExecution(ctx context.Context, event *GroupExecutionEvent) {
	for _, callback := range c.callbacks {
		callback.AfterGroupExecution(ctx, event)
	}
}

func (c *CallbackChain) BeforeGeneration(ctx context.Context, event *GenerationEvent) {
	for _, callback := range c.callbacks {
		callback.BeforeGeneration(ctx, event)
	}
}

func (c *CallbackChain) AfterGeneration(ctx context.Context, event *GenerationEvent) {
	for _, callback := range c.callbacks {
		callback.AfterGeneration(ctx, event)
	}
}

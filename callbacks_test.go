package stagecraft

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// recordingCallbacks counts engine events for assertions.
type recordingCallbacks struct {
	BaseEngineCallbacks
	mu          sync.Mutex
	steps       []string
	groups      []*GroupExecutionEvent
	generations int
}

func (r *recordingCallbacks) AfterSessionStep(ctx context.Context, event *SessionStepEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, event.Command)
}

func (r *recordingCallbacks) AfterGroupExecution(ctx context.Context, event *GroupExecutionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups = append(r.groups, event)
}

func (r *recordingCallbacks) AfterGeneration(ctx context.Context, event *GenerationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generations++
}

func TestEngineCallbacks(t *testing.T) {
	ctx := context.Background()
	recorder := &recordingCallbacks{}

	engine, err := NewEngine(Options{
		Registry:  DefaultPipeline(),
		Generator: newStubGenerator(),
		Callbacks: recorder,
	})
	require.NoError(t, err)

	view, err := engine.Start(ctx, "dark fantasy RPG")
	require.NoError(t, err)
	_, err = engine.Continue(ctx, view.SessionID)
	require.NoError(t, err)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.Equal(t, []string{"start", "continue"}, recorder.steps)
	require.Len(t, recorder.groups, 2)
	require.False(t, recorder.groups[0].Parallel)
	require.Equal(t, []string{"concept"}, recorder.groups[0].Stages)
	require.True(t, recorder.groups[1].Parallel)
	require.Equal(t, []string{"world_lore", "factions", "characters"}, recorder.groups[1].Stages)
	require.Equal(t, 4, recorder.generations)
}

func TestCallbackChain(t *testing.T) {
	ctx := context.Background()
	first := &recordingCallbacks{}
	second := &recordingCallbacks{}
	chain := NewCallbackChain(first)
	chain.Add(second)

	chain.AfterSessionStep(ctx, &SessionStepEvent{Command: "start"})
	chain.AfterGeneration(ctx, &GenerationEvent{Stage: "concept"})

	require.Equal(t, []string{"start"}, first.steps)
	require.Equal(t, []string{"start"}, second.steps)
	require.Equal(t, 1, first.generations)
	require.Equal(t, 1, second.generations)
}

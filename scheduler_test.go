package stagecraft

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func settingGroup(t *testing.T) (*Registry, []*StageDefinition) {
	t.Helper()
	registry := DefaultPipeline()
	group := registry.Group("world_lore")
	require.Len(t, group, 3)
	return registry, group
}

func sessionWithConcept(t *testing.T) *SessionState {
	t.Helper()
	session := newSessionState("sess_test", "dark fantasy RPG", "concept")
	session.ApplyStageResult("concept", MergeReplace, []*Document{testDocument(t, "concept", "v1")}, false)
	return session
}

func TestSchedulerValidation(t *testing.T) {
	_, err := NewScheduler(SchedulerOptions{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "generator is required")
}

func TestSchedulerParallelGroup(t *testing.T) {
	_, group := settingGroup(t)
	session := sessionWithConcept(t)

	var calls atomic.Int32
	scheduler, err := NewScheduler(SchedulerOptions{
		Generator: GeneratorFunc(func(ctx context.Context, req *GenerationRequest) (*Document, error) {
			calls.Add(1)
			// Every sibling sees the shared dependency context
			if _, ok := req.Context["concept"]; !ok {
				return nil, fmt.Errorf("missing concept context for %s", req.Stage)
			}
			return NewDocument(req.Stage, map[string]string{"stage": req.Stage})
		}),
	})
	require.NoError(t, err)

	results, err := scheduler.ExecuteGroup(context.Background(), session, group, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, int32(3), calls.Load())
	for _, name := range []string{"world_lore", "factions", "characters"} {
		require.NotNil(t, results[name])
		require.Equal(t, name, results[name].Kind)
	}
}

func TestSchedulerWorkerBound(t *testing.T) {
	_, group := settingGroup(t)
	session := sessionWithConcept(t)

	var mu sync.Mutex
	var current, peak int

	scheduler, err := NewScheduler(SchedulerOptions{
		MaxWorkers: 2,
		Generator: GeneratorFunc(func(ctx context.Context, req *GenerationRequest) (*Document, error) {
			mu.Lock()
			current++
			if current > peak {
				peak = current
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			current--
			mu.Unlock()
			return NewDocument(req.Stage, map[string]string{"stage": req.Stage})
		}),
	})
	require.NoError(t, err)

	results, err := scheduler.ExecuteGroup(context.Background(), session, group, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	mu.Lock()
	defer mu.Unlock()
	require.LessOrEqual(t, peak, 2)
}

func TestSchedulerSequentialFallback(t *testing.T) {
	_, group := settingGroup(t)
	session := sessionWithConcept(t)

	// factions fails on its first invocation only, so the parallel attempt
	// fails as a whole and the sequential pass succeeds.
	var factionAttempts atomic.Int32
	var sequence []string
	var mu sync.Mutex

	scheduler, err := NewScheduler(SchedulerOptions{
		Generator: GeneratorFunc(func(ctx context.Context, req *GenerationRequest) (*Document, error) {
			if req.Stage == "factions" && factionAttempts.Add(1) == 1 {
				return nil, errors.New("model unavailable")
			}
			mu.Lock()
			sequence = append(sequence, req.Stage)
			mu.Unlock()
			return NewDocument(req.Stage, map[string]string{"stage": req.Stage})
		}),
	})
	require.NoError(t, err)

	results, err := scheduler.ExecuteGroup(context.Background(), session, group, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// The fallback pass runs in declared order
	mu.Lock()
	tail := sequence[len(sequence)-3:]
	mu.Unlock()
	require.Equal(t, []string{"world_lore", "factions", "characters"}, tail)
}

func TestSchedulerFallbackAlsoFails(t *testing.T) {
	_, group := settingGroup(t)
	session := sessionWithConcept(t)

	scheduler, err := NewScheduler(SchedulerOptions{
		Generator: GeneratorFunc(func(ctx context.Context, req *GenerationRequest) (*Document, error) {
			if req.Stage == "factions" {
				return nil, errors.New("model unavailable")
			}
			return NewDocument(req.Stage, map[string]string{"stage": req.Stage})
		}),
	})
	require.NoError(t, err)

	results, err := scheduler.ExecuteGroup(context.Background(), session, group, nil)
	require.Error(t, err)
	require.Nil(t, results)
	require.True(t, IsGenerationFailure(err))

	var engineErr *EngineError
	require.ErrorAs(t, err, &engineErr)
	require.Equal(t, "factions", engineErr.Stage)
}

func TestSchedulerInvariantCheck(t *testing.T) {
	_, group := settingGroup(t)

	// Session without concept output: the group's dependencies are unsatisfied
	session := newSessionState("sess_test", "topic", "concept")

	var calls atomic.Int32
	scheduler, err := NewScheduler(SchedulerOptions{
		Generator: GeneratorFunc(func(ctx context.Context, req *GenerationRequest) (*Document, error) {
			calls.Add(1)
			return nil, nil
		}),
	})
	require.NoError(t, err)

	_, err = scheduler.ExecuteGroup(context.Background(), session, group, nil)
	require.Error(t, err)
	require.True(t, IsErrorType(err, ErrorTypeInvariant))
	require.Equal(t, int32(0), calls.Load())
}

func TestSchedulerDeadline(t *testing.T) {
	registry := DefaultPipeline()
	group := registry.Group("concept")
	session := newSessionState("sess_test", "topic", "concept")

	scheduler, err := NewScheduler(SchedulerOptions{
		Generator: GeneratorFunc(func(ctx context.Context, req *GenerationRequest) (*Document, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = scheduler.ExecuteGroup(ctx, session, group, nil)
	require.Error(t, err)
	require.True(t, IsErrorType(err, ErrorTypeTimeout))
}

func TestSchedulerGeneratorContext(t *testing.T) {
	registry := DefaultPipeline()
	group := registry.Group("concept")
	session := newSessionState("sess_ctx", "topic", "concept")

	scheduler, err := NewScheduler(SchedulerOptions{
		Generator: GeneratorFunc(func(ctx context.Context, req *GenerationRequest) (*Document, error) {
			if _, ok := GetLoggerFromContext(ctx); !ok {
				return nil, errors.New("logger missing from context")
			}
			sessionID, ok := GetSessionIDFromContext(ctx)
			if !ok || sessionID != "sess_ctx" {
				return nil, errors.New("session ID missing from context")
			}
			return NewDocument(req.Stage, map[string]string{"stage": req.Stage})
		}),
	})
	require.NoError(t, err)

	_, err = scheduler.ExecuteGroup(context.Background(), session, group, nil)
	require.NoError(t, err)
}

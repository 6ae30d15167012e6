package stagecraft

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileGenerationLogger(t *testing.T) {
	ctx := context.Background()
	logger := NewFileGenerationLogger(t.TempDir())

	entries := []*GenerationLogEntry{
		{SessionID: "sess_a", Stage: "concept", Kind: "concept", StartTime: time.Now(), Duration: 0.5},
		{SessionID: "sess_a", Stage: "factions", Feedback: []string{"darker"}, Error: "model unavailable", StartTime: time.Now()},
		{SessionID: "sess_b", Stage: "concept", StartTime: time.Now()},
	}
	for _, entry := range entries {
		require.NoError(t, logger.LogGeneration(ctx, entry))
	}

	history, err := logger.GetGenerationHistory(ctx, "sess_a")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "concept", history[0].Stage)
	require.Equal(t, "factions", history[1].Stage)
	require.Equal(t, []string{"darker"}, history[1].Feedback)
	require.Equal(t, "model unavailable", history[1].Error)

	history, err = logger.GetGenerationHistory(ctx, "sess_b")
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestSchedulerLogsGenerations(t *testing.T) {
	ctx := context.Background()
	logger := NewFileGenerationLogger(t.TempDir())
	registry := DefaultPipeline()
	session := newSessionState("sess_log", "topic", "concept")

	scheduler, err := NewScheduler(SchedulerOptions{
		GenerationLogger: logger,
		Generator: GeneratorFunc(func(ctx context.Context, req *GenerationRequest) (*Document, error) {
			return NewDocument(req.Stage, map[string]string{"stage": req.Stage})
		}),
	})
	require.NoError(t, err)

	_, err = scheduler.ExecuteGroup(ctx, session, registry.Group("concept"), nil)
	require.NoError(t, err)

	history, err := logger.GetGenerationHistory(ctx, "sess_log")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "concept", history[0].Stage)
	require.Equal(t, "concept", history[0].Kind)
}

package stagecraft_test

import (
	"context"
	"testing"
	"time"

	"github.com/deepnoodle-ai/stagecraft"
	"github.com/stretchr/testify/require"
)

func TestEngineLibraryExample(t *testing.T) {
	registry, err := stagecraft.LoadString(`
name: short-story
stages:
  - name: premise
  - name: setting
    depends_on: [premise]
    parallel_group: background
  - name: cast
    depends_on: [premise]
    parallel_group: background
    merge_strategy: append
  - name: outline
    depends_on: [setting, cast]
`)
	require.NoError(t, err)

	engine, err := stagecraft.NewEngine(stagecraft.Options{
		Registry: registry,
		Generator: stagecraft.GeneratorFunc(func(ctx context.Context, req *stagecraft.GenerationRequest) (*stagecraft.Document, error) {
			return stagecraft.NewDocument(req.Stage, map[string]any{
				"stage":    req.Stage,
				"topic":    req.Topic,
				"feedback": req.Feedback,
			})
		}),
		Checkpointer: stagecraft.NewMemoryCheckpointer(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	view, err := engine.Start(ctx, "a lighthouse keeper's last winter")
	require.NoError(t, err)
	require.Equal(t, "premise", view.CurrentStage)
	require.True(t, view.AwaitingFeedback)

	view, err = engine.Continue(ctx, view.SessionID)
	require.NoError(t, err)
	require.Equal(t, "setting", view.CurrentStage)

	view, err = engine.Feedback(ctx, view.SessionID, "make the keeper younger", false)
	require.NoError(t, err)
	require.Len(t, view.StageOutputs["cast"].Documents, 2)

	view, err = engine.Continue(ctx, view.SessionID)
	require.NoError(t, err)
	require.Equal(t, stagecraft.SessionStatusCompleted, view.Status)
	require.Equal(t, stagecraft.StageComplete, view.CurrentStage)

	history, err := engine.ListHistory(ctx, view.SessionID)
	require.NoError(t, err)
	require.Len(t, history, 4)
}

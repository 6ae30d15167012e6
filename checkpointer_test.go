package stagecraft

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testCheckpoint(t *testing.T, sessionID, stage string) *Checkpoint {
	t.Helper()
	session := newSessionState(sessionID, "topic", stage)
	session.ApplyStageResult(stage, MergeReplace, []*Document{testDocument(t, stage, "v1")}, false)
	return NewCheckpoint(session.Snapshot())
}

func runCheckpointerTests(t *testing.T, checkpointer Checkpointer) {
	ctx := context.Background()

	first := testCheckpoint(t, "sess_a", "concept")
	require.NoError(t, checkpointer.SaveCheckpoint(ctx, first))

	// Make the second checkpoint strictly newer
	second := testCheckpoint(t, "sess_a", "world_lore")
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	require.NoError(t, checkpointer.SaveCheckpoint(ctx, second))

	other := testCheckpoint(t, "sess_b", "concept")
	require.NoError(t, checkpointer.SaveCheckpoint(ctx, other))

	t.Run("get returns the stored checkpoint", func(t *testing.T) {
		got, err := checkpointer.GetCheckpoint(ctx, first.ID)
		require.NoError(t, err)
		require.Equal(t, first.ID, got.ID)
		require.Equal(t, "sess_a", got.SessionID)
		require.Equal(t, "concept", got.Stage)
		require.Len(t, got.Snapshot.StageOutputs["concept"].Documents, 1)
	})

	t.Run("unknown checkpoint is not found", func(t *testing.T) {
		_, err := checkpointer.GetCheckpoint(ctx, "ckpt_missing")
		require.Error(t, err)
		require.True(t, IsNotFound(err))
	})

	t.Run("history is per-session, newest first", func(t *testing.T) {
		history, err := checkpointer.ListHistory(ctx, "sess_a")
		require.NoError(t, err)
		require.Len(t, history, 2)
		require.Equal(t, second.ID, history[0].CheckpointID)
		require.Equal(t, first.ID, history[1].CheckpointID)
	})

	t.Run("history for unknown session is empty", func(t *testing.T) {
		history, err := checkpointer.ListHistory(ctx, "sess_missing")
		require.NoError(t, err)
		require.Empty(t, history)
	})

	t.Run("delete session removes only that session", func(t *testing.T) {
		require.NoError(t, checkpointer.DeleteSession(ctx, "sess_a"))
		history, err := checkpointer.ListHistory(ctx, "sess_a")
		require.NoError(t, err)
		require.Empty(t, history)

		_, err = checkpointer.GetCheckpoint(ctx, first.ID)
		require.True(t, IsNotFound(err))

		got, err := checkpointer.GetCheckpoint(ctx, other.ID)
		require.NoError(t, err)
		require.Equal(t, other.ID, got.ID)
	})
}

func TestMemoryCheckpointer(t *testing.T) {
	runCheckpointerTests(t, NewMemoryCheckpointer())
}

func TestFileCheckpointer(t *testing.T) {
	checkpointer, err := NewFileCheckpointer(t.TempDir())
	require.NoError(t, err)
	runCheckpointerTests(t, checkpointer)
}

func TestCheckpointImmutability(t *testing.T) {
	ctx := context.Background()
	checkpointer := NewMemoryCheckpointer()

	session := newSessionState("sess_a", "topic", "concept")
	session.ApplyStageResult("concept", MergeReplace, []*Document{testDocument(t, "concept", "v1")}, false)

	checkpoint := NewCheckpoint(session.Snapshot())
	require.NoError(t, checkpointer.SaveCheckpoint(ctx, checkpoint))

	// Mutate the live session and the local checkpoint after saving
	session.ApplyStageResult("concept", MergeReplace, []*Document{testDocument(t, "concept", "v2")}, false)
	checkpoint.Snapshot.StageOutputs["concept"].Documents[0].Content = json.RawMessage(`{"text":"mutated"}`)

	got, err := checkpointer.GetCheckpoint(ctx, checkpoint.ID)
	require.NoError(t, err)
	require.JSONEq(t, `{"text":"v1"}`, string(got.Snapshot.StageOutputs["concept"].Documents[0].Content))
}

func TestNullCheckpointer(t *testing.T) {
	ctx := context.Background()
	checkpointer := NewNullCheckpointer()

	require.NoError(t, checkpointer.SaveCheckpoint(ctx, testCheckpoint(t, "sess_a", "concept")))
	_, err := checkpointer.GetCheckpoint(ctx, "anything")
	require.True(t, IsNotFound(err))

	history, err := checkpointer.ListHistory(ctx, "sess_a")
	require.NoError(t, err)
	require.Empty(t, history)
}

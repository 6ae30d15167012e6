package stagecraft

import (
	"context"
)

// Checkpointer persists immutable session snapshots. The checkpoint log is
// append-only: resuming from an earlier checkpoint never deletes later ones,
// which keeps branching exploration possible.
type Checkpointer interface {
	// SaveCheckpoint appends a checkpoint to the session's history
	SaveCheckpoint(ctx context.Context, checkpoint *Checkpoint) error

	// GetCheckpoint loads a checkpoint by its ID
	GetCheckpoint(ctx context.Context, checkpointID string) (*Checkpoint, error)

	// ListHistory returns checkpoint metadata for a session, newest first
	ListHistory(ctx context.Context, sessionID string) ([]*CheckpointSummary, error)

	// DeleteSession removes all checkpoint data for a session
	DeleteSession(ctx context.Context, sessionID string) error
}

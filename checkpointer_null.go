package stagecraft

import "context"

// NullCheckpointer is a no-op implementation
type NullCheckpointer struct{}

func NewNullCheckpointer() *NullCheckpointer {
	return &NullCheckpointer{}
}

func (c *NullCheckpointer) SaveCheckpoint(ctx context.Context, checkpoint *Checkpoint) error {
	return nil
}

func (c *NullCheckpointer) GetCheckpoint(ctx context.Context, checkpointID string) (*Checkpoint, error) {
	return nil, NewEngineError(ErrorTypeNotFound, "checkpoint "+checkpointID+" not found")
}

func (c *NullCheckpointer) ListHistory(ctx context.Context, sessionID string) ([]*CheckpointSummary, error) {
	return nil, nil
}

func (c *NullCheckpointer) DeleteSession(ctx context.Context, sessionID string) error {
	return nil
}

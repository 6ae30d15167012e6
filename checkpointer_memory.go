package stagecraft

import (
	"context"
	"sort"
	"sync"
)

// MemoryCheckpointer keeps checkpoint history in process memory. Useful for
// tests and for callers that treat checkpoints as session-lifetime-only.
type MemoryCheckpointer struct {
	mutex       sync.RWMutex
	checkpoints map[string]*Checkpoint
	bySession   map[string][]string
}

// NewMemoryCheckpointer creates a new in-memory checkpointer.
func NewMemoryCheckpointer() *MemoryCheckpointer {
	return &MemoryCheckpointer{
		checkpoints: map[string]*Checkpoint{},
		bySession:   map[string][]string{},
	}
}

// SaveCheckpoint appends a checkpoint to the session's history.
func (c *MemoryCheckpointer) SaveCheckpoint(ctx context.Context, checkpoint *Checkpoint) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	stored := *checkpoint
	stored.Snapshot = checkpoint.Snapshot.Copy()
	c.checkpoints[checkpoint.ID] = &stored
	c.bySession[checkpoint.SessionID] = append(c.bySession[checkpoint.SessionID], checkpoint.ID)
	return nil
}

// GetCheckpoint loads a checkpoint by ID.
func (c *MemoryCheckpointer) GetCheckpoint(ctx context.Context, checkpointID string) (*Checkpoint, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	checkpoint, ok := c.checkpoints[checkpointID]
	if !ok {
		return nil, NewEngineError(ErrorTypeNotFound, "checkpoint "+checkpointID+" not found")
	}
	restored := *checkpoint
	restored.Snapshot = checkpoint.Snapshot.Copy()
	return &restored, nil
}

// ListHistory returns checkpoint metadata for a session, newest first.
func (c *MemoryCheckpointer) ListHistory(ctx context.Context, sessionID string) ([]*CheckpointSummary, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	ids := c.bySession[sessionID]
	summaries := make([]*CheckpointSummary, 0, len(ids))
	for _, id := range ids {
		summaries = append(summaries, c.checkpoints[id].Summary())
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

// DeleteSession removes all checkpoint data for a session.
func (c *MemoryCheckpointer) DeleteSession(ctx context.Context, sessionID string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, id := range c.bySession[sessionID] {
		delete(c.checkpoints, id)
	}
	delete(c.bySession, sessionID)
	return nil
}

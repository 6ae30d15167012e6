package stagecraft

import (
	"time"

	"go.jetify.com/typeid"
)

// NewCheckpointID returns a new unique checkpoint identifier.
func NewCheckpointID() string {
	id, err := typeid.WithPrefix("ckpt")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// Checkpoint contains a complete immutable snapshot of session state,
// captured once after each completed stage-group transition.
type Checkpoint struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Stage     string    `json:"stage"`
	Snapshot  *Session  `json:"snapshot"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCheckpoint captures a checkpoint from a session snapshot. The snapshot
// is deep-copied so later session mutations never leak into history.
func NewCheckpoint(snapshot *Session) *Checkpoint {
	return &Checkpoint{
		ID:        NewCheckpointID(),
		SessionID: snapshot.SessionID,
		Stage:     snapshot.CurrentStage,
		Snapshot:  snapshot.Copy(),
		CreatedAt: time.Now(),
	}
}

// CheckpointSummary is the metadata view used for history listings.
type CheckpointSummary struct {
	CheckpointID string    `json:"checkpoint_id"`
	SessionID    string    `json:"session_id"`
	Stage        string    `json:"stage"`
	CreatedAt    time.Time `json:"created_at"`
}

// Summary returns the metadata view of a checkpoint.
func (c *Checkpoint) Summary() *CheckpointSummary {
	return &CheckpointSummary{
		CheckpointID: c.ID,
		SessionID:    c.SessionID,
		Stage:        c.Stage,
		CreatedAt:    c.CreatedAt,
	}
}

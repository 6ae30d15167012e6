package stagecraft

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PostgresCheckpointer persists checkpoints in a Postgres table. The caller
// owns the *sql.DB and is responsible for registering a driver (lib/pq).
type PostgresCheckpointer struct {
	db    *sql.DB
	table string
}

// NewPostgresCheckpointer creates a checkpointer backed by the given database.
func NewPostgresCheckpointer(db *sql.DB) *PostgresCheckpointer {
	return &PostgresCheckpointer{db: db, table: "stagecraft_checkpoints"}
}

// EnsureSchema creates the checkpoints table if it does not exist.
func (c *PostgresCheckpointer) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			checkpoint_id TEXT PRIMARY KEY,
			session_id    TEXT NOT NULL,
			stage         TEXT NOT NULL,
			snapshot      JSONB NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS %s_session_idx ON %s (session_id, created_at DESC);
	`, c.table, c.table, c.table)
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create checkpoints schema: %w", err)
	}
	return nil
}

// SaveCheckpoint inserts a checkpoint row. Checkpoints are immutable, so
// duplicate IDs are rejected rather than upserted.
func (c *PostgresCheckpointer) SaveCheckpoint(ctx context.Context, checkpoint *Checkpoint) error {
	snapshot, err := json.Marshal(checkpoint.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (checkpoint_id, session_id, stage, snapshot, created_at) VALUES ($1, $2, $3, $4, $5)",
		c.table)
	if _, err := c.db.ExecContext(ctx, query,
		checkpoint.ID, checkpoint.SessionID, checkpoint.Stage, snapshot, checkpoint.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint loads a checkpoint by ID.
func (c *PostgresCheckpointer) GetCheckpoint(ctx context.Context, checkpointID string) (*Checkpoint, error) {
	query := fmt.Sprintf(
		"SELECT checkpoint_id, session_id, stage, snapshot, created_at FROM %s WHERE checkpoint_id = $1",
		c.table)
	row := c.db.QueryRowContext(ctx, query, checkpointID)

	var checkpoint Checkpoint
	var snapshot []byte
	err := row.Scan(&checkpoint.ID, &checkpoint.SessionID, &checkpoint.Stage, &snapshot, &checkpoint.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewEngineError(ErrorTypeNotFound, "checkpoint "+checkpointID+" not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if err := json.Unmarshal(snapshot, &checkpoint.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &checkpoint, nil
}

// ListHistory returns checkpoint metadata for a session, newest first.
func (c *PostgresCheckpointer) ListHistory(ctx context.Context, sessionID string) ([]*CheckpointSummary, error) {
	query := fmt.Sprintf(
		"SELECT checkpoint_id, session_id, stage, created_at FROM %s WHERE session_id = $1 ORDER BY created_at DESC",
		c.table)
	rows, err := c.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var summaries []*CheckpointSummary
	for rows.Next() {
		var summary CheckpointSummary
		var createdAt time.Time
		if err := rows.Scan(&summary.CheckpointID, &summary.SessionID, &summary.Stage, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint row: %w", err)
		}
		summary.CreatedAt = createdAt
		summaries = append(summaries, &summary)
	}
	return summaries, rows.Err()
}

// DeleteSession removes all checkpoint rows for a session.
func (c *PostgresCheckpointer) DeleteSession(ctx context.Context, sessionID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE session_id = $1", c.table)
	if _, err := c.db.ExecContext(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to delete session checkpoints: %w", err)
	}
	return nil
}

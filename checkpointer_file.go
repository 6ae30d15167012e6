package stagecraft

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileCheckpointer is a file-based implementation that persists checkpoints
// to disk, one JSON file per checkpoint under a per-session directory.
type FileCheckpointer struct {
	dataDir string
}

// NewFileCheckpointer creates a new file-based checkpointer
func NewFileCheckpointer(dataDir string) (*FileCheckpointer, error) {
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".deepnoodle", "stagecraft", "sessions")
	}

	// Ensure the data directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}

	return &FileCheckpointer{dataDir: dataDir}, nil
}

// SaveCheckpoint saves the checkpoint to disk
func (c *FileCheckpointer) SaveCheckpoint(ctx context.Context, checkpoint *Checkpoint) error {
	sessionDir := filepath.Join(c.dataDir, checkpoint.SessionID)
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	checkpointPath := filepath.Join(sessionDir, fmt.Sprintf("checkpoint-%s.json", checkpoint.ID))
	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	if err := os.WriteFile(checkpointPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}
	return nil
}

// GetCheckpoint loads a checkpoint by ID, scanning session directories.
func (c *FileCheckpointer) GetCheckpoint(ctx context.Context, checkpointID string) (*Checkpoint, error) {
	entries, err := os.ReadDir(c.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewEngineError(ErrorTypeNotFound, "checkpoint "+checkpointID+" not found")
		}
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	fileName := fmt.Sprintf("checkpoint-%s.json", checkpointID)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		checkpointPath := filepath.Join(c.dataDir, entry.Name(), fileName)
		if _, err := os.Stat(checkpointPath); err != nil {
			continue
		}
		return c.readCheckpoint(checkpointPath)
	}
	return nil, NewEngineError(ErrorTypeNotFound, "checkpoint "+checkpointID+" not found")
}

// ListHistory returns checkpoint metadata for a session, newest first.
func (c *FileCheckpointer) ListHistory(ctx context.Context, sessionID string) ([]*CheckpointSummary, error) {
	sessionDir := filepath.Join(c.dataDir, sessionID)
	entries, err := os.ReadDir(sessionDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No checkpoints yet
		}
		return nil, fmt.Errorf("failed to read session directory: %w", err)
	}

	var summaries []*CheckpointSummary
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		checkpoint, err := c.readCheckpoint(filepath.Join(sessionDir, entry.Name()))
		if err != nil {
			// Skip checkpoints we can't read
			continue
		}
		summaries = append(summaries, checkpoint.Summary())
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

// DeleteSession removes all checkpoint data for a session
func (c *FileCheckpointer) DeleteSession(ctx context.Context, sessionID string) error {
	sessionDir := filepath.Join(c.dataDir, sessionID)
	if err := os.RemoveAll(sessionDir); err != nil {
		return fmt.Errorf("failed to delete session directory: %w", err)
	}
	return nil
}

func (c *FileCheckpointer) readCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}
	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &checkpoint, nil
}

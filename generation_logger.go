package stagecraft

import (
	"context"
	"time"
)

// GenerationLogEntry represents a single generation call log entry
type GenerationLogEntry struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Stage     string    `json:"stage"`
	Kind      string    `json:"kind,omitempty"`
	Feedback  []string  `json:"feedback,omitempty"`
	Error     string    `json:"error,omitempty"`
	StartTime time.Time `json:"start_time"`
	Duration  float64   `json:"duration"`
}

// GenerationLogger defines simple generation-call logging interface
type GenerationLogger interface {
	// LogGeneration logs a completed generation call
	LogGeneration(ctx context.Context, entry *GenerationLogEntry) error

	// GetGenerationHistory retrieves the generation log for a session
	GetGenerationHistory(ctx context.Context, sessionID string) ([]*GenerationLogEntry, error)
}

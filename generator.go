package stagecraft

import (
	"context"
)

// GenerationRequest carries everything a generator needs for one stage call:
// the stage name, the accumulated outputs of its dependency stages, and any
// feedback text gathered for the stage so far. Deadlines and cancellation
// arrive through the context.
type GenerationRequest struct {
	SessionID string                  `json:"session_id"`
	Topic     string                  `json:"topic"`
	Stage     string                  `json:"stage"`
	Context   map[string]*StageOutput `json:"context"`
	Feedback  []string                `json:"feedback,omitempty"`
}

// Generator is the seam to the external content generator. Implementations
// perform the actual synthesis call and return a structured document; the
// engine treats the document as opaque.
type Generator interface {
	Generate(ctx context.Context, req *GenerationRequest) (*Document, error)
}

// GeneratorFunc is a function that can be used as a Generator
type GeneratorFunc func(ctx context.Context, req *GenerationRequest) (*Document, error)

func (f GeneratorFunc) Generate(ctx context.Context, req *GenerationRequest) (*Document, error) {
	return f(ctx, req)
}

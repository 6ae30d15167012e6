package stagecraft

import "context"

// NullGenerationLogger is a no-op implementation of GenerationLogger.
type NullGenerationLogger struct{}

func NewNullGenerationLogger() *NullGenerationLogger {
	return &NullGenerationLogger{}
}

func (l *NullGenerationLogger) LogGeneration(ctx context.Context, entry *GenerationLogEntry) error {
	return nil
}

func (l *NullGenerationLogger) GetGenerationHistory(ctx context.Context, sessionID string) ([]*GenerationLogEntry, error) {
	return nil, nil
}

package stagecraft

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileGenerationLogger is an implementation of GenerationLogger that logs to
// a file. A file is created per session, formatted as newline-delimited JSON.
type FileGenerationLogger struct {
	directory string
}

func NewFileGenerationLogger(directory string) *FileGenerationLogger {
	return &FileGenerationLogger{directory: directory}
}

func (l *FileGenerationLogger) sessionLogPath(sessionID string) string {
	return filepath.Join(l.directory, fmt.Sprintf("%s.jsonl", sessionID))
}

func (l *FileGenerationLogger) GetGenerationHistory(ctx context.Context, sessionID string) ([]*GenerationLogEntry, error) {
	filePath := l.sessionLogPath(sessionID)
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var entries []*GenerationLogEntry
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		var entry GenerationLogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

func (l *FileGenerationLogger) LogGeneration(ctx context.Context, entry *GenerationLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	filePath := l.sessionLogPath(entry.SessionID)
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write([]byte(string(data) + "\n")); err != nil {
		return err
	}
	return f.Sync()
}

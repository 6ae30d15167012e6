package stagecraft

import (
	"sort"
	"sync"
	"time"
)

// SessionSummary provides a summary view of a session
type SessionSummary struct {
	SessionID    string        `json:"session_id"`
	Topic        string        `json:"topic"`
	CurrentStage string        `json:"current_stage"`
	Status       SessionStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Error        string        `json:"error,omitempty"`
}

// SessionStore holds the live state of all sessions, keyed by session ID.
// Cross-session operations are independent; per-session mutation is
// serialized by each SessionState's own lock.
type SessionStore struct {
	mutex    sync.RWMutex
	sessions map[string]*SessionState
}

// NewSessionStore creates an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: map[string]*SessionState{}}
}

// CreateSession initializes live state for a new session with the given topic,
// positioned at the first stage.
func (s *SessionStore) CreateSession(topic, firstStage string) *SessionState {
	session := newSessionState(NewSessionID(), topic, firstStage)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.sessions[session.ID()] = session
	return session
}

// GetSession returns the live state for a session ID.
func (s *SessionStore) GetSession(sessionID string) (*SessionState, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, NewEngineError(ErrorTypeNotFound, "session "+sessionID+" not found")
	}
	return session, nil
}

// DeleteSession removes a session's live state. In-flight generation results
// for a deleted session are discarded at merge time.
func (s *SessionStore) DeleteSession(sessionID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return NewEngineError(ErrorTypeNotFound, "session "+sessionID+" not found")
	}
	delete(s.sessions, sessionID)
	return nil
}

// ApplyStageResult merges documents into a session's stage output per the
// stage's merge strategy. The replace flag is an explicit caller signal.
func (s *SessionStore) ApplyStageResult(sessionID, stage string, strategy MergeStrategy, docs []*Document, replace bool) error {
	session, err := s.GetSession(sessionID)
	if err != nil {
		return err
	}
	session.ApplyStageResult(stage, strategy, docs, replace)
	return nil
}

// Restore installs a session snapshot as live state, replacing any existing
// state for that session ID.
func (s *SessionStore) Restore(snapshot *Session) *SessionState {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if session, ok := s.sessions[snapshot.SessionID]; ok {
		session.Restore(snapshot)
		return session
	}
	session := newSessionState(snapshot.SessionID, snapshot.Topic, snapshot.CurrentStage)
	session.Restore(snapshot)
	s.sessions[snapshot.SessionID] = session
	return session
}

// ListSessions returns summaries of all live sessions, newest first.
func (s *SessionStore) ListSessions() []*SessionSummary {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	summaries := make([]*SessionSummary, 0, len(s.sessions))
	for _, session := range s.sessions {
		snapshot := session.Snapshot()
		summary := &SessionSummary{
			SessionID:    snapshot.SessionID,
			Topic:        snapshot.Topic,
			CurrentStage: snapshot.CurrentStage,
			Status:       snapshot.Status,
			CreatedAt:    snapshot.CreatedAt,
			UpdatedAt:    snapshot.UpdatedAt,
		}
		if snapshot.ErrorRecord != nil {
			summary.Error = snapshot.ErrorRecord.Message
		}
		summaries = append(summaries, summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries
}

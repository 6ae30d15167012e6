package stagecraft

import (
	"sync"
	"time"

	"go.jetify.com/typeid"
)

// NewSessionID returns a new unique session identifier.
func NewSessionID() string {
	id, err := typeid.WithPrefix("sess")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// SessionStatus represents the session status
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusPaused    SessionStatus = "paused"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusError     SessionStatus = "error"
)

// StageOutput holds the accumulated output of one stage. Replace-strategy
// stages keep exactly one document; append-strategy stages keep the full
// invocation-ordered list. This struct is designed to be fully JSON
// serializable.
type StageOutput struct {
	Strategy  MergeStrategy `json:"strategy"`
	Documents []*Document   `json:"documents"`
}

// Copy returns a deep copy of the stage output.
func (o *StageOutput) Copy() *StageOutput {
	return &StageOutput{
		Strategy:  o.Strategy,
		Documents: copyDocuments(o.Documents),
	}
}

// FeedbackEntry records one feedback submission against a stage.
type FeedbackEntry struct {
	Stage     string    `json:"stage"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrorRecord captures an unrecoverable failure for a session.
type ErrorRecord struct {
	Message   string    `json:"message"`
	Stage     string    `json:"stage"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a fully serializable snapshot of one workflow run's state. The
// live, mutex-guarded representation is SessionState; Session is what gets
// checkpointed and returned to callers.
type Session struct {
	SessionID        string                  `json:"session_id"`
	Topic            string                  `json:"topic"`
	CurrentStage     string                  `json:"current_stage"`
	Status           SessionStatus           `json:"status"`
	AwaitingFeedback bool                    `json:"awaiting_feedback"`
	StageOutputs     map[string]*StageOutput `json:"stage_outputs"`
	FeedbackHistory  []*FeedbackEntry        `json:"feedback_history"`
	ErrorRecord      *ErrorRecord            `json:"error_record,omitempty"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

// Copy returns a deep copy of the session snapshot.
func (s *Session) Copy() *Session {
	outputs := make(map[string]*StageOutput, len(s.StageOutputs))
	for name, output := range s.StageOutputs {
		outputs[name] = output.Copy()
	}
	history := make([]*FeedbackEntry, len(s.FeedbackHistory))
	for i, entry := range s.FeedbackHistory {
		entryCopy := *entry
		history[i] = &entryCopy
	}
	var errRecord *ErrorRecord
	if s.ErrorRecord != nil {
		recordCopy := *s.ErrorRecord
		errRecord = &recordCopy
	}
	return &Session{
		SessionID:        s.SessionID,
		Topic:            s.Topic,
		CurrentStage:     s.CurrentStage,
		Status:           s.Status,
		AwaitingFeedback: s.AwaitingFeedback,
		StageOutputs:     outputs,
		FeedbackHistory:  history,
		ErrorRecord:      errRecord,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

// SessionState consolidates one session's live state. All data here is
// serializable for checkpointing. Mutations are serialized by the internal
// mutex, giving the single-writer-per-session guarantee.
type SessionState struct {
	sessionID        string
	topic            string
	currentStage     string
	status           SessionStatus
	awaitingFeedback bool
	stageOutputs     map[string]*StageOutput
	feedbackHistory  []*FeedbackEntry
	errorRecord      *ErrorRecord
	createdAt        time.Time
	updatedAt        time.Time
	inFlight         bool
	mutex            sync.RWMutex
}

// newSessionState creates live state for a fresh session.
func newSessionState(sessionID, topic, firstStage string) *SessionState {
	now := time.Now()
	return &SessionState{
		sessionID:    sessionID,
		topic:        topic,
		currentStage: firstStage,
		status:       SessionStatusActive,
		stageOutputs: map[string]*StageOutput{},
		createdAt:    now,
		updatedAt:    now,
	}
}

// ID returns the session ID
func (s *SessionState) ID() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.sessionID
}

// Topic returns the immutable topic seed.
func (s *SessionState) Topic() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.topic
}

// GetStatus returns the current session status
func (s *SessionState) GetStatus() SessionStatus {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.status
}

// CurrentStage returns the stage currently active or just completed.
func (s *SessionState) CurrentStage() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.currentStage
}

// SetCurrentStage updates the active stage marker.
func (s *SessionState) SetCurrentStage(stage string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.currentStage = stage
	s.updatedAt = time.Now()
}

// AwaitingFeedback reports whether the session is suspended for review.
func (s *SessionState) AwaitingFeedback() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.awaitingFeedback
}

// OutputStages returns the set of stage names that currently have output.
func (s *SessionState) OutputStages() map[string]bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	have := make(map[string]bool, len(s.stageOutputs))
	for name := range s.stageOutputs {
		have[name] = true
	}
	return have
}

// GetStageOutput returns a deep copy of one stage's output.
func (s *SessionState) GetStageOutput(stage string) (*StageOutput, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	output, ok := s.stageOutputs[stage]
	if !ok {
		return nil, false
	}
	return output.Copy(), true
}

// ApplyStageResult merges documents into a stage's output per the given merge
// strategy. For append strategy the replace flag clears prior items first; it
// must be signaled explicitly by the caller, never inferred.
func (s *SessionState) ApplyStageResult(stage string, strategy MergeStrategy, docs []*Document, replace bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	docs = copyDocuments(docs)
	existing, ok := s.stageOutputs[stage]
	if !ok || strategy == MergeReplace || replace {
		s.stageOutputs[stage] = &StageOutput{Strategy: strategy, Documents: docs}
	} else {
		existing.Documents = append(existing.Documents, docs...)
	}
	s.updatedAt = time.Now()
}

// AppendFeedback records one feedback submission. History is append-only.
func (s *SessionState) AppendFeedback(stage, text string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.feedbackHistory = append(s.feedbackHistory, &FeedbackEntry{
		Stage:     stage,
		Text:      text,
		CreatedAt: time.Now(),
	})
	s.updatedAt = time.Now()
}

// FeedbackFor returns the accumulated feedback texts recorded against any of
// the given stages, in submission order.
func (s *SessionState) FeedbackFor(stages ...string) []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	match := make(map[string]bool, len(stages))
	for _, stage := range stages {
		match[stage] = true
	}
	var texts []string
	for _, entry := range s.feedbackHistory {
		if match[entry.Stage] {
			texts = append(texts, entry.Text)
		}
	}
	return texts
}

// FeedbackHistoryLen returns the number of recorded feedback entries.
func (s *SessionState) FeedbackHistoryLen() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.feedbackHistory)
}

// GetError returns the session's error record, if any.
func (s *SessionState) GetError() *ErrorRecord {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.errorRecord == nil {
		return nil
	}
	recordCopy := *s.errorRecord
	return &recordCopy
}

// BeginGroup marks a stage-group execution as in flight. It fails if another
// group is already running for this session.
func (s *SessionState) BeginGroup() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.inFlight {
		return NewEngineError(ErrorTypeConflict, "a stage-group is already in flight for this session")
	}
	s.inFlight = true
	return nil
}

// EndGroup clears the in-flight marker.
func (s *SessionState) EndGroup() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.inFlight = false
}

// Snapshot returns a deep copy of the full session state.
func (s *SessionState) Snapshot() *Session {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.snapshotLocked()
}

func (s *SessionState) snapshotLocked() *Session {
	session := &Session{
		SessionID:        s.sessionID,
		Topic:            s.topic,
		CurrentStage:     s.currentStage,
		Status:           s.status,
		AwaitingFeedback: s.awaitingFeedback,
		StageOutputs:     s.stageOutputs,
		FeedbackHistory:  s.feedbackHistory,
		ErrorRecord:      s.errorRecord,
		CreatedAt:        s.createdAt,
		UpdatedAt:        s.updatedAt,
	}
	return session.Copy()
}

// Restore overwrites the live state with the given snapshot. The in-flight
// marker is intentionally not restored.
func (s *SessionState) Restore(session *Session) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	restored := session.Copy()
	s.sessionID = restored.SessionID
	s.topic = restored.Topic
	s.currentStage = restored.CurrentStage
	s.status = restored.Status
	s.awaitingFeedback = restored.AwaitingFeedback
	s.stageOutputs = restored.StageOutputs
	s.feedbackHistory = restored.FeedbackHistory
	s.errorRecord = restored.ErrorRecord
	s.createdAt = restored.CreatedAt
	s.updatedAt = time.Now()
}

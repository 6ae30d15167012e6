package stagecraft

import (
	"log/slog"
	"time"
)

// Phase is the interrupt state machine's view of a session.
type Phase string

const (
	PhaseRunning          Phase = "running"
	PhaseAwaitingFeedback Phase = "awaiting_feedback"
	PhaseTerminal         Phase = "terminal"
)

// InterruptController owns the suspension state machine. A session moves
// running -> awaiting_feedback when a stage-group's output is merged and
// checkpointed, back to running on an explicit continue or feedback command,
// and to terminal when the final stage's output is merged. Commands issued
// outside awaiting_feedback are rejected with a Conflict error, not queued.
type InterruptController struct {
	logger *slog.Logger
}

// NewInterruptController creates a new interrupt controller.
func NewInterruptController(logger *slog.Logger) *InterruptController {
	return &InterruptController{logger: logger}
}

// Phase returns the session's current interrupt phase.
func (c *InterruptController) Phase(session *SessionState) Phase {
	session.mutex.RLock()
	defer session.mutex.RUnlock()

	switch {
	case session.status == SessionStatusCompleted:
		return PhaseTerminal
	case session.awaitingFeedback:
		return PhaseAwaitingFeedback
	default:
		return PhaseRunning
	}
}

// Suspend moves a session into awaiting_feedback after a stage-group's output
// has been merged and checkpointed.
func (c *InterruptController) Suspend(session *SessionState) {
	session.mutex.Lock()
	defer session.mutex.Unlock()

	session.awaitingFeedback = true
	session.status = SessionStatusPaused
	session.updatedAt = time.Now()

	c.logger.Info("session suspended for review",
		"session_id", session.sessionID,
		"stage", session.currentStage)
}

// Accept validates and applies the awaiting_feedback -> running transition
// for a continue or feedback command. It fails with a Conflict error when the
// session is not suspended.
func (c *InterruptController) Accept(session *SessionState) error {
	session.mutex.Lock()
	defer session.mutex.Unlock()

	if session.status == SessionStatusCompleted {
		return NewEngineError(ErrorTypeConflict, "session is already completed")
	}
	if !session.awaitingFeedback {
		return NewEngineError(ErrorTypeConflict, "session is not awaiting feedback")
	}
	session.awaitingFeedback = false
	session.status = SessionStatusActive
	session.updatedAt = time.Now()
	return nil
}

// Resume reactivates a session restored from a checkpoint, clearing any
// error record. Checkpoints are captured before the awaiting_feedback
// transition, so resuming re-suspends the session at the same review point
// unless the snapshot was already terminal.
func (c *InterruptController) Resume(session *SessionState) {
	session.mutex.Lock()
	defer session.mutex.Unlock()

	session.errorRecord = nil
	if session.status != SessionStatusCompleted {
		session.status = SessionStatusPaused
		session.awaitingFeedback = true
	}
	session.updatedAt = time.Now()

	c.logger.Info("session resumed from checkpoint",
		"session_id", session.sessionID,
		"stage", session.currentStage,
		"status", session.status)
}

// Complete moves a session to the terminal phase after the final stage's
// output is merged.
func (c *InterruptController) Complete(session *SessionState) {
	session.mutex.Lock()
	defer session.mutex.Unlock()

	session.status = SessionStatusCompleted
	session.awaitingFeedback = false
	session.currentStage = StageComplete
	session.updatedAt = time.Now()

	c.logger.Info("session completed", "session_id", session.sessionID)
}

// Fail records an unrecoverable stage failure. Recovery is only via explicit
// resume from the last good checkpoint, never automatic retry.
func (c *InterruptController) Fail(session *SessionState, stage string, err error) {
	session.mutex.Lock()
	defer session.mutex.Unlock()

	session.status = SessionStatusError
	session.awaitingFeedback = false
	session.errorRecord = &ErrorRecord{
		Message:   err.Error(),
		Stage:     stage,
		CreatedAt: time.Now(),
	}
	session.updatedAt = time.Now()

	c.logger.Error("session failed",
		"session_id", session.sessionID,
		"stage", stage,
		"error", err)
}

package stagecraft

// SessionView is the read-only state returned to external callers after each
// engine operation.
type SessionView struct {
	SessionID        string                  `json:"session_id"`
	Topic            string                  `json:"topic"`
	CurrentStage     string                  `json:"current_stage"`
	Status           SessionStatus           `json:"status"`
	AwaitingFeedback bool                    `json:"awaiting_feedback"`
	StageOutputs     map[string]*StageOutput `json:"stage_outputs"`
	FeedbackHistory  []*FeedbackEntry        `json:"feedback_history"`
	ErrorRecord      *ErrorRecord            `json:"error_record,omitempty"`
}

func newSessionView(snapshot *Session) *SessionView {
	return &SessionView{
		SessionID:        snapshot.SessionID,
		Topic:            snapshot.Topic,
		CurrentStage:     snapshot.CurrentStage,
		Status:           snapshot.Status,
		AwaitingFeedback: snapshot.AwaitingFeedback,
		StageOutputs:     snapshot.StageOutputs,
		FeedbackHistory:  snapshot.FeedbackHistory,
		ErrorRecord:      snapshot.ErrorRecord,
	}
}

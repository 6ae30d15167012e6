package stagecraft

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Options are used to configure an Engine.
type Options struct {
	Registry         *Registry
	Generator        Generator
	Checkpointer     Checkpointer
	GenerationLogger GenerationLogger
	Callbacks        EngineCallbacks
	Logger           *slog.Logger
	MaxWorkers       int
}

// Engine is the workflow driver: the only component that decides what runs
// next. Each external start/continue/feedback call advances a session by
// exactly one stage-group, then suspends it for review.
type Engine struct {
	registry     *Registry
	store        *SessionStore
	scheduler    *Scheduler
	interrupts   *InterruptController
	checkpointer Checkpointer
	callbacks    EngineCallbacks
	logger       *slog.Logger
}

// NewEngine creates a new engine configured with the given options.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if opts.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Checkpointer == nil {
		opts.Checkpointer = NewNullCheckpointer()
	}
	if opts.GenerationLogger == nil {
		opts.GenerationLogger = NewNullGenerationLogger()
	}
	if opts.Callbacks == nil {
		opts.Callbacks = &BaseEngineCallbacks{}
	}

	scheduler, err := NewScheduler(SchedulerOptions{
		Generator:        opts.Generator,
		MaxWorkers:       opts.MaxWorkers,
		Logger:           opts.Logger,
		Callbacks:        opts.Callbacks,
		GenerationLogger: opts.GenerationLogger,
	})
	if err != nil {
		return nil, err
	}

	return &Engine{
		registry:     opts.Registry,
		store:        NewSessionStore(),
		scheduler:    scheduler,
		interrupts:   NewInterruptController(opts.Logger),
		checkpointer: opts.Checkpointer,
		callbacks:    opts.Callbacks,
		logger:       opts.Logger,
	}, nil
}

// Registry returns the engine's stage registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Start creates a new session for the topic and runs the first stage-group.
func (e *Engine) Start(ctx context.Context, topic string) (*SessionView, error) {
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	session := e.store.CreateSession(topic, e.registry.FirstStage().Name)
	logger := e.logger.With("session_id", session.ID())
	logger.Info("session started", "topic", topic, "pipeline", e.registry.Name())

	return e.step(ctx, session, "start", func() error {
		group := e.registry.NextGroup(session.OutputStages())
		return e.executeGroup(ctx, session, group, nil, false)
	})
}

// Continue approves the current stage-group and advances the session by one
// group. It fails with a Conflict error unless the session is awaiting
// feedback.
func (e *Engine) Continue(ctx context.Context, sessionID string) (*SessionView, error) {
	session, err := e.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if err := e.interrupts.Accept(session); err != nil {
		return nil, err
	}

	return e.step(ctx, session, "continue", func() error {
		group := e.registry.NextGroup(session.OutputStages())
		if group == nil {
			// Every stage already has output (e.g. a resumed final
			// checkpoint): approving it finishes the session.
			e.interrupts.Complete(session)
			return nil
		}
		return e.executeGroup(ctx, session, group, nil, false)
	})
}

// Feedback regenerates the current stage-group with the given feedback text
// injected into the generation context. The replace flag is the explicit
// caller signal that append-strategy stages in the group should discard their
// prior items; when false, regenerated items are appended. Feedback loops are
// unbounded; capping retries is an external policy.
func (e *Engine) Feedback(ctx context.Context, sessionID, text string, replace bool) (*SessionView, error) {
	if text == "" {
		return nil, fmt.Errorf("feedback text is required")
	}
	session, err := e.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if err := e.interrupts.Accept(session); err != nil {
		return nil, err
	}

	return e.step(ctx, session, "feedback", func() error {
		group := e.registry.Group(session.CurrentStage())
		if group == nil {
			return NewStageError(ErrorTypeInvariant, session.CurrentStage(), "current stage not found in registry")
		}
		session.AppendFeedback(group[0].Name, text)
		feedback := session.FeedbackFor(stageNames(group)...)
		return e.executeGroup(ctx, session, group, feedback, replace)
	})
}

// GetState returns a read-only snapshot of a session's live state.
func (e *Engine) GetState(sessionID string) (*SessionView, error) {
	session, err := e.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	return newSessionView(session.Snapshot()), nil
}

// ListHistory returns checkpoint metadata for a session, newest first.
func (e *Engine) ListHistory(ctx context.Context, sessionID string) ([]*CheckpointSummary, error) {
	return e.checkpointer.ListHistory(ctx, sessionID)
}

// ListSessions returns summaries of all live sessions.
func (e *Engine) ListSessions() []*SessionSummary {
	return e.store.ListSessions()
}

// ResumeFrom restores a checkpoint's snapshot as the live session state and
// re-suspends the session at that review point. Later checkpoints are kept;
// history stays append-only across resumes.
func (e *Engine) ResumeFrom(ctx context.Context, checkpointID string) (*SessionView, error) {
	checkpoint, err := e.checkpointer.GetCheckpoint(ctx, checkpointID)
	if err != nil {
		return nil, err
	}
	session := e.store.Restore(checkpoint.Snapshot)
	e.interrupts.Resume(session)
	return newSessionView(session.Snapshot()), nil
}

// DeleteSession removes a session's live state. Checkpoint retention is the
// caller's policy; in-flight generation results for the session are discarded
// at merge time.
func (e *Engine) DeleteSession(sessionID string) error {
	return e.store.DeleteSession(sessionID)
}

// step wraps one external command with session-step callbacks and returns the
// resulting view.
func (e *Engine) step(ctx context.Context, session *SessionState, command string, fn func() error) (*SessionView, error) {
	startTime := time.Now()
	e.callbacks.BeforeSessionStep(ctx, &SessionStepEvent{
		SessionID: session.ID(),
		Command:   command,
		Stage:     session.CurrentStage(),
		Status:    session.GetStatus(),
		StartTime: startTime,
	})

	err := fn()

	endTime := time.Now()
	e.callbacks.AfterSessionStep(ctx, &SessionStepEvent{
		SessionID: session.ID(),
		Command:   command,
		Stage:     session.CurrentStage(),
		Status:    session.GetStatus(),
		StartTime: startTime,
		EndTime:   endTime,
		Duration:  endTime.Sub(startTime),
		Error:     err,
	})

	if err != nil {
		return newSessionView(session.Snapshot()), err
	}
	return newSessionView(session.Snapshot()), nil
}

// executeGroup runs one stage-group to completion: generate, merge,
// checkpoint, then suspend (or complete after the final stage). Exactly one
// checkpoint is captured per successfully completed group.
func (e *Engine) executeGroup(ctx context.Context, session *SessionState, group []*StageDefinition, feedback []string, replace bool) error {
	if err := session.BeginGroup(); err != nil {
		return err
	}
	defer session.EndGroup()

	session.SetCurrentStage(group[0].Name)

	startTime := time.Now()
	groupEvent := &GroupExecutionEvent{
		SessionID: session.ID(),
		Stages:    stageNames(group),
		Parallel:  len(group) > 1,
		Feedback:  feedback,
		StartTime: startTime,
	}
	e.callbacks.BeforeGroupExecution(ctx, groupEvent)

	results, err := e.scheduler.ExecuteGroup(ctx, session, group, feedback)

	endTime := time.Now()
	groupEvent.EndTime = endTime
	groupEvent.Duration = endTime.Sub(startTime)
	groupEvent.Error = err
	e.callbacks.AfterGroupExecution(ctx, groupEvent)

	if err != nil {
		e.interrupts.Fail(session, group[0].Name, err)
		return err
	}

	// The session may have been deleted or aborted while the group was in
	// flight. Check liveness before writing; otherwise discard the results.
	if _, getErr := e.store.GetSession(session.ID()); getErr != nil {
		e.logger.Warn("discarding results for deleted session",
			"session_id", session.ID(),
			"stages", stageNames(group))
		return getErr
	}

	// Merge results keyed by stage name; completion order never matters.
	for _, stage := range group {
		session.ApplyStageResult(stage.Name, stage.MergeStrategy, []*Document{results[stage.Name]}, replace)
	}

	if err := e.checkPrefixInvariant(session); err != nil {
		e.interrupts.Fail(session, group[0].Name, err)
		return err
	}

	// Checkpoint capture happens-before the awaiting_feedback transition.
	checkpoint := NewCheckpoint(session.Snapshot())
	if err := e.checkpointer.SaveCheckpoint(ctx, checkpoint); err != nil {
		e.interrupts.Fail(session, group[0].Name, fmt.Errorf("failed to save checkpoint: %w", err))
		return err
	}
	e.logger.Debug("checkpoint saved",
		"session_id", session.ID(),
		"checkpoint_id", checkpoint.ID,
		"stage", checkpoint.Stage)

	if e.registry.NextGroup(session.OutputStages()) == nil {
		e.interrupts.Complete(session)
	} else {
		e.interrupts.Suspend(session)
	}
	return nil
}

// checkPrefixInvariant verifies that stage outputs form a dependency-satisfied
// prefix of the registry order. A violation is an internal logic fault.
func (e *Engine) checkPrefixInvariant(session *SessionState) error {
	have := session.OutputStages()
	for _, stage := range e.registry.Stages() {
		if !have[stage.Name] {
			continue
		}
		for _, dep := range stage.DependsOn {
			if !have[dep] {
				return NewStageError(ErrorTypeInvariant, stage.Name,
					fmt.Sprintf("output exists but dependency %q has none", dep))
			}
		}
	}
	return nil
}

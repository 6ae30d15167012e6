package stagecraft

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// DefaultMaxWorkers bounds concurrent generation calls within one stage-group.
const DefaultMaxWorkers = 3

// SchedulerOptions configures a scheduler.
type SchedulerOptions struct {
	Generator        Generator
	MaxWorkers       int
	Logger           *slog.Logger
	Callbacks        EngineCallbacks
	GenerationLogger GenerationLogger
}

// Scheduler executes one stage-group at a time: all stages fan out to a
// bounded worker pool, and if any stage in the group fails the whole group is
// re-run once as a single fully sequential pass. It never commits partial
// results; the caller merges the returned map only after the whole group
// succeeds.
type Scheduler struct {
	generator        Generator
	maxWorkers       int
	logger           *slog.Logger
	callbacks        EngineCallbacks
	generationLogger GenerationLogger
}

// NewScheduler creates a scheduler for the given options.
func NewScheduler(opts SchedulerOptions) (*Scheduler, error) {
	if opts.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = DefaultMaxWorkers
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Callbacks == nil {
		opts.Callbacks = &BaseEngineCallbacks{}
	}
	if opts.GenerationLogger == nil {
		opts.GenerationLogger = NewNullGenerationLogger()
	}
	return &Scheduler{
		generator:        opts.Generator,
		maxWorkers:       opts.MaxWorkers,
		logger:           opts.Logger,
		callbacks:        opts.Callbacks,
		generationLogger: opts.GenerationLogger,
	}, nil
}

// ExecuteGroup runs all stages of one group and returns their documents keyed
// by stage name. On any stage failure the concurrent attempt is abandoned and
// the whole group is re-run sequentially in declared order; if that also
// fails, a classified error is returned and no results are committed.
func (s *Scheduler) ExecuteGroup(ctx context.Context, session *SessionState, group []*StageDefinition, feedback []string) (map[string]*Document, error) {
	if len(group) == 0 {
		return nil, fmt.Errorf("empty stage group")
	}

	// Scheduling a stage whose dependencies are unsatisfied is an internal
	// logic fault. Fail loudly rather than silently skipping.
	have := session.OutputStages()
	for _, stage := range group {
		for _, dep := range stage.DependsOn {
			if !have[dep] {
				return nil, NewStageError(ErrorTypeInvariant, stage.Name,
					fmt.Sprintf("dependency %q has no output", dep))
			}
		}
	}

	requests := make([]*GenerationRequest, len(group))
	for i, stage := range group {
		requests[i] = s.buildRequest(session, stage, feedback)
	}

	results, err := s.runParallel(ctx, group, requests)
	if err == nil {
		return results, nil
	}
	s.logger.Warn("group failed, retrying sequentially",
		"session_id", session.ID(),
		"stages", stageNames(group),
		"error", err)

	return s.runSequential(ctx, group, requests)
}

// runParallel fans the group out to a bounded worker pool. Sibling completion
// order is unconstrained; results are keyed by stage name so it cannot affect
// the merged outcome.
func (s *Scheduler) runParallel(ctx context.Context, group []*StageDefinition, requests []*GenerationRequest) (map[string]*Document, error) {
	groupCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type stageResult struct {
		stage string
		doc   *Document
		err   error
	}

	sem := make(chan struct{}, s.maxWorkers)
	resultCh := make(chan stageResult, len(group))

	var wg sync.WaitGroup
	for i, stage := range group {
		wg.Add(1)
		go func(name string, req *GenerationRequest) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-groupCtx.Done():
				resultCh <- stageResult{stage: name, err: groupCtx.Err()}
				return
			}
			doc, err := s.generateOne(groupCtx, req)
			if err != nil {
				cancel() // abandon the rest of the group
			}
			resultCh <- stageResult{stage: name, doc: doc, err: err}
		}(stage.Name, requests[i])
	}
	wg.Wait()
	close(resultCh)

	results := make(map[string]*Document, len(group))
	var firstErr error
	for result := range resultCh {
		if result.err != nil {
			// Prefer the root failure over sibling cancellations.
			if firstErr == nil || (errors.Is(firstErr, context.Canceled) && !errors.Is(result.err, context.Canceled)) {
				firstErr = result.err
			}
			continue
		}
		results[result.stage] = result.doc
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// runSequential is the whole-group fallback: one stage at a time, declared
// order, stopping at the first failure.
func (s *Scheduler) runSequential(ctx context.Context, group []*StageDefinition, requests []*GenerationRequest) (map[string]*Document, error) {
	results := make(map[string]*Document, len(group))
	for i, stage := range group {
		doc, err := s.generateOne(ctx, requests[i])
		if err != nil {
			classified := ClassifyError(err)
			classified.Stage = stage.Name
			return nil, classified
		}
		results[stage.Name] = doc
	}
	return results, nil
}

// generateOne performs a single generation call with callbacks and logging.
func (s *Scheduler) generateOne(ctx context.Context, req *GenerationRequest) (*Document, error) {
	ctx = WithLogger(ctx, s.logger)
	ctx = WithSessionID(ctx, req.SessionID)

	startTime := time.Now()
	event := &GenerationEvent{
		SessionID: req.SessionID,
		Stage:     req.Stage,
		Feedback:  req.Feedback,
		StartTime: startTime,
	}
	s.callbacks.BeforeGeneration(ctx, event)

	doc, err := s.generator.Generate(ctx, req)
	endTime := time.Now()

	event.EndTime = endTime
	event.Duration = endTime.Sub(startTime)
	event.Error = err
	if doc != nil {
		event.Kind = doc.Kind
	}
	s.callbacks.AfterGeneration(ctx, event)

	logEntry := &GenerationLogEntry{
		SessionID: req.SessionID,
		Stage:     req.Stage,
		Feedback:  req.Feedback,
		StartTime: startTime,
		Duration:  endTime.Sub(startTime).Seconds(),
	}
	if doc != nil {
		logEntry.Kind = doc.Kind
	}
	if err != nil {
		logEntry.Error = err.Error()
	}
	if logErr := s.generationLogger.LogGeneration(ctx, logEntry); logErr != nil {
		s.logger.Error("failed to log generation call", "error", logErr)
	}

	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, NewStageError(ErrorTypeGenerationFailed, req.Stage, "generator returned no document")
	}
	return doc, nil
}

// buildRequest assembles the generation context from the stage's dependency
// outputs plus accumulated feedback.
func (s *Scheduler) buildRequest(session *SessionState, stage *StageDefinition, feedback []string) *GenerationRequest {
	depContext := make(map[string]*StageOutput, len(stage.DependsOn))
	for _, dep := range stage.DependsOn {
		if output, ok := session.GetStageOutput(dep); ok {
			depContext[dep] = output
		}
	}
	return &GenerationRequest{
		SessionID: session.ID(),
		Topic:     session.Topic(),
		Stage:     stage.Name,
		Context:   depContext,
		Feedback:  feedback,
	}
}

func stageNames(group []*StageDefinition) []string {
	names := make([]string, len(group))
	for i, stage := range group {
		names[i] = stage.Name
	}
	return names
}

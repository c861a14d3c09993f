// internal/workflow/orchestrator.go
// Description: Manages the high-level lifecycle of an analysis run. It is
// injected with fully configured pipeline components via interfaces, making
// it decoupled and testable.

package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/logsurgeon/api/schemas"
)

// hookTimeout bounds post-run persistence and publishing, which run on a
// background context so a cancelled run can still record its results.
const hookTimeout = 30 * time.Second

// Orchestrator drives one log file through the fixed pipeline:
// extraction, fix dispatch, aggregation. It owns the workflow state; the
// stages communicate only through values passed between them.
type Orchestrator struct {
	logger     *zap.Logger
	extractor  schemas.Extractor
	dispatcher schemas.Dispatcher
	store      schemas.Store
	publisher  schemas.Publisher
}

// Option configures optional orchestrator behavior.
type Option func(*Orchestrator)

// WithStore enables run persistence after aggregation.
func WithStore(store schemas.Store) Option {
	return func(o *Orchestrator) { o.store = store }
}

// WithPublisher enables pushing actionable outcomes to an external tracker
// after aggregation.
func WithPublisher(publisher schemas.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = publisher }
}

// New creates an Orchestrator with its dependencies provided as interfaces.
func New(logger *zap.Logger, extractor schemas.Extractor, dispatcher schemas.Dispatcher, opts ...Option) (*Orchestrator, error) {
	if logger == nil || extractor == nil || dispatcher == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}

	o := &Orchestrator{
		logger:     logger.Named("workflow"),
		extractor:  extractor,
		dispatcher: dispatcher,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run executes the full workflow for one log file and always returns a
// result: input errors terminate the run as Failed, while per-record fix
// failures are absorbed into their outcomes. Cancelling ctx stops new
// dispatch requests but lets in-flight ones finish, and the run proceeds
// to aggregation with whatever outcomes exist.
func (o *Orchestrator) Run(ctx context.Context, filePath string) *schemas.RunResult {
	runID := uuid.NewString()
	logger := o.logger.With(zap.String("run_id", runID))
	state := newRunState(runID, filePath, logger)

	logger.Info("Starting analysis run.", zap.String("file", filePath))

	if strings.TrimSpace(filePath) == "" {
		state.fail(fmt.Errorf("no log file path provided"))
		return o.finish(state)
	}

	state.transition(schemas.StageExtracting,
		fmt.Sprintf("Starting log analysis for file: %s", filePath))

	records, err := o.extractor.ExtractFile(ctx, filePath)
	if err != nil {
		state.fail(fmt.Errorf("log analysis failed: %w", err))
		return o.finish(state)
	}
	state.records = records

	// Zero records is a valid outcome, not a failure; dispatching becomes
	// a pass-through.
	if len(records) == 0 {
		state.transition(schemas.StageDispatching,
			"No exceptions found in log file. Generating report...")
		state.outcomes = []schemas.FixOutcome{}
		state.transition(schemas.StageAggregating,
			"Code fixing skipped. Generating final report...")
	} else {
		state.transition(schemas.StageDispatching,
			fmt.Sprintf("Log analysis complete. Found %d exceptions. Starting code fixing...", len(records)))
		state.outcomes = o.dispatcher.Dispatch(ctx, records)
		state.transition(schemas.StageAggregating,
			fmt.Sprintf("Code fixing complete. Generated %d fixes. Generating final report...", countActionable(state.outcomes)))
	}

	state.transition(schemas.StageComplete, "Workflow completed successfully!")

	logger.Info("Analysis run finished.",
		zap.Int("exceptions", len(state.records)),
		zap.Int("fixes", countActionable(state.outcomes)))

	return o.finish(state)
}

// finish freezes the result and fires the optional post-run hooks. Hook
// failures are logged, never propagated: the run's outcome is already
// decided by the time they execute.
func (o *Orchestrator) finish(state *runState) *schemas.RunResult {
	result := state.result()
	if !result.Success {
		return result
	}

	// Hooks use a background context so results survive run cancellation
	// during shutdown.
	if o.store != nil {
		persistCtx, cancel := context.WithTimeout(context.Background(), hookTimeout)
		if err := o.store.PersistRun(persistCtx, result); err != nil {
			state.logger.Error("Failed to persist run.", zap.Error(err))
		} else {
			state.logger.Info("Run persisted.")
		}
		cancel()
	}

	if o.publisher != nil {
		publishCtx, cancel := context.WithTimeout(context.Background(), hookTimeout)
		urls, err := o.publisher.PublishRun(publishCtx, result)
		if err != nil {
			state.logger.Error("Failed to publish fix outcomes.", zap.Error(err))
		} else if len(urls) > 0 {
			state.logger.Info("Published fix outcomes.", zap.Strings("urls", urls))
		}
		cancel()
	}

	return result
}

// internal/workflow/state.go
package workflow

import (
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/logsurgeon/api/schemas"
)

// runState tracks a single run through the pipeline stages. It is mutated
// only by the orchestrator goroutine; dispatch workers hand results back as
// return values, never by touching the state.
type runState struct {
	runID    string
	filePath string
	stage    schemas.Stage
	records  []schemas.ExceptionRecord
	outcomes []schemas.FixOutcome
	trace    []schemas.StageTransition
	err      error
	started  time.Time
	logger   *zap.Logger
}

func newRunState(runID, filePath string, logger *zap.Logger) *runState {
	return &runState{
		runID:    runID,
		filePath: filePath,
		stage:    schemas.StageStart,
		started:  time.Now().UTC(),
		logger:   logger,
	}
}

// transition moves the run into the next stage and appends a trace entry.
// Terminal stages cannot be exited; an attempt to do so is an invariant
// violation and is logged and ignored.
func (s *runState) transition(stage schemas.Stage, note string) {
	if s.stage.Terminal() {
		s.logger.Warn("Attempted to transition out of a terminal stage. Ignoring.",
			zap.String("current_stage", string(s.stage)),
			zap.String("attempted_stage", string(stage)))
		return
	}

	s.logger.Debug("Workflow stage transition",
		zap.String("from", string(s.stage)),
		zap.String("to", string(stage)))

	s.stage = stage
	s.trace = append(s.trace, schemas.StageTransition{
		Stage:     stage,
		EnteredAt: time.Now().UTC(),
		Note:      note,
	})
}

// fail moves the run into the terminal Failed stage and pins the error.
// The first terminal outcome wins; a later failure is ignored like any
// other post-terminal transition.
func (s *runState) fail(err error) {
	if !s.stage.Terminal() {
		s.err = err
	}
	s.transition(schemas.StageFailed, err.Error())
}

// result freezes the state into the programmatic run result. Success is
// false only for terminal input errors; degraded fix outcomes live inside
// an otherwise successful run.
func (s *runState) result() *schemas.RunResult {
	res := &schemas.RunResult{
		RunID:           s.runID,
		Success:         s.stage == schemas.StageComplete,
		FilePath:        s.filePath,
		TotalExceptions: len(s.records),
		TotalFixes:      countActionable(s.outcomes),
		Records:         s.records,
		Outcomes:        s.outcomes,
		Trace:           s.trace,
		Completed:       s.stage.Terminal(),
		StartedAt:       s.started,
		FinishedAt:      time.Now().UTC(),
	}
	if s.err != nil {
		res.Error = s.err.Error()
	}
	return res
}

// countActionable tallies outcomes that carry advice worth surfacing; this
// is the "fixes generated" number reports and trace notes show.
func countActionable(outcomes []schemas.FixOutcome) int {
	n := 0
	for i := range outcomes {
		if outcomes[i].Actionable() {
			n++
		}
	}
	return n
}

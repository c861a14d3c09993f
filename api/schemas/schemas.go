package schemas

import "time"

// LineClass tags the structural role of a raw log line.
type LineClass string

const (
	// LineEntry marks the start of a structured log entry (a recognized
	// timestamp layout matched).
	LineEntry LineClass = "ENTRY"
	// LineContinuation marks a line that belongs to the preceding entry,
	// such as a stack frame or a wrapped message.
	LineContinuation LineClass = "CONTINUATION"
	// LineBlank marks a blank or whitespace-only line.
	LineBlank LineClass = "BLANK"
)

// LogLine is a single classified line of input. It is immutable once
// produced by the classifier.
type LogLine struct {
	Raw       string     `json:"raw"`
	Number    int        `json:"number"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Level     string     `json:"level,omitempty"`
	PID       string     `json:"pid,omitempty"`
	Thread    string     `json:"thread,omitempty"`
	Logger    string     `json:"logger,omitempty"`
	Message   string     `json:"message"`
	Class     LineClass  `json:"class"`
}

// Severity ranks how urgent an extracted exception is.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// StackFrame is one "at package.Class.method(File.java:line)" entry of a
// stack trace. Native frames carry no line number.
type StackFrame struct {
	Class  string `json:"class"`
	Method string `json:"method"`
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Native bool   `json:"native,omitempty"`
}

// ExceptionRecord is one detected exception occurrence with its reassembled
// stack trace, chained causes, and bounded surrounding context. Records are
// never mutated after emission; downstream stages reference them by index.
type ExceptionRecord struct {
	ID                  string            `json:"id"`
	Timestamp           *time.Time        `json:"timestamp,omitempty"`
	Level               string            `json:"level,omitempty"`
	Type                string            `json:"type"`
	Message             string            `json:"message"`
	Frames              []StackFrame      `json:"frames"`
	Causes              []ExceptionRecord `json:"causes,omitempty"`
	CauseChainTruncated bool              `json:"cause_chain_truncated,omitempty"`
	Context             []string          `json:"context,omitempty"`
	Severity            Severity          `json:"severity"`
	FilePath            string            `json:"file_path,omitempty"`
	StartLine           int               `json:"start_line"`
}

// InnermostFrame returns the first frame of the record, which is the point
// closest to the throw site, or nil if the trace carried no frames.
func (r *ExceptionRecord) InnermostFrame() *StackFrame {
	if len(r.Frames) == 0 {
		return nil
	}
	return &r.Frames[0]
}

// CauseDepth reports the length of the cause chain hanging off this record.
func (r *ExceptionRecord) CauseDepth() int {
	depth := 0
	for cur := r; len(cur.Causes) > 0; cur = &cur.Causes[0] {
		depth++
	}
	return depth
}

// FixStatus is the terminal state of one fix-generation attempt.
type FixStatus string

const (
	// StatusFixed means the collaborator produced a complete structured fix.
	StatusFixed FixStatus = "FIXED"
	// StatusPartiallyFixed means the structured payload decoded but lacked
	// one or more substantive fields.
	StatusPartiallyFixed FixStatus = "PARTIALLY_FIXED"
	// StatusUnparseable means the raw response could not be decoded into the
	// expected shape; the outcome carries a truncated excerpt instead.
	StatusUnparseable FixStatus = "UNPARSEABLE"
	// StatusFailed means transport, timeout, or cancellation exhausted the
	// retry budget before any response was obtained.
	StatusFailed FixStatus = "FAILED"
)

// UnparseableConfidence is the sentinel confidence assigned when the
// collaborator's response could not be structurally decoded.
const UnparseableConfidence = 0.3

// CodeSuggestion is one advisory change proposed by the collaborator. The
// code is never executed, compiled, or validated.
type CodeSuggestion struct {
	File        string `json:"file"`
	Symbol      string `json:"symbol,omitempty"`
	Description string `json:"description"`
	Code        string `json:"code"`
	Explanation string `json:"explanation,omitempty"`
}

// FixOutcome is the structured or degraded result of asking the collaborator
// to propose a remediation for one ExceptionRecord. RecordIndex points back
// into the run's record sequence; records themselves are read-only.
type FixOutcome struct {
	RecordIndex    int              `json:"record_index"`
	ExceptionType  string           `json:"exception_type"`
	Status         FixStatus        `json:"status"`
	RootCause      string           `json:"root_cause,omitempty"`
	FixDescription string           `json:"fix_description,omitempty"`
	Suggestions    []CodeSuggestion `json:"suggestions,omitempty"`
	PreventionTips []string         `json:"prevention_tips,omitempty"`
	Confidence     float64          `json:"confidence"`
	Attempts       int              `json:"attempts"`
	Elapsed        time.Duration    `json:"elapsed_ns"`
}

// Actionable reports whether the outcome carries advice worth surfacing to
// a tracker (as opposed to a degraded or failed attempt).
func (o *FixOutcome) Actionable() bool {
	return o.Status == StatusFixed || o.Status == StatusPartiallyFixed
}

// Stage is one phase of the orchestration state machine.
type Stage string

const (
	StageStart       Stage = "START"
	StageExtracting  Stage = "EXTRACTING"
	StageDispatching Stage = "DISPATCHING"
	StageAggregating Stage = "AGGREGATING"
	StageComplete    Stage = "COMPLETE"
	StageFailed      Stage = "FAILED"
)

// Terminal reports whether the stage ends the run; terminal stages cannot
// be exited.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageFailed
}

// StageTransition is one append-only entry of the workflow trace.
type StageTransition struct {
	Stage     Stage     `json:"stage"`
	EnteredAt time.Time `json:"entered_at"`
	Note      string    `json:"note"`
}

// RunResult is the programmatic output of one complete analysis run.
// Success is false only for terminal input errors; degraded fix outcomes
// live inside an otherwise successful run.
type RunResult struct {
	RunID           string            `json:"run_id"`
	Success         bool              `json:"success"`
	Error           string            `json:"error,omitempty"`
	FilePath        string            `json:"file_path"`
	TotalExceptions int               `json:"total_exceptions"`
	TotalFixes      int               `json:"total_fixes"`
	Records         []ExceptionRecord `json:"records"`
	Outcomes        []FixOutcome      `json:"outcomes"`
	Trace           []StageTransition `json:"trace"`
	Completed       bool              `json:"completed"`
	StartedAt       time.Time         `json:"started_at"`
	FinishedAt      time.Time         `json:"finished_at"`
}

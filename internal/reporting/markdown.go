// internal/reporting/markdown.go
package reporting

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xkilldash9x/logsurgeon/api/schemas"
)

// reportFrameLimit caps the stack trace excerpt of each exception section.
const reportFrameLimit = 10

// MarkdownReporter renders a run as the canonical human-readable analysis
// document: summary, per-exception sections, per-fix sections, and the
// workflow message trail.
type MarkdownReporter struct {
	writer io.WriteCloser
}

// NewMarkdownReporter creates a reporter that takes ownership of the writer.
func NewMarkdownReporter(writer io.WriteCloser) *MarkdownReporter {
	return &MarkdownReporter{writer: writer}
}

// Write renders one run result into the document.
func (r *MarkdownReporter) Write(result *schemas.RunResult) error {
	var b strings.Builder

	b.WriteString("# Log Analysis Report\n\n")
	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- **Log File**: %s\n", result.FilePath)
	fmt.Fprintf(&b, "- **Total Exceptions Found**: %d\n", result.TotalExceptions)
	fmt.Fprintf(&b, "- **Code Fixes Generated**: %d\n", result.TotalFixes)
	fmt.Fprintf(&b, "- **Analysis Date**: %s\n", result.FinishedAt.Format(time.RFC1123))
	if result.Error != "" {
		fmt.Fprintf(&b, "- **Error**: %s\n", result.Error)
	}

	b.WriteString("\n## Exception Analysis\n\n")
	if len(result.Records) == 0 {
		b.WriteString("No exceptions found in the log file.\n\n")
	}
	for i, rec := range result.Records {
		writeExceptionSection(&b, i+1, &rec)
	}

	b.WriteString("## Code Fix Recommendations\n\n")
	if len(result.Outcomes) == 0 {
		b.WriteString("No code fixes were generated.\n\n")
	}
	for i, outcome := range result.Outcomes {
		writeFixSection(&b, i+1, &outcome)
	}

	b.WriteString("## Workflow Messages\n\n")
	for _, tr := range result.Trace {
		fmt.Fprintf(&b, "**%s**: %s\n\n", stageTitle(tr.Stage), tr.Note)
	}

	if _, err := io.WriteString(r.writer, b.String()); err != nil {
		return fmt.Errorf("failed to write markdown report: %w", err)
	}
	return nil
}

// Close finalizes the report and releases the underlying writer.
func (r *MarkdownReporter) Close() error {
	if err := r.writer.Close(); err != nil {
		return fmt.Errorf("failed to close output writer: %w", err)
	}
	return nil
}

func writeExceptionSection(b *strings.Builder, n int, rec *schemas.ExceptionRecord) {
	fmt.Fprintf(b, "### Exception %d: %s\n\n", n, rec.Type)
	fmt.Fprintf(b, "**Message**: %s\n", valueOrUnknown(rec.Message))
	fmt.Fprintf(b, "**Severity**: %s\n", rec.Severity)
	if rec.Timestamp != nil {
		fmt.Fprintf(b, "**Timestamp**: %s\n", rec.Timestamp.Format("2006-01-02 15:04:05.000"))
	} else {
		fmt.Fprintf(b, "**Timestamp**: %s\n", "Unknown")
	}
	if frame := rec.InnermostFrame(); frame != nil {
		fmt.Fprintf(b, "**Location**: %s.%s() at %s\n", frame.Class, frame.Method, frameLocation(frame))
	}
	fmt.Fprintf(b, "**Source Line**: %s:%d\n", rec.FilePath, rec.StartLine)

	if len(rec.Frames) > 0 {
		fmt.Fprintf(b, "\n**Stack Trace** (first %d frames):\n", reportFrameLimit)
		b.WriteString("```\n")
		limit := len(rec.Frames)
		if limit > reportFrameLimit {
			limit = reportFrameLimit
		}
		for _, frame := range rec.Frames[:limit] {
			fmt.Fprintf(b, "at %s.%s(%s)\n", frame.Class, frame.Method, frameLocation(&frame))
		}
		if rest := len(rec.Frames) - limit; rest > 0 {
			fmt.Fprintf(b, "... %d more\n", rest)
		}
		b.WriteString("```\n")
	}

	if len(rec.Causes) > 0 {
		b.WriteString("\n**Cause Chain**:\n")
		for cur := rec; len(cur.Causes) > 0; {
			cause := &cur.Causes[0]
			if cause.Message != "" {
				fmt.Fprintf(b, "- %s: %s\n", cause.Type, cause.Message)
			} else {
				fmt.Fprintf(b, "- %s\n", cause.Type)
			}
			cur = cause
		}
		if rec.CauseChainTruncated {
			b.WriteString("- (cause chain truncated)\n")
		}
	}
	b.WriteString("\n")
}

func writeFixSection(b *strings.Builder, n int, outcome *schemas.FixOutcome) {
	fmt.Fprintf(b, "### Fix %d: %s\n\n", n, outcome.ExceptionType)
	fmt.Fprintf(b, "**Status**: %s\n\n", outcome.Status)
	fmt.Fprintf(b, "**Root Cause**: %s\n\n", valueOrUnknown(outcome.RootCause))
	fmt.Fprintf(b, "**Fix Description**: %s\n\n", valueOrDefault(outcome.FixDescription, "No description"))
	fmt.Fprintf(b, "**Confidence Score**: %.2f\n", outcome.Confidence)

	if len(outcome.Suggestions) > 0 {
		b.WriteString("\n**Code Suggestions**:\n")
		for j, s := range outcome.Suggestions {
			fmt.Fprintf(b, "\n%d. **File**: %s\n", j+1, valueOrUnknown(s.File))
			fmt.Fprintf(b, "   **Symbol**: %s\n", valueOrUnknown(s.Symbol))
			fmt.Fprintf(b, "   **Description**: %s\n", valueOrDefault(s.Description, "No description"))
			b.WriteString("\n   **Fixed Code**:\n")
			b.WriteString("   ```java\n")
			for _, line := range strings.Split(s.Code, "\n") {
				fmt.Fprintf(b, "   %s\n", line)
			}
			b.WriteString("   ```\n")
			if s.Explanation != "" {
				fmt.Fprintf(b, "\n   **Explanation**: %s\n", s.Explanation)
			}
		}
	}

	if len(outcome.PreventionTips) > 0 {
		b.WriteString("\n**Prevention Tips**:\n")
		for _, tip := range outcome.PreventionTips {
			fmt.Fprintf(b, "- %s\n", tip)
		}
	}

	b.WriteString("\n---\n\n")
}

// frameLocation renders the parenthesized location part of a frame.
func frameLocation(frame *schemas.StackFrame) string {
	switch {
	case frame.Native:
		return "Native Method"
	case frame.File == "":
		return "Unknown Source"
	default:
		return fmt.Sprintf("%s:%d", frame.File, frame.Line)
	}
}

func stageTitle(stage schemas.Stage) string {
	s := strings.ToLower(string(stage))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func valueOrUnknown(s string) string {
	return valueOrDefault(s, "Unknown")
}

func valueOrDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

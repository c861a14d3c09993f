// internal/reporting/text.go
package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/xkilldash9x/logsurgeon/api/schemas"
)

// TextReporter prints a terse console summary of a run: one line per
// exception with its fix status, plus the totals.
type TextReporter struct {
	writer io.WriteCloser
}

// NewTextReporter creates a reporter that takes ownership of the writer.
func NewTextReporter(writer io.WriteCloser) *TextReporter {
	return &TextReporter{writer: writer}
}

// Write renders one run result as plain text.
func (r *TextReporter) Write(result *schemas.RunResult) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Log analysis: %s\n", result.FilePath)
	if !result.Success {
		fmt.Fprintf(&b, "Run failed: %s\n", result.Error)
	}
	fmt.Fprintf(&b, "Exceptions found: %d\n", result.TotalExceptions)
	fmt.Fprintf(&b, "Fixes generated:  %d\n", result.TotalFixes)

	outcomeByIndex := make(map[int]*schemas.FixOutcome, len(result.Outcomes))
	for i := range result.Outcomes {
		outcomeByIndex[result.Outcomes[i].RecordIndex] = &result.Outcomes[i]
	}

	for i := range result.Records {
		rec := &result.Records[i]
		fmt.Fprintf(&b, "  [%s] %s at line %d", rec.Severity, rec.Type, rec.StartLine)
		if outcome, ok := outcomeByIndex[i]; ok {
			fmt.Fprintf(&b, " -- %s (confidence %.2f)", outcome.Status, outcome.Confidence)
		}
		b.WriteString("\n")
	}

	if _, err := io.WriteString(r.writer, b.String()); err != nil {
		return fmt.Errorf("failed to write text report: %w", err)
	}
	return nil
}

// Close releases the underlying writer.
func (r *TextReporter) Close() error {
	if err := r.writer.Close(); err != nil {
		return fmt.Errorf("failed to close output writer: %w", err)
	}
	return nil
}

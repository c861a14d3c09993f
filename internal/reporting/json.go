// internal/reporting/json.go
package reporting

import (
	"fmt"
	"io"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/logsurgeon/api/schemas"
)

// JSONReporter encodes the full run result for machine consumption
// (dashboards, downstream tooling).
type JSONReporter struct {
	writer io.WriteCloser
}

// NewJSONReporter creates a reporter that takes ownership of the writer.
func NewJSONReporter(writer io.WriteCloser) *JSONReporter {
	return &JSONReporter{writer: writer}
}

// Write encodes one run result as an indented JSON document.
func (r *JSONReporter) Write(result *schemas.RunResult) error {
	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("failed to encode run result: %w", err)
	}
	return nil
}

// Close releases the underlying writer.
func (r *JSONReporter) Close() error {
	if err := r.writer.Close(); err != nil {
		return fmt.Errorf("failed to close output writer: %w", err)
	}
	return nil
}

// internal/reporting/reporter.go
package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/xkilldash9x/logsurgeon/api/schemas"
)

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for the given format writing to outputPath. An
// empty path or "stdout" targets standard output, which Close leaves open.
func New(format, outputPath string) (schemas.Reporter, error) {
	var writer io.WriteCloser
	isStdout := outputPath == "" || outputPath == "stdout"

	if isStdout {
		// Wrap Stdout so Close() is a no-op.
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	switch format {
	case "markdown", "md":
		return NewMarkdownReporter(writer), nil
	case "json":
		return NewJSONReporter(writer), nil
	case "junit":
		return NewJUnitReporter(writer), nil
	case "text":
		return NewTextReporter(writer), nil
	default:
		// Close releases the file handle; harmless for the stdout wrapper.
		writer.Close()
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

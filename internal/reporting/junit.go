// internal/reporting/junit.go
package reporting

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/xkilldash9x/logsurgeon/api/schemas"
)

// JUnitReporter renders a run as JUnit XML for CI consumption: one
// testsuite per run, one failed testcase per extracted exception. A clean
// log therefore shows up as a passing (empty) suite.
type JUnitReporter struct {
	writer io.WriteCloser
}

// NewJUnitReporter creates a reporter that takes ownership of the writer.
func NewJUnitReporter(writer io.WriteCloser) *JUnitReporter {
	return &JUnitReporter{writer: writer}
}

// Write renders one run result as a JUnit XML document.
func (r *JUnitReporter) Write(result *schemas.RunResult) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	elapsed := result.FinishedAt.Sub(result.StartedAt).Seconds()

	suites := doc.CreateElement("testsuites")
	suites.CreateAttr("name", "logsurgeon")
	suites.CreateAttr("tests", strconv.Itoa(len(result.Records)))
	suites.CreateAttr("failures", strconv.Itoa(len(result.Records)))
	suites.CreateAttr("time", fmt.Sprintf("%.3f", elapsed))

	suite := suites.CreateElement("testsuite")
	suite.CreateAttr("name", result.FilePath)
	suite.CreateAttr("tests", strconv.Itoa(len(result.Records)))
	suite.CreateAttr("failures", strconv.Itoa(len(result.Records)))
	suite.CreateAttr("errors", "0")
	suite.CreateAttr("timestamp", result.StartedAt.Format(time.RFC3339))
	suite.CreateAttr("time", fmt.Sprintf("%.3f", elapsed))

	for i := range result.Records {
		rec := &result.Records[i]

		tc := suite.CreateElement("testcase")
		tc.CreateAttr("name", fmt.Sprintf("%s at line %d", rec.Type, rec.StartLine))
		tc.CreateAttr("classname", caseClassName(rec))

		failure := tc.CreateElement("failure")
		failure.CreateAttr("message", rec.Message)
		failure.CreateAttr("type", rec.Type)
		failure.SetText(renderTraceText(rec))
	}

	doc.Indent(2)
	if _, err := doc.WriteTo(r.writer); err != nil {
		return fmt.Errorf("failed to write junit report: %w", err)
	}
	return nil
}

// Close releases the underlying writer.
func (r *JUnitReporter) Close() error {
	if err := r.writer.Close(); err != nil {
		return fmt.Errorf("failed to close output writer: %w", err)
	}
	return nil
}

// caseClassName picks the JUnit classname: the throw site when known,
// otherwise the analyzed file.
func caseClassName(rec *schemas.ExceptionRecord) string {
	if frame := rec.InnermostFrame(); frame != nil && frame.Class != "" {
		return frame.Class
	}
	return rec.FilePath
}

// renderTraceText reconstructs the exception trace in its familiar textual
// form for the failure body.
func renderTraceText(rec *schemas.ExceptionRecord) string {
	var b strings.Builder
	writeTraceLevel(&b, rec, false)
	return b.String()
}

func writeTraceLevel(b *strings.Builder, rec *schemas.ExceptionRecord, nested bool) {
	if nested {
		fmt.Fprintf(b, "Caused by: %s", rec.Type)
	} else {
		b.WriteString(rec.Type)
	}
	if rec.Message != "" {
		fmt.Fprintf(b, ": %s", rec.Message)
	}
	b.WriteString("\n")

	for i := range rec.Frames {
		frame := &rec.Frames[i]
		fmt.Fprintf(b, "\tat %s.%s(%s)\n", frame.Class, frame.Method, frameLocation(frame))
	}
	if len(rec.Causes) > 0 {
		writeTraceLevel(b, &rec.Causes[0], true)
	} else if rec.CauseChainTruncated {
		b.WriteString("\t... cause chain truncated\n")
	}
}

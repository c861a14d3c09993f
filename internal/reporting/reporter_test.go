// internal/reporting/reporter_test.go
package reporting_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/logsurgeon/api/schemas"
	"github.com/xkilldash9x/logsurgeon/internal/reporting"
)

// testBuffer is an in-memory io.WriteCloser for content assertions.
type testBuffer struct {
	bytes.Buffer
	closed bool
}

func (b *testBuffer) Close() error {
	b.closed = true
	return nil
}

// sampleResult builds a run with two exceptions and two fix outcomes,
// exercising cause chains, deep stack traces, and degraded statuses.
func sampleResult() *schemas.RunResult {
	ts := time.Date(2025, 8, 14, 10, 23, 45, 123_000_000, time.UTC)

	frames := []schemas.StackFrame{
		{Class: "com.example.service.UserService", Method: "validateUser", File: "UserService.java", Line: 45},
	}
	for i := 0; i < 11; i++ {
		frames = append(frames, schemas.StackFrame{
			Class:  "com.example.web.Controller",
			Method: "handle",
			File:   "Controller.java",
			Line:   100 + i,
		})
	}

	return &schemas.RunResult{
		RunID:           "run-123",
		Success:         true,
		FilePath:        "app.log",
		TotalExceptions: 2,
		TotalFixes:      1,
		Records: []schemas.ExceptionRecord{
			{
				ID:        "rec-1",
				Timestamp: &ts,
				Level:     "ERROR",
				Type:      "java.lang.NullPointerException",
				Message:   `Cannot invoke "String.length()" because "username" is null`,
				Frames:    frames,
				Severity:  schemas.SeverityHigh,
				FilePath:  "app.log",
				StartLine: 5,
			},
			{
				ID:      "rec-2",
				Type:    "org.springframework.dao.DataAccessResourceFailureException",
				Message: "Unable to acquire JDBC Connection",
				Frames: []schemas.StackFrame{
					{Class: "com.example.dao.UserDao", Method: "findAll", File: "UserDao.java", Line: 31},
				},
				Causes: []schemas.ExceptionRecord{
					{
						Type:    "java.sql.SQLException",
						Message: "Connection refused: connect",
					},
				},
				Severity:  schemas.SeverityHigh,
				FilePath:  "app.log",
				StartLine: 40,
			},
		},
		Outcomes: []schemas.FixOutcome{
			{
				RecordIndex:    0,
				ExceptionType:  "java.lang.NullPointerException",
				Status:         schemas.StatusFixed,
				RootCause:      "The username request parameter is never null-checked.",
				FixDescription: "Validate the username before use.",
				Suggestions: []schemas.CodeSuggestion{
					{
						File:        "UserService.java",
						Symbol:      "validateUser",
						Description: "Guard against null usernames",
						Code:        "if (username == null) {\n    throw new IllegalArgumentException(\"username required\");\n}",
						Explanation: "Failing fast avoids the NPE downstream.",
					},
				},
				PreventionTips: []string{"Validate request payloads at the boundary."},
				Confidence:     0.85,
				Attempts:       1,
			},
			{
				RecordIndex:   1,
				ExceptionType: "org.springframework.dao.DataAccessResourceFailureException",
				Status:        schemas.StatusUnparseable,
				RootCause:     "The database seems down, maybe restart it?",
				Confidence:    schemas.UnparseableConfidence,
				Attempts:      2,
			},
		},
		Trace: []schemas.StageTransition{
			{Stage: schemas.StageExtracting, EnteredAt: ts, Note: "Starting log analysis for file: app.log"},
			{Stage: schemas.StageDispatching, EnteredAt: ts, Note: "Log analysis complete. Found 2 exceptions. Starting code fixing..."},
			{Stage: schemas.StageAggregating, EnteredAt: ts, Note: "Code fixing complete. Generated 1 fixes. Generating final report..."},
			{Stage: schemas.StageComplete, EnteredAt: ts, Note: "Workflow completed successfully!"},
		},
		Completed:  true,
		StartedAt:  ts,
		FinishedAt: ts.Add(3250 * time.Millisecond),
	}
}

func TestNew_StdoutCloseIsNoOp(t *testing.T) {
	for _, path := range []string{"", "stdout"} {
		r, err := reporting.New("markdown", path)
		require.NoError(t, err)
		assert.NotNil(t, r)
		assert.NoError(t, r.Close())
	}
}

func TestNew_CreatesOutputFile(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "report.md")

	r, err := reporting.New("markdown", tmpFile)
	require.NoError(t, err)

	info, err := os.Stat(tmpFile)
	require.NoError(t, err, "output file should have been created")
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())

	require.NoError(t, r.Write(sampleResult()))
	require.NoError(t, r.Close())

	content, err := os.ReadFile(tmpFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "# Log Analysis Report")
}

func TestNew_AllFormats(t *testing.T) {
	for _, format := range []string{"markdown", "md", "json", "junit", "text"} {
		t.Run(format, func(t *testing.T) {
			tmpFile := filepath.Join(t.TempDir(), "out."+format)
			r, err := reporting.New(format, tmpFile)
			require.NoError(t, err)
			assert.NoError(t, r.Write(sampleResult()))
			assert.NoError(t, r.Close())

			info, err := os.Stat(tmpFile)
			require.NoError(t, err)
			assert.Positive(t, info.Size())
		})
	}
}

func TestNew_UnsupportedFormat(t *testing.T) {
	r, err := reporting.New("yaml", "stdout")
	assert.Error(t, err)
	assert.Nil(t, r)
	assert.Contains(t, err.Error(), "unsupported output format: yaml")

	// The file handle must be released even though construction failed.
	tmpFile := filepath.Join(t.TempDir(), "out.yaml")
	r, err = reporting.New("yaml", tmpFile)
	assert.Error(t, err)
	assert.Nil(t, r)

	info, err := os.Stat(tmpFile)
	require.NoError(t, err, "file should still exist after failure")
	assert.Equal(t, int64(0), info.Size())
}

func TestNew_FileCreationFailure(t *testing.T) {
	// A directory path cannot be opened for writing.
	r, err := reporting.New("markdown", t.TempDir())
	assert.Error(t, err)
	assert.Nil(t, r)
	assert.Contains(t, err.Error(), "failed to create output file")
}

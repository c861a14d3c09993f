// internal/reporting/markdown_test.go
package reporting_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/logsurgeon/api/schemas"
	"github.com/xkilldash9x/logsurgeon/internal/reporting"
)

func renderMarkdown(t *testing.T, result *schemas.RunResult) string {
	t.Helper()
	buf := &testBuffer{}
	r := reporting.NewMarkdownReporter(buf)
	require.NoError(t, r.Write(result))
	require.NoError(t, r.Close())
	assert.True(t, buf.closed)
	return buf.String()
}

func TestMarkdown_SummaryBlock(t *testing.T) {
	out := renderMarkdown(t, sampleResult())

	assert.Contains(t, out, "# Log Analysis Report")
	assert.Contains(t, out, "- **Log File**: app.log")
	assert.Contains(t, out, "- **Total Exceptions Found**: 2")
	assert.Contains(t, out, "- **Code Fixes Generated**: 1")
	assert.Contains(t, out, "- **Analysis Date**: ")
}

func TestMarkdown_ExceptionSections(t *testing.T) {
	out := renderMarkdown(t, sampleResult())

	assert.Contains(t, out, "### Exception 1: java.lang.NullPointerException")
	assert.Contains(t, out, `**Message**: Cannot invoke "String.length()" because "username" is null`)
	assert.Contains(t, out, "**Severity**: HIGH")
	assert.Contains(t, out, "**Timestamp**: 2025-08-14 10:23:45.123")
	assert.Contains(t, out, "**Location**: com.example.service.UserService.validateUser() at UserService.java:45")
	assert.Contains(t, out, "at com.example.service.UserService.validateUser(UserService.java:45)")

	// 12 frames render as 10 plus an elision marker.
	assert.Equal(t, 9, strings.Count(out, "at com.example.web.Controller.handle("),
		"the cap leaves nine Controller frames after the throw site")
	assert.Contains(t, out, "... 2 more")

	assert.Contains(t, out, "### Exception 2: org.springframework.dao.DataAccessResourceFailureException")
	assert.Contains(t, out, "**Cause Chain**:")
	assert.Contains(t, out, "- java.sql.SQLException: Connection refused: connect")
}

func TestMarkdown_FixSections(t *testing.T) {
	out := renderMarkdown(t, sampleResult())

	assert.Contains(t, out, "### Fix 1: java.lang.NullPointerException")
	assert.Contains(t, out, "**Status**: FIXED")
	assert.Contains(t, out, "**Root Cause**: The username request parameter is never null-checked.")
	assert.Contains(t, out, "**Fix Description**: Validate the username before use.")
	assert.Contains(t, out, "**Confidence Score**: 0.85")
	assert.Contains(t, out, "1. **File**: UserService.java")
	assert.Contains(t, out, "**Symbol**: validateUser")
	assert.Contains(t, out, "```java")
	assert.Contains(t, out, "throw new IllegalArgumentException")
	assert.Contains(t, out, "**Explanation**: Failing fast avoids the NPE downstream.")
	assert.Contains(t, out, "**Prevention Tips**:")
	assert.Contains(t, out, "- Validate request payloads at the boundary.")

	// The degraded outcome keeps its excerpt but gains no suggestion block.
	assert.Contains(t, out, "### Fix 2: org.springframework.dao.DataAccessResourceFailureException")
	assert.Contains(t, out, "**Status**: UNPARSEABLE")
	assert.Contains(t, out, "**Confidence Score**: 0.30")
	assert.Contains(t, out, "**Fix Description**: No description")
}

func TestMarkdown_WorkflowMessages(t *testing.T) {
	out := renderMarkdown(t, sampleResult())

	assert.Contains(t, out, "## Workflow Messages")
	assert.Contains(t, out, "**Extracting**: Starting log analysis for file: app.log")
	assert.Contains(t, out, "**Complete**: Workflow completed successfully!")
}

func TestMarkdown_EmptyRun(t *testing.T) {
	result := sampleResult()
	result.Records = nil
	result.Outcomes = nil
	result.TotalExceptions = 0
	result.TotalFixes = 0

	out := renderMarkdown(t, result)

	assert.Contains(t, out, "No exceptions found in the log file.")
	assert.Contains(t, out, "No code fixes were generated.")
	assert.NotContains(t, out, "### Exception")
	assert.NotContains(t, out, "### Fix")
}

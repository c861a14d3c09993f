package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/logsurgeon/api/schemas"
)

func TestClassifyLine_SpringBootLayout(t *testing.T) {
	raw := "2024-07-23 10:15:35.123 ERROR 12345 --- [http-nio-8080-exec-1] c.e.service.UserService : Exception occurred while processing user request"
	line := ClassifyLine(raw, 7)

	assert.Equal(t, schemas.LineEntry, line.Class)
	assert.Equal(t, 7, line.Number)
	assert.Equal(t, raw, line.Raw)
	assert.Equal(t, "ERROR", line.Level)
	assert.Equal(t, "12345", line.PID)
	assert.Equal(t, "http-nio-8080-exec-1", line.Thread)
	assert.Equal(t, "c.e.service.UserService", line.Logger)
	assert.Equal(t, "Exception occurred while processing user request", line.Message)

	require.NotNil(t, line.Timestamp)
	expected := time.Date(2024, 7, 23, 10, 15, 35, 123_000_000, time.UTC)
	assert.True(t, line.Timestamp.Equal(expected), "got %v", line.Timestamp)
}

func TestClassifyLine_LeveledLayout(t *testing.T) {
	line := ClassifyLine("2024-07-23 10:15:30 WARN Connection pool nearing capacity", 1)

	assert.Equal(t, schemas.LineEntry, line.Class)
	assert.Equal(t, "WARN", line.Level)
	assert.Equal(t, "Connection pool nearing capacity", line.Message)
	assert.Empty(t, line.PID)
	assert.Empty(t, line.Thread)
	require.NotNil(t, line.Timestamp)
}

func TestClassifyLine_BareLayoutDefaultsToInfo(t *testing.T) {
	line := ClassifyLine("2024-07-23 10:15:30 Application started in 3.2 seconds", 1)

	assert.Equal(t, schemas.LineEntry, line.Class)
	assert.Equal(t, "INFO", line.Level)
	assert.Equal(t, "Application started in 3.2 seconds", line.Message)
	require.NotNil(t, line.Timestamp)
}

func TestClassifyLine_ContinuationAndBlank(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		class   schemas.LineClass
		message string
	}{
		{"stack frame", "\tat com.example.service.UserService.validateUser(UserService.java:45)", schemas.LineContinuation, "at com.example.service.UserService.validateUser(UserService.java:45)"},
		{"caused by", "Caused by: java.sql.SQLException: Connection refused", schemas.LineContinuation, "Caused by: java.sql.SQLException: Connection refused"},
		{"exception line", "java.lang.NullPointerException: boom", schemas.LineContinuation, "java.lang.NullPointerException: boom"},
		{"blank", "", schemas.LineBlank, ""},
		{"whitespace only", "   \t  ", schemas.LineBlank, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := ClassifyLine(tt.raw, 3)
			assert.Equal(t, tt.class, line.Class)
			assert.Equal(t, tt.message, line.Message)
			assert.Nil(t, line.Timestamp)
		})
	}
}

func TestClassifyLine_InvalidTimestampDegradesToNil(t *testing.T) {
	// Positionally matches the leveled layout, but the 99th hour cannot parse.
	line := ClassifyLine("2024-07-23 99:15:30 ERROR impossible clock", 1)

	assert.Equal(t, schemas.LineEntry, line.Class)
	assert.Nil(t, line.Timestamp)
	assert.Equal(t, "ERROR", line.Level)
	assert.Equal(t, "impossible clock", line.Message)
}

func TestClassifyLine_IsPure(t *testing.T) {
	raw := "2024-07-23 10:15:35.123  INFO 42 --- [main] c.e.App : Started"
	first := ClassifyLine(raw, 1)
	second := ClassifyLine(raw, 1)
	assert.Equal(t, first, second)
}

func TestClassifyAll_NumbersFromOne(t *testing.T) {
	lines := ClassifyAll([]string{"first", "", "third"})
	require.Len(t, lines, 3)
	assert.Equal(t, 1, lines[0].Number)
	assert.Equal(t, 2, lines[1].Number)
	assert.Equal(t, 3, lines[2].Number)
	assert.Equal(t, schemas.LineBlank, lines[1].Class)
}

// internal/extract/classifier.go
package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/xkilldash9x/logsurgeon/api/schemas"
)

// Regex definitions for the recognized log entry layouts. They are tried in
// order; the first match wins and fixes the line's class as ENTRY.
var (
	// Full Spring Boot layout:
	// "2024-07-23 10:15:30.123  INFO 12345 --- [main] c.e.Application : Starting..."
	springEntryRegex = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3})\s+(\w+)\s+(\d+)\s+---\s+\[([^\]]+)\]\s+([^:]+?)\s*:\s*(.*)$`)
	// Reduced layout with an explicit level token:
	// "2024-07-23 10:15:30 ERROR Connection pool exhausted"
	leveledEntryRegex = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})\s+(TRACE|DEBUG|INFO|WARN|WARNING|ERROR|FATAL)\s+(.*)$`)
	// Bare layout, timestamp followed directly by the message:
	// "2024-07-23 10:15:30 Application started"
	bareEntryRegex = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})\s+(.*)$`)
)

const (
	millisTimestampLayout  = "2006-01-02 15:04:05.000"
	secondsTimestampLayout = "2006-01-02 15:04:05"
)

// ClassifyLine tags a single raw line as a structured entry, a continuation
// of the preceding entry, or blank. Classification is pure: the same input
// always yields the same LogLine, and no state is carried between calls.
//
// A timestamp that matches a layout positionally but fails to parse degrades
// to a nil Timestamp without changing the class.
func ClassifyLine(raw string, number int) schemas.LogLine {
	line := schemas.LogLine{Raw: raw, Number: number}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		line.Class = schemas.LineBlank
		return line
	}

	if m := springEntryRegex.FindStringSubmatch(raw); m != nil {
		line.Class = schemas.LineEntry
		line.Timestamp = parseTimestamp(m[1], millisTimestampLayout)
		line.Level = m[2]
		line.PID = m[3]
		line.Thread = m[4]
		line.Logger = strings.TrimSpace(m[5])
		line.Message = strings.TrimSpace(m[6])
		return line
	}

	if m := leveledEntryRegex.FindStringSubmatch(raw); m != nil {
		line.Class = schemas.LineEntry
		line.Timestamp = parseTimestamp(m[1], secondsTimestampLayout)
		line.Level = m[2]
		line.Message = strings.TrimSpace(m[3])
		return line
	}

	if m := bareEntryRegex.FindStringSubmatch(raw); m != nil {
		line.Class = schemas.LineEntry
		line.Timestamp = parseTimestamp(m[1], secondsTimestampLayout)
		// The bare layout carries no level token; treat it as informational.
		line.Level = "INFO"
		line.Message = strings.TrimSpace(m[2])
		return line
	}

	line.Class = schemas.LineContinuation
	line.Message = trimmed
	return line
}

// ClassifyAll classifies a slice of raw lines, numbering them from 1.
func ClassifyAll(raws []string) []schemas.LogLine {
	lines := make([]schemas.LogLine, len(raws))
	for i, raw := range raws {
		lines[i] = ClassifyLine(raw, i+1)
	}
	return lines
}

func parseTimestamp(value, layout string) *time.Time {
	ts, err := time.Parse(layout, value)
	if err != nil {
		return nil
	}
	return &ts
}

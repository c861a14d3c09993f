// internal/extract/assembler.go
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/xkilldash9x/logsurgeon/api/schemas"
	"github.com/xkilldash9x/logsurgeon/internal/config"
)

// Regex definitions for stack trace reassembly.
var (
	// Matches a located frame: "at com.example.UserService.validate(UserService.java:45)".
	frameRegex = regexp.MustCompile(`^at\s+([^(]+)\(([^():]+):(\d+)\)`)
	// Matches frames without a source location: "(Native Method)" or "(Unknown Source)".
	unlocatedFrameRegex = regexp.MustCompile(`^at\s+([^(]+)\((Native Method|Unknown Source)\)`)
	// Matches the JVM's frame elision marker: "... 23 more".
	moreFramesRegex = regexp.MustCompile(`^\.\.\.\s+(\d+)\s+more$`)
)

// Assembler reconstructs one ExceptionRecord from a detected start line by
// scanning forward through its stack frames and chained causes. It is
// stateless and safe for reuse across scans.
type Assembler struct {
	contextLines  int
	maxCauseDepth int
}

// NewAssembler creates an assembler tuned by the extraction settings.
func NewAssembler(cfg config.ExtractionConfig) *Assembler {
	return &Assembler{
		contextLines:  cfg.ContextLines,
		maxCauseDepth: cfg.MaxCauseDepth,
	}
}

// Assemble builds the record starting at lines[start] and returns it together
// with the index of the first line it did not consume, so the caller can
// resume scanning without re-reading the trace. The floor index marks the
// first line not owned by an earlier record; context capture never reaches
// below it.
func (a *Assembler) Assemble(lines []schemas.LogLine, start, floor int) (schemas.ExceptionRecord, int) {
	return a.assemble(lines, start, floor, 0)
}

func (a *Assembler) assemble(lines []schemas.LogLine, start, floor, depth int) (schemas.ExceptionRecord, int) {
	head := lines[start]
	rec := schemas.ExceptionRecord{
		Timestamp: head.Timestamp,
		Level:     head.Level,
		StartLine: head.Number,
	}

	msg := strings.TrimSpace(strings.TrimPrefix(head.Message, causedByPrefix))
	rec.Type, rec.Message = splitTypedMessage(msg)

	// Context belongs to the outermost record only; nested causes sit inside
	// the same trace and carry none of their own.
	if depth == 0 && a.contextLines > 0 {
		from := start - a.contextLines
		if from < floor {
			from = floor
		}
		for _, prev := range lines[from:start] {
			rec.Context = append(rec.Context, prev.Raw)
		}
	}

	next := start + 1
	for next < len(lines) {
		frame, ok := parseFrame(lines[next].Message)
		if !ok {
			break
		}
		rec.Frames = append(rec.Frames, frame)
		next++
	}
	if next < len(lines) && moreFramesRegex.MatchString(lines[next].Message) {
		// The elision marker closes this record's own frame list.
		next++
	}

	if next < len(lines) && strings.HasPrefix(lines[next].Message, causedByPrefix) {
		if depth+1 > a.maxCauseDepth {
			rec.CauseChainTruncated = true
			next = skipChain(lines, next)
		} else {
			cause, after := a.assemble(lines, next, floor, depth+1)
			if cause.Type != "" {
				rec.Causes = append(rec.Causes, cause)
			}
			if cause.CauseChainTruncated {
				rec.CauseChainTruncated = true
			}
			next = after
		}
	}

	rec.Severity = inferSeverity(&rec)
	return rec, next
}

// skipChain consumes the rest of a cause chain past the depth cap so the
// scan does not re-detect its "Caused by:" lines as fresh records.
func skipChain(lines []schemas.LogLine, idx int) int {
	for idx < len(lines) {
		msg := lines[idx].Message
		if strings.HasPrefix(msg, causedByPrefix) || isFrameLine(msg) || moreFramesRegex.MatchString(msg) {
			idx++
			continue
		}
		return idx
	}
	return idx
}

func isFrameLine(message string) bool {
	_, ok := parseFrame(message)
	return ok
}

func parseFrame(message string) (schemas.StackFrame, bool) {
	if m := frameRegex.FindStringSubmatch(message); m != nil {
		class, method := splitFrameSymbol(strings.TrimSpace(m[1]))
		line, _ := strconv.Atoi(m[3])
		return schemas.StackFrame{Class: class, Method: method, File: m[2], Line: line}, true
	}
	if m := unlocatedFrameRegex.FindStringSubmatch(message); m != nil {
		class, method := splitFrameSymbol(strings.TrimSpace(m[1]))
		return schemas.StackFrame{Class: class, Method: method, Native: m[2] == "Native Method"}, true
	}
	return schemas.StackFrame{}, false
}

// splitFrameSymbol splits "com.example.UserService.validate" into the
// declaring class and the method name.
func splitFrameSymbol(symbol string) (class, method string) {
	idx := strings.LastIndex(symbol, ".")
	if idx < 0 {
		return symbol, ""
	}
	return symbol[:idx], symbol[idx+1:]
}

// splitTypedMessage separates "java.lang.NullPointerException: Cannot invoke..."
// into the throwable type and its message. Without a colon the whole text is
// taken as the type and the message stays empty.
func splitTypedMessage(s string) (typ, msg string) {
	if idx := strings.Index(s, ":"); idx >= 0 {
		return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+1:])
	}
	return strings.TrimSpace(s), ""
}

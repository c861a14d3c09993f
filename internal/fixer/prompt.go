// internal/fixer/prompt.go
package fixer

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/logsurgeon/api/schemas"
)

const fixSystemPrompt = `You are an expert Java and Spring Boot developer with extensive experience in debugging and fixing application issues. Your task is to analyze exception information extracted from application logs and propose practical, actionable code fixes.

When analyzing an exception, consider:
1. The specific exception type and message
2. The stack trace to understand the call flow
3. Spring Boot best practices and common patterns
4. Potential root causes and prevention strategies
5. Code quality and maintainability

Proposed fixes must be specific and actionable, follow framework conventions, include proper error handling, and be production-ready. You MUST respond with a single valid JSON object and nothing else.`

const fixResponseContract = `
Respond with a JSON object using exactly this structure:
{
    "root_cause": "Detailed explanation of what caused this exception",
    "fix_description": "High-level description of the fix approach",
    "code_suggestions": [
        {
            "file": "file or class the fix applies to",
            "symbol": "method or field the fix targets",
            "description": "What this change does",
            "code": "The corrected Java code",
            "explanation": "Why this fix works"
        }
    ],
    "prevention_tips": [
        "Tip for preventing similar issues"
    ],
    "confidence": 0.85
}`

const unknownField = "Unknown"

// buildUserPrompt renders one exception record into the analysis request.
// Frames are capped at maxFrames; the optional source snippet is appended
// verbatim when present.
func buildUserPrompt(rec *schemas.ExceptionRecord, snippet string, maxFrames int) string {
	var b strings.Builder

	b.WriteString("Analyze the following exception from an application log and provide a comprehensive fix.\n\n")
	b.WriteString("Exception Details:\n")
	fmt.Fprintf(&b, "- Type: %s\n", rec.Type)
	fmt.Fprintf(&b, "- Message: %s\n", orUnknown(rec.Message))
	if rec.Timestamp != nil {
		fmt.Fprintf(&b, "- Timestamp: %s\n", rec.Timestamp.Format("2006-01-02 15:04:05.000"))
	} else {
		fmt.Fprintf(&b, "- Timestamp: %s\n", unknownField)
	}
	fmt.Fprintf(&b, "- Log Level: %s\n", orUnknown(rec.Level))
	fmt.Fprintf(&b, "- Severity: %s\n", rec.Severity)

	if frame := rec.InnermostFrame(); frame != nil {
		fmt.Fprintf(&b, "- Class: %s\n", orUnknown(frame.Class))
		fmt.Fprintf(&b, "- Method: %s\n", orUnknown(frame.Method))
		fmt.Fprintf(&b, "- File: %s\n", orUnknown(frame.File))
		if frame.Line > 0 {
			fmt.Fprintf(&b, "- Line: %d\n", frame.Line)
		} else {
			fmt.Fprintf(&b, "- Line: %s\n", unknownField)
		}
	}

	b.WriteString("\nStack Trace:\n")
	b.WriteString(renderFrames(rec.Frames, maxFrames))

	if chain := renderCauseChain(rec); chain != "" {
		b.WriteString("\nCause Chain:\n")
		b.WriteString(chain)
	}

	if len(rec.Context) > 0 {
		b.WriteString("\nSurrounding Log Context:\n")
		b.WriteString(strings.Join(rec.Context, "\n"))
		b.WriteString("\n")
	}

	if snippet != "" {
		b.WriteString("\nRelevant Source:\n")
		b.WriteString(snippet)
		b.WriteString("\n")
	}

	b.WriteString(fixResponseContract)
	return b.String()
}

func renderFrames(frames []schemas.StackFrame, maxFrames int) string {
	if len(frames) == 0 {
		return "(no stack frames captured)\n"
	}
	if maxFrames <= 0 || maxFrames > len(frames) {
		maxFrames = len(frames)
	}

	var b strings.Builder
	for _, frame := range frames[:maxFrames] {
		switch {
		case frame.Native:
			fmt.Fprintf(&b, "at %s.%s(Native Method)\n", frame.Class, frame.Method)
		case frame.File == "":
			fmt.Fprintf(&b, "at %s.%s(Unknown Source)\n", frame.Class, frame.Method)
		default:
			fmt.Fprintf(&b, "at %s.%s(%s:%d)\n", frame.Class, frame.Method, frame.File, frame.Line)
		}
	}
	if rest := len(frames) - maxFrames; rest > 0 {
		fmt.Fprintf(&b, "... %d more\n", rest)
	}
	return b.String()
}

func renderCauseChain(rec *schemas.ExceptionRecord) string {
	var b strings.Builder
	for cur := rec; len(cur.Causes) > 0; {
		cause := &cur.Causes[0]
		if cause.Message != "" {
			fmt.Fprintf(&b, "Caused by: %s: %s\n", cause.Type, cause.Message)
		} else {
			fmt.Fprintf(&b, "Caused by: %s\n", cause.Type)
		}
		cur = cause
	}
	if rec.CauseChainTruncated {
		b.WriteString("(cause chain truncated)\n")
	}
	return b.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknownField
	}
	return s
}

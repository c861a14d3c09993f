// internal/extract/detector.go
package extract

import (
	"regexp"
	"strings"
)

// Regex definitions for exception detection. Qualified names are the primary
// signal; the bare-keyword form is a fallback for unqualified throwables and
// deliberately requires a leading capital plus a colon so that conversational
// prose ("an error: retrying") never fires.
var (
	// Matches fully qualified throwable names such as
	// "java.lang.NullPointerException" or "org.springframework.dao.DataAccessException".
	qualifiedThrowableRegex = regexp.MustCompile(`\b[a-zA-Z_$][\w$]*(?:\.[a-zA-Z_$][\w$]*)+(?:Exception|Error)\b`)
	// Matches bare capitalized throwable tokens with a colon-delimited
	// message, e.g. "IllegalStateException: pool closed" or "Error: bind failed".
	bareThrowableRegex = regexp.MustCompile(`\b(?:[A-Z][\w$]*)?(?:Exception|Error):`)
)

const causedByPrefix = "Caused by:"

// IsExceptionStart reports whether a line's message begins a new exception
// occurrence. Stack frame lines ("at ...") and frame truncation markers
// ("... N more") never start a record; they belong to a preceding trace.
func IsExceptionStart(message string) bool {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return false
	}
	if strings.HasPrefix(msg, "at ") || strings.HasPrefix(msg, "...") {
		return false
	}
	if strings.HasPrefix(msg, causedByPrefix) {
		return true
	}
	if qualifiedThrowableRegex.MatchString(msg) {
		return true
	}
	if strings.Contains(msg, "Exception in thread") {
		return true
	}
	return bareThrowableRegex.MatchString(msg)
}

// internal/extract/severity.go
package extract

import (
	"strings"

	"github.com/xkilldash9x/logsurgeon/api/schemas"
)

// inferSeverity ranks a record from its throwable type, message, log level,
// and whether it drags a cause chain behind it. Resource exhaustion outranks
// everything; wrapped exceptions are at least HIGH because the surface error
// rarely tells the whole story.
func inferSeverity(rec *schemas.ExceptionRecord) schemas.Severity {
	typ := strings.ToLower(rec.Type)
	msg := strings.ToLower(rec.Message)

	switch {
	case strings.Contains(typ, "outofmemory"), strings.Contains(typ, "stackoverflow"):
		return schemas.SeverityCritical
	case strings.Contains(typ, "ioexception") && (strings.Contains(msg, "no space") || strings.Contains(msg, "disk")):
		return schemas.SeverityCritical
	case strings.Contains(typ, "nullpointer"),
		strings.Contains(typ, "classcast"),
		strings.Contains(typ, "sql"),
		len(rec.Causes) > 0:
		return schemas.SeverityHigh
	case strings.EqualFold(rec.Level, "ERROR"), strings.EqualFold(rec.Level, "FATAL"):
		return schemas.SeverityMedium
	default:
		return schemas.SeverityLow
	}
}

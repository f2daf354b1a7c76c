package validation

import (
	"fmt"
	"strings"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/backend"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/policy"
)

// RedactionMarker is the fixed rendering for sensitive parameter values.
// It never varies with the underlying value.
const RedactionMarker = "***REDACTED***"

// EscapeForLogging renders control characters (0x00-0x1F, 0x7F) as \xHH
// escapes so parameter values cannot forge log lines. Strings without
// control characters are returned unchanged.
func EscapeForLogging(s string) string {
	if !strings.ContainsFunc(s, isControl) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c <= 0x1F || c == 0x7F {
			fmt.Fprintf(&b, `\x%02X`, c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isControl(r rune) bool {
	return r <= 0x1F || r == 0x7F
}

// MaskName hides most of a parameter name for log output.
func MaskName(name string) string {
	if len(name) <= 2 {
		return "***"
	}
	return name[:2] + "***"
}

// RenderParameter produces the log-safe rendering of one parameter:
// name=value (Type: T, Direction: D). Sensitive parameters always render
// with the redaction marker; null values render as NULL.
func RenderParameter(pol policy.Config, p backend.Parameter) string {
	dataType := p.DataType
	if dataType == "" {
		dataType = "unknown"
	}
	direction := p.Direction
	if direction == "" {
		direction = backend.DirectionInput
	}

	if p.Sensitive || pol.IsSensitiveParameter(p.Name) {
		return fmt.Sprintf("%s=%s (Type: %s, Direction: %s)", p.Name, RedactionMarker, dataType, direction)
	}
	if p.Value == nil {
		return fmt.Sprintf("%s=NULL (Type: %s, Direction: %s)", p.Name, dataType, direction)
	}
	return fmt.Sprintf("%s=%s (Type: %s, Direction: %s)",
		p.Name, EscapeForLogging(fmt.Sprintf("%v", p.Value)), dataType, direction)
}

package validation

import (
	"regexp"
	"strings"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/backend"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/policy"
)

// injectionSignatures are lexical heuristics for hostile parameter values.
// Matches are soft findings unless the policy runs in strict mode; signal
// quality is too low for an unconditional hard stop.
var injectionSignatures = []struct {
	pattern     *regexp.Regexp
	description string
}{
	{regexp.MustCompile(`(?i)'\s*or\s+'1'\s*=\s*'1`), "quoted boolean tautology"},
	{regexp.MustCompile(`(?i)\bor\s+1\s*=\s*1\b`), "boolean tautology"},
	{regexp.MustCompile(`(?i);\s*(drop|delete|truncate|alter|exec|execute|shutdown)\b`), "statement termination followed by a destructive verb"},
	{regexp.MustCompile(`--|/\*`), "inline comment marker"},
	{regexp.MustCompile(`(?i)\b0x[0-9a-f]{8,}`), "long hex literal"},
}

// ValidateParameters scans a parameter set for hostile values. Null bytes
// and oversized values are hard failures; injection signatures are
// warnings (errors under strict injection policy). Non-string values pass
// through untouched. The procedure name prefixes every finding so audit
// detail stays self-describing.
func ValidateParameters(procedureName string, params []backend.Parameter, pol policy.Config) Result {
	var result Result

	prefix := ""
	if procedureName != "" {
		prefix = procedureName + ": "
	}

	for _, p := range params {
		value, ok := p.Value.(string)
		if !ok {
			continue
		}

		if strings.ContainsRune(value, 0x00) {
			result.AddErrorf("%sparameter %s contains a null byte", prefix, p.Name)
			continue
		}
		if len(value) > policy.MaxParameterLength {
			result.AddErrorf("%sparameter %s length %d exceeds maximum %d", prefix, p.Name, len(value), policy.MaxParameterLength)
		}

		for _, sig := range injectionSignatures {
			if !sig.pattern.MatchString(value) {
				continue
			}
			if pol.StrictInjection() {
				result.AddErrorf("%sparameter %s matches a suspicious pattern: %s", prefix, p.Name, sig.description)
			} else {
				result.AddWarningf("%sparameter %s matches a suspicious pattern: %s", prefix, p.Name, sig.description)
			}
		}
	}

	return result
}

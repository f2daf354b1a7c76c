// Package validation applies the safety policy to raw statements and
// parameter sets. Checks are lexical and structural, never a full SQL
// grammar: statements are tokenized into uppercase keyword candidates and
// matched against the policy's keyword sets and shape flags.
package validation

import (
	"strings"
	"unicode"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/policy"
)

// Classification buckets a statement for dispatch.
type Classification int

const (
	// Allowed statements execute immediately through the resilience wrapper.
	Allowed Classification = iota

	// Blocked statements failed validation and never reach the backend.
	Blocked

	// RequiresApproval statements are deferred into an approval task.
	RequiresApproval
)

// String returns the classification name used in logs and audit detail.
func (c Classification) String() string {
	switch c {
	case Blocked:
		return "blocked"
	case RequiresApproval:
		return "requires_approval"
	default:
		return "allowed"
	}
}

// ValidateStatement checks one statement against the policy. Errors are
// hard stops; a statement matching none of the allowed vocabulary gets a
// warning only.
func ValidateStatement(statement string, pol policy.Config) Result {
	var result Result

	trimmed := strings.TrimSpace(statement)
	if trimmed == "" {
		result.AddError("statement is empty")
		return result
	}
	if len(statement) > pol.MaxStatementLength() {
		result.AddErrorf("statement length %d exceeds maximum %d", len(statement), pol.MaxStatementLength())
		return result
	}

	tokens := tokenize(trimmed)
	if len(tokens) == 0 {
		result.AddError("statement contains no keywords")
		return result
	}
	verb := tokens[0]

	if pol.SelectOnlyMode() && verb != "SELECT" && verb != "WITH" {
		result.AddErrorf("select-only mode permits SELECT or WITH statements, got %s", verb)
	}

	if verb == "DELETE" && pol.BlockDeleteWithoutWhere() && !containsToken(tokens[1:], "WHERE") {
		result.AddError("DELETE statement requires a WHERE clause")
	}
	if verb == "UPDATE" && pol.BlockUpdateWithoutWhere() && !containsToken(tokens[1:], "WHERE") {
		result.AddError("UPDATE statement requires a WHERE clause")
	}

	seen := make(map[string]struct{})
	matchedAllowed := false
	for _, token := range tokens {
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}

		// The flag is an explicit hard stop and wins over approval routing.
		if pol.BlockDropTruncate() && (token == "DROP" || token == "TRUNCATE") {
			result.AddErrorf("blocked keyword detected: %s", token)
			continue
		}
		if pol.IsBlocked(token) {
			result.AddErrorf("blocked keyword detected: %s", token)
			continue
		}
		if pol.BlockSystemTables() {
			lower := strings.ToLower(token)
			if strings.HasPrefix(lower, "sys.") || strings.HasPrefix(lower, "information_schema.") {
				result.AddErrorf("system table access is blocked: %s", lower)
				continue
			}
		}
		if pol.IsAllowed(token) {
			matchedAllowed = true
		}
	}

	if pol.HasAllowedKeywords() && !matchedAllowed {
		result.AddWarning("statement matches no allowed keyword; intent is ambiguous")
	}

	return result
}

// Classify validates the statement and buckets it: validation errors mean
// Blocked, a leading verb in the approval set means RequiresApproval,
// everything else is Allowed. The validation result is returned alongside
// so callers never validate twice.
func Classify(statement string, pol policy.Config) (Classification, Result) {
	result := ValidateStatement(statement, pol)
	if !result.Valid() {
		return Blocked, result
	}

	tokens := tokenize(statement)
	if len(tokens) > 0 && pol.RequiresApproval(tokens[0]) {
		return RequiresApproval, result
	}
	return Allowed, result
}

// tokenize splits a statement into uppercase keyword candidates. Dots stay
// inside tokens so catalog references like sys.objects survive as one
// candidate.
func tokenize(statement string) []string {
	return strings.FieldsFunc(strings.ToUpper(statement), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.'
	})
}

func containsToken(tokens []string, want string) bool {
	for _, t := range tokens {
		if t == want {
			return true
		}
	}
	return false
}

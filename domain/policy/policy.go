// Package policy defines the immutable safety policy applied to every
// statement and parameter set. A Config is built once at startup from the
// loaded configuration document and passed by value into the validator;
// nothing mutates it afterwards.
package policy

import (
	"errors"
	"strings"
)

// ErrInvalidPolicy indicates the policy parameters cannot form a usable policy.
var ErrInvalidPolicy = errors.New("invalid policy")

// MaxParameterLength is the ceiling for any single string parameter value,
// matching common backend text-column limits.
const MaxParameterLength = 8000

// Params enumerates the policy fields as they arrive from configuration.
type Params struct {
	MaxStatementLength      int
	SelectOnlyMode          bool
	BlockSystemTables       bool
	BlockDropTruncate       bool
	BlockDeleteWithoutWhere bool
	BlockUpdateWithoutWhere bool
	StrictInjection         bool
	AllowedKeywords         []string
	BlockedKeywords         []string
	ApprovalKeywords        []string
	SensitiveParameters     []string
}

// Config is the cooked, immutable form of a policy. Keyword lookups are
// case-insensitive; blocked entries ending in an underscore match as
// prefixes (SP_, XP_).
type Config struct {
	maxStatementLength      int
	selectOnlyMode          bool
	blockSystemTables       bool
	blockDropTruncate       bool
	blockDeleteWithoutWhere bool
	blockUpdateWithoutWhere bool
	strictInjection         bool

	allowed         map[string]struct{}
	blocked         map[string]struct{}
	blockedPrefixes []string
	approval        map[string]struct{}
	sensitive       []string
}

// New builds a Config from params. The statement length limit is required;
// everything else may be empty.
func New(p Params) (Config, error) {
	if p.MaxStatementLength <= 0 {
		return Config{}, errors.Join(ErrInvalidPolicy, errors.New("max statement length must be positive"))
	}

	c := Config{
		maxStatementLength:      p.MaxStatementLength,
		selectOnlyMode:          p.SelectOnlyMode,
		blockSystemTables:       p.BlockSystemTables,
		blockDropTruncate:       p.BlockDropTruncate,
		blockDeleteWithoutWhere: p.BlockDeleteWithoutWhere,
		blockUpdateWithoutWhere: p.BlockUpdateWithoutWhere,
		strictInjection:         p.StrictInjection,
		allowed:                 toSet(p.AllowedKeywords),
		approval:                toSet(p.ApprovalKeywords),
		blocked:                 make(map[string]struct{}, len(p.BlockedKeywords)),
	}

	for _, kw := range p.BlockedKeywords {
		kw = strings.ToUpper(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.HasSuffix(kw, "_") {
			c.blockedPrefixes = append(c.blockedPrefixes, kw)
			continue
		}
		c.blocked[kw] = struct{}{}
	}

	for _, s := range p.SensitiveParameters {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			c.sensitive = append(c.sensitive, s)
		}
	}

	return c, nil
}

// Default returns the out-of-the-box policy: mutations allowed with WHERE
// guards, system tables and procedure escape hatches blocked, schema-change
// verbs routed through approval.
func Default() Config {
	c, _ := New(Params{
		MaxStatementLength:      10000,
		SelectOnlyMode:          false,
		BlockSystemTables:       true,
		BlockDropTruncate:       true,
		BlockDeleteWithoutWhere: true,
		BlockUpdateWithoutWhere: true,
		AllowedKeywords: []string{
			"SELECT", "WITH", "FROM", "WHERE", "JOIN", "INNER", "OUTER", "LEFT",
			"RIGHT", "ORDER", "GROUP", "BY", "HAVING", "UNION", "LIMIT", "TOP",
			"INSERT", "INTO", "VALUES", "UPDATE", "SET", "DELETE", "AS", "ON",
		},
		BlockedKeywords: []string{
			"EXEC", "EXECUTE", "SP_", "XP_", "OPENROWSET", "OPENDATASOURCE",
			"BULK", "SHUTDOWN", "DBCC", "GRANT", "REVOKE", "DENY",
		},
		ApprovalKeywords: []string{
			"ALTER", "CREATE", "BACKUP", "RESTORE", "REINDEX",
		},
		SensitiveParameters: []string{
			"password", "secret", "token", "key", "credential", "ssn",
		},
	})
	return c
}

// SelectOnly returns a copy of the policy with select-only mode forced on,
// used for read-only surfaces regardless of the configured mode.
func (c Config) SelectOnly() Config {
	c.selectOnlyMode = true
	return c
}

// MaxStatementLength returns the statement length ceiling.
func (c Config) MaxStatementLength() int { return c.maxStatementLength }

// SelectOnlyMode reports whether only SELECT/WITH statements are accepted.
func (c Config) SelectOnlyMode() bool { return c.selectOnlyMode }

// BlockSystemTables reports whether system catalog references are rejected.
func (c Config) BlockSystemTables() bool { return c.blockSystemTables }

// BlockDropTruncate reports whether DROP and TRUNCATE are hard-rejected
// regardless of the blocked keyword list.
func (c Config) BlockDropTruncate() bool { return c.blockDropTruncate }

// BlockDeleteWithoutWhere reports whether DELETE requires a WHERE clause.
func (c Config) BlockDeleteWithoutWhere() bool { return c.blockDeleteWithoutWhere }

// BlockUpdateWithoutWhere reports whether UPDATE requires a WHERE clause.
func (c Config) BlockUpdateWithoutWhere() bool { return c.blockUpdateWithoutWhere }

// StrictInjection reports whether injection signatures are errors instead
// of warnings.
func (c Config) StrictInjection() bool { return c.strictInjection }

// IsAllowed reports whether the uppercase token is in the allowed vocabulary.
func (c Config) IsAllowed(token string) bool {
	_, ok := c.allowed[token]
	return ok
}

// HasAllowedKeywords reports whether an allowed vocabulary was configured.
func (c Config) HasAllowedKeywords() bool { return len(c.allowed) > 0 }

// IsBlocked reports whether the uppercase token matches the blocked list,
// by exact entry or prefix entry. Tokens routed through approval are not
// blocked here; the approval gate supersedes the blocked list.
func (c Config) IsBlocked(token string) bool {
	if c.RequiresApproval(token) {
		return false
	}
	if _, ok := c.blocked[token]; ok {
		return true
	}
	for _, prefix := range c.blockedPrefixes {
		if strings.HasPrefix(token, prefix) {
			return true
		}
	}
	return false
}

// RequiresApproval reports whether the uppercase token is approval-gated.
func (c Config) RequiresApproval(token string) bool {
	_, ok := c.approval[token]
	return ok
}

// IsSensitiveParameter reports whether a parameter name should be redacted
// in any log or audit output. Matching is a case-insensitive substring
// check so user_password matches the password entry.
func (c Config) IsSensitiveParameter(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range c.sensitive {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func toSet(keywords []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToUpper(strings.TrimSpace(kw))
		if kw != "" {
			set[kw] = struct{}{}
		}
	}
	return set
}

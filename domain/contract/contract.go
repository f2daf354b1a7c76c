// Package contract holds the expected parameter shapes of stored
// procedures and validates provided parameters against them. Contracts are
// cached with a TTL and always refreshed from the backend metadata catalog
// before an expired entry is trusted again.
package contract

import (
	"strings"
	"time"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/backend"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/validation"
)

// SecurityLevel grades how sensitive a stored procedure is. Elevated and
// Critical procedures are routed through the approval workflow.
type SecurityLevel int

const (
	// SecurityStandard procedures execute directly.
	SecurityStandard SecurityLevel = iota

	// SecurityElevated procedures require approval.
	SecurityElevated

	// SecurityCritical procedures require approval and audit at high severity.
	SecurityCritical
)

// String returns the level name.
func (s SecurityLevel) String() string {
	switch s {
	case SecurityElevated:
		return "Elevated"
	case SecurityCritical:
		return "Critical"
	default:
		return "Standard"
	}
}

// ParseSecurityLevel maps a metadata catalog value to a level. Unknown
// values degrade to Standard.
func ParseSecurityLevel(s string) SecurityLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "elevated":
		return SecurityElevated
	case "critical":
		return SecurityCritical
	default:
		return SecurityStandard
	}
}

// ParameterContract describes one expected parameter.
type ParameterContract struct {
	Name         string            `json:"name"`
	DataType     string            `json:"data_type"`
	Required     bool              `json:"required"`
	Direction    backend.Direction `json:"direction"`
	MaxLength    int               `json:"max_length,omitempty"`
	DefaultValue string            `json:"default_value,omitempty"`
}

// Contract is the expected shape of one stored procedure.
type Contract struct {
	QualifiedName    string              `json:"qualified_name"`
	Parameters       []ParameterContract `json:"parameters"`
	ReturnsResultSet bool                `json:"returns_result_set"`
	SecurityLevel    SecurityLevel       `json:"security_level"`
	CachedAt         time.Time           `json:"cached_at"`
	ExpiresAt        time.Time           `json:"expires_at"`
}

// Expired reports whether the entry must be refreshed before reuse.
func (c *Contract) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// FromMetadata cooks raw backend metadata into a cacheable contract. A
// non-positive ttl falls back to DefaultTTL so ExpiresAt always lands
// after CachedAt.
func FromMetadata(meta *backend.ProcedureMetadata, now time.Time, ttl time.Duration) *Contract {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	params := make([]ParameterContract, 0, len(meta.Parameters))
	for _, p := range meta.Parameters {
		params = append(params, ParameterContract{
			Name:         p.Name,
			DataType:     p.DataType,
			Required:     p.Required,
			Direction:    p.Direction,
			MaxLength:    p.MaxLength,
			DefaultValue: p.DefaultValue,
		})
	}

	return &Contract{
		QualifiedName:    meta.QualifiedName,
		Parameters:       params,
		ReturnsResultSet: meta.ReturnsResultSet,
		SecurityLevel:    ParseSecurityLevel(meta.SecurityLevel),
		CachedAt:         now,
		ExpiresAt:        now.Add(ttl),
	}
}

// Validate checks provided parameters against the contract. Missing
// required parameters produce one error each; a provided parameter the
// contract does not know is an error (tamper signal); declared data types
// must match the contract.
func (c *Contract) Validate(provided []backend.Parameter) validation.Result {
	var result validation.Result

	byName := make(map[string]ParameterContract, len(c.Parameters))
	for _, cp := range c.Parameters {
		byName[normalizeName(cp.Name)] = cp
	}

	seen := make(map[string]struct{}, len(provided))
	for _, p := range provided {
		seen[normalizeName(p.Name)] = struct{}{}
	}

	for _, cp := range c.Parameters {
		if !cp.Required {
			continue
		}
		if _, ok := seen[normalizeName(cp.Name)]; !ok {
			result.AddErrorf("required parameter missing: %s", cp.Name)
		}
	}

	for _, p := range provided {
		cp, ok := byName[normalizeName(p.Name)]
		if !ok {
			result.AddErrorf("unexpected parameter: %s", p.Name)
			continue
		}
		if p.DataType != "" && !typesCompatible(p.DataType, cp.DataType) {
			result.AddErrorf("parameter %s type mismatch: got %s, want %s", p.Name, p.DataType, cp.DataType)
		}
		if cp.MaxLength > 0 {
			if s, isString := p.Value.(string); isString && len(s) > cp.MaxLength {
				result.AddErrorf("parameter %s length %d exceeds contract maximum %d", p.Name, len(s), cp.MaxLength)
			}
		}
	}

	return result
}

// normalizeName makes parameter names comparable across calling
// conventions: leading @ stripped, case folded.
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "@"))
}

var typeAliases = map[string]string{
	"integer": "int",
	"boolean": "bit",
	"bool":    "bit",
}

// typesCompatible compares declared data types after trimming length
// suffixes like (50) and resolving common aliases.
func typesCompatible(got, want string) bool {
	return canonicalType(got) == canonicalType(want)
}

func canonicalType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	if alias, ok := typeAliases[t]; ok {
		return alias
	}
	return t
}

// Package tool provides the domain model for the gateway's tool catalog.
package tool

// RiskLevel indicates the potential impact of invoking a tool.
type RiskLevel int

const (
	RiskNone     RiskLevel = iota // No risk - purely informational
	RiskLow                       // Low risk - reversible changes
	RiskMedium                    // Medium risk - may require cleanup
	RiskHigh                      // High risk - difficult to reverse
	RiskCritical                  // Critical risk - irreversible or destructive
)

// String returns the string representation of the risk level.
func (r RiskLevel) String() string {
	switch r {
	case RiskNone:
		return "none"
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Annotations describe tool behavior for approval routing and retry policy.
type Annotations struct {
	// ReadOnly indicates the tool never modifies backend state.
	ReadOnly bool `json:"read_only"`

	// Destructive indicates the tool may cause irreversible changes.
	Destructive bool `json:"destructive"`

	// Idempotent indicates repeated calls with the same input converge.
	Idempotent bool `json:"idempotent"`

	// RiskLevel indicates the potential impact of execution.
	RiskLevel RiskLevel `json:"risk_level"`

	// RequiresApproval indicates an operator must approve each call.
	RequiresApproval bool `json:"requires_approval"`
}

// DefaultAnnotations returns annotations with conservative defaults.
func DefaultAnnotations() Annotations {
	return Annotations{RiskLevel: RiskLow}
}

// ShouldRequireApproval reports whether calls must route through the
// approval workflow.
func (a Annotations) ShouldRequireApproval() bool {
	return a.RequiresApproval || a.Destructive || a.RiskLevel >= RiskHigh
}

// CanRetry reports whether a failed call is safe to retry.
func (a Annotations) CanRetry() bool {
	return a.Idempotent || a.ReadOnly
}

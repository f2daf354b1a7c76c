package policy

import (
	"errors"
	"testing"
)

func TestNewRequiresStatementLength(t *testing.T) {
	t.Parallel()

	_, err := New(Params{MaxStatementLength: 0})
	if !errors.Is(err, ErrInvalidPolicy) {
		t.Errorf("New() error = %v, want ErrInvalidPolicy", err)
	}

	if _, err := New(Params{MaxStatementLength: 100}); err != nil {
		t.Errorf("New() with positive length returned error: %v", err)
	}
}

func TestKeywordLookupsAreCaseInsensitive(t *testing.T) {
	t.Parallel()

	c, err := New(Params{
		MaxStatementLength: 100,
		AllowedKeywords:    []string{"select"},
		BlockedKeywords:    []string{"exec"},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if !c.IsAllowed("SELECT") {
		t.Error("IsAllowed(SELECT) = false, want true for lowercase-configured keyword")
	}
	if !c.IsBlocked("EXEC") {
		t.Error("IsBlocked(EXEC) = false, want true for lowercase-configured keyword")
	}
}

func TestBlockedPrefixEntries(t *testing.T) {
	t.Parallel()

	c, err := New(Params{
		MaxStatementLength: 100,
		BlockedKeywords:    []string{"SP_", "XP_", "EXEC"},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	tests := []struct {
		token string
		want  bool
	}{
		{"SP_HELP", true},
		{"XP_CMDSHELL", true},
		{"EXEC", true},
		{"SPECIAL", false},
		{"SELECT", false},
	}

	for _, tt := range tests {
		if got := c.IsBlocked(tt.token); got != tt.want {
			t.Errorf("IsBlocked(%q) = %v, want %v", tt.token, got, tt.want)
		}
	}
}

func TestApprovalSupersedesBlocked(t *testing.T) {
	t.Parallel()

	c, err := New(Params{
		MaxStatementLength: 100,
		BlockedKeywords:    []string{"ALTER"},
		ApprovalKeywords:   []string{"ALTER"},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if c.IsBlocked("ALTER") {
		t.Error("IsBlocked(ALTER) = true, want false when the keyword is approval-gated")
	}
	if !c.RequiresApproval("ALTER") {
		t.Error("RequiresApproval(ALTER) = false, want true")
	}
}

func TestSelectOnlyDerivesACopy(t *testing.T) {
	t.Parallel()

	base := Default()
	if base.SelectOnlyMode() {
		t.Fatal("Default() should not be select-only")
	}

	derived := base.SelectOnly()
	if !derived.SelectOnlyMode() {
		t.Error("SelectOnly() copy should have select-only mode on")
	}
	if base.SelectOnlyMode() {
		t.Error("SelectOnly() must not mutate the receiver")
	}
}

func TestIsSensitiveParameter(t *testing.T) {
	t.Parallel()

	c := Default()

	tests := []struct {
		name string
		want bool
	}{
		{"Password", true},
		{"user_password", true},
		{"ApiToken", true},
		{"SecretKey", true},
		{"CustomerID", false},
		{"Name", false},
	}

	for _, tt := range tests {
		if got := c.IsSensitiveParameter(tt.name); got != tt.want {
			t.Errorf("IsSensitiveParameter(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDefaultPolicyShape(t *testing.T) {
	t.Parallel()

	c := Default()

	if c.MaxStatementLength() != 10000 {
		t.Errorf("MaxStatementLength() = %d, want 10000", c.MaxStatementLength())
	}
	if !c.BlockDeleteWithoutWhere() || !c.BlockUpdateWithoutWhere() {
		t.Error("default policy should require WHERE on DELETE and UPDATE")
	}
	if !c.BlockSystemTables() {
		t.Error("default policy should block system tables")
	}
	if !c.IsBlocked("XP_CMDSHELL") {
		t.Error("default policy should block XP_ prefixed procedures")
	}
	if !c.RequiresApproval("ALTER") {
		t.Error("default policy should approval-gate ALTER")
	}
	if c.IsBlocked("SELECT") {
		t.Error("default policy should not block SELECT")
	}
}

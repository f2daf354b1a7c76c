package validation

import (
	"strings"
	"testing"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/policy"
)

func TestValidateStatementAcceptsPlainSelect(t *testing.T) {
	t.Parallel()

	result := ValidateStatement("SELECT * FROM Sales.Customer", policy.Default())
	if !result.Valid() {
		t.Fatalf("ValidateStatement() errors = %v, want none", result.Errors)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("ValidateStatement() warnings = %v, want none", result.Warnings)
	}
}

func TestValidateStatementBlockedKeywords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		statement string
		keyword   string
	}{
		{"exec", "EXEC sp_who", "EXEC"},
		{"execute lowercase", "execute master..xp_cmdshell 'dir'", "EXECUTE"},
		{"openrowset", "SELECT * FROM OPENROWSET('SQLNCLI', '...')", "OPENROWSET"},
		{"xp prefix", "SELECT xp_cmdshell", "XP_CMDSHELL"},
		{"sp prefix", "SELECT sp_configure", "SP_CONFIGURE"},
		{"drop", "DROP TABLE Users", "DROP"},
		{"truncate mixed case", "Truncate Table Users", "TRUNCATE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := ValidateStatement(tt.statement, policy.Default())
			if result.Valid() {
				t.Fatalf("ValidateStatement(%q) valid, want blocked", tt.statement)
			}
			found := false
			for _, e := range result.Errors {
				if strings.Contains(e, tt.keyword) {
					found = true
				}
			}
			if !found {
				t.Errorf("errors %v should name keyword %s", result.Errors, tt.keyword)
			}
		})
	}
}

func TestValidateStatementWhereGuards(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		statement string
		valid     bool
	}{
		{"delete without where", "DELETE FROM Sales.Customer", false},
		{"delete lowercase without where", "delete from sales.customer", false},
		{"delete with where", "DELETE FROM Sales.Customer WHERE CustomerID = 42", true},
		{"update without where", "UPDATE Sales.Customer SET Name = 'x'", false},
		{"update with where", "UPDATE Sales.Customer SET Name = 'x' WHERE CustomerID = 42", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := ValidateStatement(tt.statement, policy.Default())
			if result.Valid() != tt.valid {
				t.Fatalf("ValidateStatement(%q).Valid() = %v, want %v (errors: %v)",
					tt.statement, result.Valid(), tt.valid, result.Errors)
			}
			if !tt.valid {
				found := false
				for _, e := range result.Errors {
					if strings.Contains(e, "WHERE") {
						found = true
					}
				}
				if !found {
					t.Errorf("errors %v should mention WHERE", result.Errors)
				}
			}
		})
	}
}

func TestValidateStatementSelectOnlyMode(t *testing.T) {
	t.Parallel()

	pol := policy.Default().SelectOnly()

	if result := ValidateStatement("SELECT 1", pol); !result.Valid() {
		t.Errorf("SELECT under select-only should pass, errors: %v", result.Errors)
	}
	if result := ValidateStatement("WITH x AS (SELECT 1) SELECT * FROM x", pol); !result.Valid() {
		t.Errorf("WITH under select-only should pass, errors: %v", result.Errors)
	}
	if result := ValidateStatement("INSERT INTO t VALUES (1)", pol); result.Valid() {
		t.Error("INSERT under select-only should fail")
	}
}

func TestValidateStatementSystemTables(t *testing.T) {
	t.Parallel()

	tests := []string{
		"SELECT * FROM sys.objects",
		"SELECT name FROM SYS.TABLES",
		"SELECT * FROM information_schema.columns",
	}

	for _, statement := range tests {
		result := ValidateStatement(statement, policy.Default())
		if result.Valid() {
			t.Errorf("ValidateStatement(%q) valid, want system-table rejection", statement)
		}
	}
}

func TestValidateStatementLengthLimit(t *testing.T) {
	t.Parallel()

	pol, err := policy.New(policy.Params{MaxStatementLength: 20, AllowedKeywords: []string{"SELECT"}})
	if err != nil {
		t.Fatalf("policy.New() error: %v", err)
	}

	if result := ValidateStatement("SELECT 1", pol); !result.Valid() {
		t.Errorf("short statement should pass, errors: %v", result.Errors)
	}
	if result := ValidateStatement("SELECT "+strings.Repeat("x", 40), pol); result.Valid() {
		t.Error("oversized statement should fail")
	}
}

func TestValidateStatementEmptyAndBlank(t *testing.T) {
	t.Parallel()

	for _, statement := range []string{"", "   ", "\t\n"} {
		if result := ValidateStatement(statement, policy.Default()); result.Valid() {
			t.Errorf("ValidateStatement(%q) valid, want empty-statement error", statement)
		}
	}
}

func TestValidateStatementAmbiguousIntentWarning(t *testing.T) {
	t.Parallel()

	result := ValidateStatement("SHOW PROCESSLIST", policy.Default())
	if !result.Valid() {
		t.Fatalf("unknown-vocabulary statement should still pass, errors: %v", result.Errors)
	}
	if len(result.Warnings) == 0 {
		t.Error("statement matching no allowed keyword should warn")
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		statement string
		want      Classification
	}{
		{"select allowed", "SELECT * FROM Sales.Customer", Allowed},
		{"insert allowed", "INSERT INTO Sales.Customer (Name) VALUES ('x')", Allowed},
		{"alter requires approval", "ALTER TABLE Sales.Customer ADD COLUMN Email TEXT", RequiresApproval},
		{"create requires approval", "CREATE INDEX ix_name ON Sales.Customer (Name)", RequiresApproval},
		{"backup requires approval", "BACKUP DATABASE Sales TO DISK = 'sales.bak'", RequiresApproval},
		{"drop blocked", "DROP TABLE Users", Blocked},
		{"exec blocked", "EXEC sp_who", Blocked},
		{"delete without where blocked", "DELETE FROM Sales.Customer", Blocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, result := Classify(tt.statement, policy.Default())
			if got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v (errors: %v)", tt.statement, got, tt.want, result.Errors)
			}
			if tt.want == Blocked && result.Valid() {
				t.Error("blocked classification should come with validation errors")
			}
		})
	}
}

func TestClassificationString(t *testing.T) {
	t.Parallel()

	if Allowed.String() != "allowed" || Blocked.String() != "blocked" || RequiresApproval.String() != "requires_approval" {
		t.Errorf("Classification strings = %q/%q/%q", Allowed, Blocked, RequiresApproval)
	}
}

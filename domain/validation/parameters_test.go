package validation

import (
	"strings"
	"testing"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/backend"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/policy"
)

func TestValidateParametersNullByte(t *testing.T) {
	t.Parallel()

	params := []backend.Parameter{{Name: "Name", Value: "abc\x00def"}}
	result := ValidateParameters("Sales.GetCustomer", params, policy.Default())

	if result.Valid() {
		t.Fatal("parameter with embedded null byte should be rejected")
	}
	if !strings.Contains(result.Errors[0], "null byte") {
		t.Errorf("error = %q, want mention of null byte", result.Errors[0])
	}
}

func TestValidateParametersOversized(t *testing.T) {
	t.Parallel()

	params := []backend.Parameter{{Name: "Payload", Value: strings.Repeat("a", policy.MaxParameterLength+1)}}
	result := ValidateParameters("Sales.GetCustomer", params, policy.Default())

	if result.Valid() {
		t.Fatal("oversized parameter should be rejected")
	}
	if !strings.Contains(result.Errors[0], "exceeds maximum") {
		t.Errorf("error = %q, want length-limit message", result.Errors[0])
	}

	exact := []backend.Parameter{{Name: "Payload", Value: strings.Repeat("a", policy.MaxParameterLength)}}
	if result := ValidateParameters("Sales.GetCustomer", exact, policy.Default()); !result.Valid() {
		t.Errorf("parameter at exactly the ceiling should pass, errors: %v", result.Errors)
	}
}

func TestValidateParametersInjectionSignaturesWarn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
	}{
		{"termination plus drop", "1; DROP TABLE Users"},
		{"termination plus exec", "x'; EXEC xp_cmdshell 'dir'"},
		{"quoted tautology", "' OR '1'='1"},
		{"bare tautology", "1 OR 1=1"},
		{"comment marker", "admin'--"},
		{"block comment", "a /* hide */ b"},
		{"hex run", "0x48656c6c6f21"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			params := []backend.Parameter{{Name: "Input", Value: tt.value}}
			result := ValidateParameters("Sales.GetCustomer", params, policy.Default())

			if !result.Valid() {
				t.Fatalf("signature match must stay a warning by default, errors: %v", result.Errors)
			}
			if len(result.Warnings) == 0 {
				t.Fatal("signature match should produce a warning")
			}
			if !strings.Contains(result.Warnings[0], "suspicious pattern") {
				t.Errorf("warning = %q, want mention of suspicious pattern", result.Warnings[0])
			}
		})
	}
}

func TestValidateParametersStrictInjection(t *testing.T) {
	t.Parallel()

	pol, err := policy.New(policy.Params{MaxStatementLength: 100, StrictInjection: true})
	if err != nil {
		t.Fatalf("policy.New() error: %v", err)
	}

	params := []backend.Parameter{{Name: "Input", Value: "1; DROP TABLE Users"}}
	result := ValidateParameters("Sales.GetCustomer", params, pol)

	if result.Valid() {
		t.Error("strict injection policy should promote signatures to errors")
	}
}

func TestValidateParametersCleanValues(t *testing.T) {
	t.Parallel()

	params := []backend.Parameter{
		{Name: "CustomerID", Value: 42},
		{Name: "Name", Value: "O'Malley"},
		{Name: "Active", Value: true},
		{Name: "Note", Value: nil},
	}
	result := ValidateParameters("Sales.GetCustomer", params, policy.Default())

	if !result.Valid() {
		t.Errorf("clean parameters should pass, errors: %v", result.Errors)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("clean parameters should produce no warnings, got: %v", result.Warnings)
	}
}

func TestValidateParametersFindingNamesProcedure(t *testing.T) {
	t.Parallel()

	params := []backend.Parameter{{Name: "Input", Value: "x'--"}}
	result := ValidateParameters("Sales.GetCustomer", params, policy.Default())

	if len(result.Warnings) == 0 || !strings.Contains(result.Warnings[0], "Sales.GetCustomer") {
		t.Errorf("warnings = %v, want the procedure name in the finding", result.Warnings)
	}
}

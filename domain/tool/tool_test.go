package tool_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/tool"
)

func echoHandler(_ context.Context, args json.RawMessage) (tool.Result, error) {
	return tool.NewResult(args), nil
}

func TestBuilderConstructsDefinition(t *testing.T) {
	t.Parallel()

	schema := tool.ObjectSchema(map[string]json.RawMessage{
		"statement": tool.StringProperty("SQL text to run"),
	}, []string{"statement"})

	built, err := tool.NewBuilder("query").
		WithDescription("Run a read-only statement").
		WithInputSchema(schema).
		ReadOnly().
		Idempotent().
		WithHandler(echoHandler).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if built.Name() != "query" {
		t.Errorf("Name() = %q, want %q", built.Name(), "query")
	}
	if built.Description() != "Run a read-only statement" {
		t.Errorf("Description() = %q", built.Description())
	}
	ann := built.Annotations()
	if !ann.ReadOnly || !ann.Idempotent {
		t.Errorf("annotations = %+v, want read-only and idempotent", ann)
	}
	if ann.RiskLevel != tool.RiskNone {
		t.Errorf("RiskLevel = %v, want %v", ann.RiskLevel, tool.RiskNone)
	}
	if ann.ShouldRequireApproval() {
		t.Error("read-only tool should not require approval")
	}
	if !ann.CanRetry() {
		t.Error("CanRetry() = false for read-only tool")
	}
}

func TestBuilderDestructiveForcesApproval(t *testing.T) {
	t.Parallel()

	built, err := tool.NewBuilder("migrate").
		Destructive().
		WithHandler(echoHandler).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	ann := built.Annotations()
	if !ann.Destructive || !ann.RequiresApproval {
		t.Errorf("annotations = %+v, want destructive and requires-approval", ann)
	}
	if ann.RiskLevel < tool.RiskHigh {
		t.Errorf("RiskLevel = %v, want at least %v", ann.RiskLevel, tool.RiskHigh)
	}
	if !ann.ShouldRequireApproval() {
		t.Error("ShouldRequireApproval() = false for destructive tool")
	}
	if ann.CanRetry() {
		t.Error("CanRetry() = true for non-idempotent destructive tool")
	}
}

func TestBuilderRejectsIncompleteDefinitions(t *testing.T) {
	t.Parallel()

	if _, err := tool.NewBuilder("").WithHandler(echoHandler).Build(); !errors.Is(err, tool.ErrEmptyName) {
		t.Errorf("Build() error = %v, want ErrEmptyName", err)
	}
	if _, err := tool.NewBuilder("query").Build(); !errors.Is(err, tool.ErrNoHandler) {
		t.Errorf("Build() error = %v, want ErrNoHandler", err)
	}
}

func TestExecuteValidatesArguments(t *testing.T) {
	t.Parallel()

	schema := tool.ObjectSchema(map[string]json.RawMessage{
		"database":  tool.StringProperty("target database"),
		"statement": tool.StringProperty("SQL text"),
	}, []string{"database", "statement"})

	built := tool.NewBuilder("execute").
		WithInputSchema(schema).
		WithHandler(echoHandler).
		MustBuild()

	_, err := built.Execute(context.Background(), json.RawMessage(`{"database":"sales"}`))
	if !errors.Is(err, tool.ErrMissingArgument) {
		t.Fatalf("Execute() error = %v, want ErrMissingArgument", err)
	}
	var missing *tool.MissingArgumentError
	if !errors.As(err, &missing) {
		t.Fatalf("Execute() error type = %T, want *MissingArgumentError", err)
	}
	if missing.Field != "statement" {
		t.Errorf("missing field = %q, want %q", missing.Field, "statement")
	}

	res, err := built.Execute(context.Background(),
		json.RawMessage(`{"database":"sales","statement":"SELECT 1"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.OutputString() == "" {
		t.Error("Execute() returned empty output")
	}
}

func TestResultWarnings(t *testing.T) {
	t.Parallel()

	res := tool.NewResult(json.RawMessage(`{"rows":0}`)).
		WithWarnings("suspicious pattern in parameter value")

	if len(res.Warnings) != 1 {
		t.Fatalf("Warnings = %v, want one entry", res.Warnings)
	}
	more := res.WithWarnings("statement matches no allowed keyword")
	if len(more.Warnings) != 2 {
		t.Errorf("Warnings = %v, want two entries", more.Warnings)
	}
}

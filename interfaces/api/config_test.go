package api_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dbbuilder/sqlmcp-saas-sub003/interfaces/api"
)

const configYAML = `
server:
  transport: http
  http_addr: ":9090"
policy:
  select_only_mode: true
  max_statement_length: 4000
  block_system_tables: true
  block_drop_truncate: true
  block_delete_without_where: true
  block_update_without_where: true
  allowed_keywords: [SELECT, FROM, WHERE]
  blocked_keywords: [EXEC, SP_, XP_]
databases:
  - name: reporting
    driver: memory
    default: true
`

func TestNewConfigLoader_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(path, []byte(configYAML), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := api.NewConfigLoader().LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Server.Transport != "http" {
		t.Errorf("Transport = %q, want http", cfg.Server.Transport)
	}
	if !*cfg.Policy.SelectOnlyMode {
		t.Error("SelectOnlyMode should be true")
	}
	if cfg.DefaultDatabase() != "reporting" {
		t.Errorf("DefaultDatabase = %q, want reporting", cfg.DefaultDatabase())
	}
}

func TestNewConfigLoader_NotFound(t *testing.T) {
	_, err := api.NewConfigLoader().LoadFile("/nonexistent/gateway.yaml")
	if !errors.Is(err, api.ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got: %v", err)
	}
}

func TestValidateConfig_ReportsMissingPolicy(t *testing.T) {
	cfg := api.DefaultConfig()
	cfg.Policy = nil

	errs := api.ValidateConfig(cfg)
	if !errs.HasErrors() {
		t.Fatal("expected validation errors for a missing policy section")
	}
	if !strings.Contains(errs.Error(), "policy") {
		t.Errorf("errors should name the policy section, got: %v", errs)
	}
}

func TestConfigWithValidation_Disabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(path, []byte("server:\n  transport: stdio\n"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	loader := api.NewConfigLoaderWithOptions(api.ConfigWithValidation(false))
	cfg, err := loader.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile with validation off failed: %v", err)
	}
	if cfg.Policy != nil {
		t.Error("expected the policy section to stay nil")
	}
}

func TestConfigSchemaJSON(t *testing.T) {
	schema, err := api.ConfigSchemaJSON()
	if err != nil {
		t.Fatalf("ConfigSchemaJSON failed: %v", err)
	}
	if !strings.Contains(schema, "$schema") {
		t.Error("schema missing $schema marker")
	}
	if !strings.Contains(schema, `"policy"`) {
		t.Error("schema missing the policy section")
	}
}

func TestDefaultConfig_Validates(t *testing.T) {
	if errs := api.ValidateConfig(api.DefaultConfig()); errs.HasErrors() {
		t.Fatalf("the default configuration must validate, got: %v", errs)
	}
}

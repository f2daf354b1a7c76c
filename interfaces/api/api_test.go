package api_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/dbbuilder/sqlmcp-saas-sub003/interfaces/api"
)

func newEmbeddedServer(t *testing.T, opts ...api.Option) *api.Server {
	t.Helper()

	server, components, err := api.New(context.Background(), api.DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("api.New failed: %v", err)
	}
	t.Cleanup(func() {
		if err := components.Close(); err != nil {
			t.Errorf("closing components: %v", err)
		}
	})
	return server
}

func TestNew_AssemblesWorkingServer(t *testing.T) {
	server := newEmbeddedServer(t)

	resp := server.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"embedder","version":"1"}}}`))
	if resp == nil {
		t.Fatal("expected an initialize response")
	}
	if strings.Contains(string(resp), `"error"`) {
		t.Fatalf("initialize failed: %s", resp)
	}
	if !strings.Contains(string(resp), `"serverInfo"`) {
		t.Fatalf("initialize response missing serverInfo: %s", resp)
	}

	resp = server.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`))
	if !strings.Contains(string(resp), `"query"`) {
		t.Fatalf("tools/list missing query tool: %s", resp)
	}

	resp = server.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"query","arguments":{"statement":"SELECT * FROM customers"}}}`))
	if strings.Contains(string(resp), `"error"`) {
		t.Fatalf("query call failed: %s", resp)
	}
	if !strings.Contains(string(resp), `"row_count"`) {
		t.Fatalf("query response missing row count: %s", resp)
	}
}

func TestNew_WithServerVersion(t *testing.T) {
	server := newEmbeddedServer(t, api.WithServerVersion("9.9.9-test"))

	resp := server.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`))
	if !strings.Contains(string(resp), "9.9.9-test") {
		t.Fatalf("initialize response missing injected version: %s", resp)
	}
}

func TestNew_WithMiddleware(t *testing.T) {
	var seen []string
	capture := func(next api.Handler) api.Handler {
		return func(ctx context.Context, call *api.Call) (any, error) {
			seen = append(seen, call.Tool)
			return next(ctx, call)
		}
	}

	server := newEmbeddedServer(t, api.WithMiddleware(capture))

	server.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`))
	server.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"schema","arguments":{}}}`))

	if len(seen) != 1 || seen[0] != "schema" {
		t.Fatalf("middleware should observe the schema call, saw %v", seen)
	}
}

func TestNew_InvalidPolicy(t *testing.T) {
	cfg := api.DefaultConfig()
	cfg.Policy.BlockedKeywords = nil

	if _, _, err := api.New(context.Background(), cfg); err == nil {
		t.Fatal("a policy without blocked keywords should fail assembly")
	}
}

func TestBuildMiddleware_FollowsConfig(t *testing.T) {
	cfg := api.DefaultConfig()
	cfg.RateLimit.Enabled = false
	cfg.Telemetry.Enabled = false

	if got := len(api.BuildMiddleware(cfg, nil)); got != 1 {
		t.Errorf("expected logging only, got %d middlewares", got)
	}

	cfg.RateLimit.Enabled = true
	if got := len(api.BuildMiddleware(cfg, nil)); got != 2 {
		t.Errorf("expected rate limit and logging, got %d middlewares", got)
	}

	cfg.Telemetry.Enabled = true
	if got := len(api.BuildMiddleware(cfg, api.NoopMetrics())); got != 4 {
		t.Errorf("expected full chain, got %d middlewares", got)
	}
}

func TestChainMiddleware_ExecutionOrder(t *testing.T) {
	var order []string
	tag := func(name string) api.Middleware {
		return func(next api.Handler) api.Handler {
			return func(ctx context.Context, call *api.Call) (any, error) {
				order = append(order, name)
				return next(ctx, call)
			}
		}
	}

	handler := api.ChainMiddleware(tag("outer"), tag("inner"))(func(ctx context.Context, call *api.Call) (any, error) {
		order = append(order, "handler")
		return nil, nil
	})

	if _, err := handler(context.Background(), &api.Call{Tool: "query", Arguments: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("chained handler failed: %v", err)
	}

	want := []string{"outer", "inner", "handler"}
	for i, name := range want {
		if order[i] != name {
			t.Fatalf("execution order = %v, want %v", order, want)
		}
	}
}

func TestNewTelemetryProvider_Disabled(t *testing.T) {
	cfg := api.DefaultConfig()
	cfg.Telemetry.Enabled = false

	provider, err := api.NewTelemetryProvider(cfg)
	if err != nil {
		t.Fatalf("NewTelemetryProvider failed: %v", err)
	}
	if provider.Enabled() {
		t.Error("disabled telemetry should produce a no-op provider")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("no-op provider shutdown failed: %v", err)
	}
}

func TestNewTelemetryProvider_UnknownExporter(t *testing.T) {
	cfg := api.DefaultConfig()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Exporter = "morse"

	if _, err := api.NewTelemetryProvider(cfg); err == nil {
		t.Fatal("unknown exporter should fail")
	}
}

// Package main demonstrates serving the gateway over HTTP.
// Requests go to POST /rpc as JSON-RPC 2.0 frames; GET /healthz reports
// liveness. The server runs until interrupted.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/logging"
	"github.com/dbbuilder/sqlmcp-saas-sub003/interfaces/api"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Init(logging.Config{Level: "info", Format: "console"})

	// Defaults with the transport switched to HTTP. A real deployment
	// loads a document instead: api.NewConfigLoader().LoadFile(path).
	cfg := api.DefaultConfig()
	cfg.Server.Transport = "http"
	cfg.Server.HTTPAddr = ":8080"

	server, components, err := api.New(ctx, cfg)
	if err != nil {
		log.Fatalf("assembling gateway: %v", err)
	}
	defer components.Close()

	// Try it:
	//   curl -s localhost:8080/healthz
	//   curl -s localhost:8080/rpc -d '{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}'
	httpServer := api.NewHTTP(server, api.HTTPConfig{Address: cfg.Server.HTTPAddr})
	if err := httpServer.Run(ctx); err != nil {
		log.Fatalf("serving: %v", err)
	}
}

// Package main demonstrates the absolute minimum working gateway.
// It assembles the built-in defaults, performs the protocol handshake,
// and runs one guarded query against the in-memory demo database.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/dbbuilder/sqlmcp-saas-sub003/interfaces/api"
)

func main() {
	ctx := context.Background()

	// 1. Assemble a gateway from the built-in defaults: stdio transport,
	// in-memory stores and one demo database with sample rows.
	server, components, err := api.New(ctx, api.DefaultConfig())
	if err != nil {
		log.Fatalf("assembling gateway: %v", err)
	}
	defer components.Close()

	// 2. Perform the protocol handshake.
	resp := server.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"example","version":"0.1.0"}}}`))
	fmt.Printf("initialize: %s\n\n", resp)

	// 3. Run a query. The statement passes the safety validator, the
	// parameter sanitizer, and the resilience wrapper before it reaches
	// the database; the decision is recorded in the audit trail.
	resp = server.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"query","arguments":{"statement":"SELECT * FROM customers WHERE region = @Region","parameters":[{"name":"@Region","value":"west"}]}}}`))
	fmt.Printf("query: %s\n\n", resp)

	// 4. A blocked statement never reaches the database. The error code
	// 1001 identifies a validation failure; the audit trail records the
	// rejection with every reason.
	resp = server.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"query","arguments":{"statement":"DROP TABLE customers"}}}`))
	fmt.Printf("blocked: %s\n\n", resp)

	// 5. Inspect the trail through the protocol.
	resp = server.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"audit_search","arguments":{"page":1,"page_size":10}}}`))
	fmt.Printf("audit: %s\n", resp)
}

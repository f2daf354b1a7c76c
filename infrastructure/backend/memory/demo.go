package memory

import (
	"fmt"
	"strings"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/backend"
)

// NewDemo seeds a backend with a small order-management dataset and three
// stored procedures covering every security level.
func NewDemo(name string) *Backend {
	return New(name,
		WithTable(Table{
			Name:    "customers",
			Columns: []string{"id", "name", "email", "region"},
			Rows: [][]any{
				{1, "Acme Corp", "ops@acme.example", "west"},
				{2, "Globex", "it@globex.example", "east"},
				{3, "Initech", "admin@initech.example", "west"},
				{4, "Umbrella", "root@umbrella.example", "south"},
			},
		}),
		WithTable(Table{
			Name:    "orders",
			Columns: []string{"id", "customer_id", "status", "total"},
			Rows: [][]any{
				{100, 1, "shipped", 1250.00},
				{101, 1, "pending", 310.75},
				{102, 2, "shipped", 99.99},
				{103, 3, "cancelled", 42.00},
				{104, 4, "pending", 770.10},
			},
		}),
		WithProcedure(Procedure{
			Metadata: backend.ProcedureMetadata{
				QualifiedName: "dbo.usp_GetCustomer",
				Parameters: []backend.ProcedureParameter{
					{Name: "@CustomerID", DataType: "int", Required: true, Direction: backend.DirectionInput},
				},
				ReturnsResultSet: true,
				SecurityLevel:    "Standard",
			},
			Handler: getCustomerHandler,
		}),
		WithProcedure(Procedure{
			Metadata: backend.ProcedureMetadata{
				QualifiedName: "dbo.usp_ArchiveOrders",
				Parameters: []backend.ProcedureParameter{
					{Name: "@CutoffDate", DataType: "datetime", Required: true, Direction: backend.DirectionInput},
					{Name: "@Region", DataType: "nvarchar", Required: false, Direction: backend.DirectionInput, MaxLength: 32, DefaultValue: "all"},
				},
				SecurityLevel: "Elevated",
			},
			Result: &backend.ExecResult{RowsAffected: 3},
		}),
		WithProcedure(Procedure{
			Metadata: backend.ProcedureMetadata{
				QualifiedName: "dbo.usp_PurgeAuditHistory",
				Parameters: []backend.ProcedureParameter{
					{Name: "@OlderThanDays", DataType: "int", Required: true, Direction: backend.DirectionInput},
				},
				SecurityLevel: "Critical",
			},
			Result: &backend.ExecResult{RowsAffected: 12},
		}),
	)
}

// getCustomerHandler returns the customer row matching @CustomerID.
func getCustomerHandler(params []backend.Parameter) (*backend.ExecResult, error) {
	var wanted string
	for _, p := range params {
		if strings.EqualFold(strings.TrimPrefix(p.Name, "@"), "customerid") {
			wanted = fmt.Sprint(p.Value)
		}
	}

	result := &backend.ExecResult{
		Columns:      []string{"id", "name", "email", "region"},
		HasResultSet: true,
	}

	for _, row := range demoCustomers {
		if fmt.Sprint(row[0]) == wanted {
			result.Rows = append(result.Rows, row)
		}
	}

	return result, nil
}

// demoCustomers backs the usp_GetCustomer handler.
var demoCustomers = [][]any{
	{1, "Acme Corp", "ops@acme.example", "west"},
	{2, "Globex", "it@globex.example", "east"},
	{3, "Initech", "admin@initech.example", "west"},
	{4, "Umbrella", "root@umbrella.example", "south"},
}

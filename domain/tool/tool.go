package tool

import (
	"context"
	"encoding/json"
)

// Tool is one entry in the gateway's catalog.
type Tool interface {
	// Name returns the stable string identifier for the tool.
	Name() string

	// Description returns a human-readable description of what the tool does.
	Description() string

	// InputSchema returns the JSON Schema describing the tool's arguments.
	InputSchema() Schema

	// Annotations returns the tool's behavioral annotations.
	Annotations() Annotations

	// Execute runs the tool with the given arguments.
	Execute(ctx context.Context, args json.RawMessage) (Result, error)
}

// Handler is the function signature for tool execution.
type Handler func(ctx context.Context, args json.RawMessage) (Result, error)

// Definition is a concrete implementation of Tool.
type Definition struct {
	name        string
	description string
	inputSchema Schema
	annotations Annotations
	handler     Handler
}

// Name returns the tool name.
func (d *Definition) Name() string {
	return d.name
}

// Description returns the tool description.
func (d *Definition) Description() string {
	return d.description
}

// InputSchema returns the argument schema.
func (d *Definition) InputSchema() Schema {
	return d.inputSchema
}

// Annotations returns the tool annotations.
func (d *Definition) Annotations() Annotations {
	return d.annotations
}

// Execute validates the arguments against the schema and runs the handler.
func (d *Definition) Execute(ctx context.Context, args json.RawMessage) (Result, error) {
	if d.handler == nil {
		return Result{}, ErrNoHandler
	}
	if err := d.inputSchema.Validate(args); err != nil {
		return Result{}, err
	}
	return d.handler(ctx, args)
}

// Builder provides a fluent API for constructing catalog entries.
type Builder struct {
	def *Definition
}

// NewBuilder creates a new tool builder with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{
		def: &Definition{
			name:        name,
			annotations: DefaultAnnotations(),
		},
	}
}

// WithDescription sets the tool description.
func (b *Builder) WithDescription(desc string) *Builder {
	b.def.description = desc
	return b
}

// WithInputSchema sets the argument schema.
func (b *Builder) WithInputSchema(schema Schema) *Builder {
	b.def.inputSchema = schema
	return b
}

// ReadOnly marks the tool as side-effect free.
func (b *Builder) ReadOnly() *Builder {
	b.def.annotations.ReadOnly = true
	b.def.annotations.RiskLevel = RiskNone
	return b
}

// Destructive marks the tool as destructive, which forces approval routing.
func (b *Builder) Destructive() *Builder {
	b.def.annotations.Destructive = true
	b.def.annotations.RequiresApproval = true
	if b.def.annotations.RiskLevel < RiskHigh {
		b.def.annotations.RiskLevel = RiskHigh
	}
	return b
}

// Idempotent marks the tool as safe to retry.
func (b *Builder) Idempotent() *Builder {
	b.def.annotations.Idempotent = true
	return b
}

// WithRiskLevel sets the risk level.
func (b *Builder) WithRiskLevel(level RiskLevel) *Builder {
	b.def.annotations.RiskLevel = level
	return b
}

// RequiresApproval marks the tool as requiring operator approval.
func (b *Builder) RequiresApproval() *Builder {
	b.def.annotations.RequiresApproval = true
	return b
}

// WithHandler sets the tool handler function.
func (b *Builder) WithHandler(handler Handler) *Builder {
	b.def.handler = handler
	return b
}

// Build constructs the tool definition.
func (b *Builder) Build() (Tool, error) {
	if b.def.name == "" {
		return nil, ErrEmptyName
	}
	if b.def.handler == nil {
		return nil, ErrNoHandler
	}
	return b.def, nil
}

// MustBuild constructs the tool definition or panics on error. It is meant
// for static catalogs assembled at startup.
func (b *Builder) MustBuild() Tool {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}

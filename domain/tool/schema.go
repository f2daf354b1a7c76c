package tool

import (
	"encoding/json"
	"fmt"
)

// Schema wraps the JSON Schema describing a tool's arguments.
type Schema struct {
	raw json.RawMessage
}

// NewSchema creates a schema from raw JSON.
func NewSchema(raw json.RawMessage) Schema {
	return Schema{raw: raw}
}

// EmptySchema returns a schema that accepts any arguments.
func EmptySchema() Schema {
	return Schema{raw: json.RawMessage(`{}`)}
}

// ObjectSchema returns a schema for an object with the given properties.
// The required list is preserved in order; Validate reports the first
// missing field in that order.
func ObjectSchema(properties map[string]json.RawMessage, required []string) Schema {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	raw, _ := json.Marshal(schema)
	return Schema{raw: raw}
}

// StringProperty returns a string-typed property schema.
func StringProperty(description string) json.RawMessage {
	return propertySchema("string", description)
}

// IntegerProperty returns an integer-typed property schema.
func IntegerProperty(description string) json.RawMessage {
	return propertySchema("integer", description)
}

// BooleanProperty returns a boolean-typed property schema.
func BooleanProperty(description string) json.RawMessage {
	return propertySchema("boolean", description)
}

// ArrayProperty returns an array-typed property schema whose items follow
// the given schema.
func ArrayProperty(description string, items json.RawMessage) json.RawMessage {
	raw, _ := json.Marshal(map[string]any{
		"type":        "array",
		"description": description,
		"items":       items,
	})
	return raw
}

func propertySchema(typ, description string) json.RawMessage {
	raw, _ := json.Marshal(map[string]any{
		"type":        typ,
		"description": description,
	})
	return raw
}

// Raw returns the underlying JSON schema.
func (s Schema) Raw() json.RawMessage {
	return s.raw
}

// IsEmpty returns true if the schema is empty or nil.
func (s Schema) IsEmpty() bool {
	return len(s.raw) == 0 || string(s.raw) == "{}" || string(s.raw) == "null"
}

// Required returns the schema's required field names in declaration order.
func (s Schema) Required() []string {
	var envelope struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(s.raw, &envelope); err != nil {
		return nil
	}
	return envelope.Required
}

// Validate checks the arguments against the schema. A required field that
// is absent or JSON null yields a MissingArgumentError naming that field.
func (s Schema) Validate(args json.RawMessage) error {
	if s.IsEmpty() {
		return nil
	}
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(args, &fields); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	for _, name := range s.Required() {
		v, ok := fields[name]
		if !ok || string(v) == "null" {
			return &MissingArgumentError{Field: name}
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s Schema) MarshalJSON() ([]byte, error) {
	if s.raw == nil {
		return []byte("{}"), nil
	}
	return s.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Schema) UnmarshalJSON(data []byte) error {
	s.raw = data
	return nil
}

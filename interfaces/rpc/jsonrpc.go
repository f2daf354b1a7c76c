// Package rpc implements the JSON-RPC 2.0 protocol surface of the
// gateway: the wire envelope, the method dispatcher, and the stdio and
// HTTP transports that feed it.
package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the JSON-RPC protocol version accepted on every frame.
const Version = "2.0"

// Envelope-level error codes defined by JSON-RPC 2.0. Tool failures use
// the application code range carried by the fault taxonomy; -32603 stays
// reserved for internal failures whose detail must not leave the process.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Envelope parse errors.
var (
	ErrInvalidJSON    = errors.New("rpc: invalid JSON")
	ErrInvalidVersion = errors.New("rpc: version must be 2.0")
)

// Message is one JSON-RPC 2.0 frame. A request carries method and id, a
// notification carries method without id, and a response carries result
// or error together with the id it answers.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject is the JSON-RPC 2.0 error member.
type ErrorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *ErrorObject) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// MessageType classifies a frame by the fields it carries.
type MessageType int

const (
	TypeUnknown MessageType = iota
	TypeRequest
	TypeNotification
	TypeResponse
)

// String returns the lowercase name of the message type.
func (t MessageType) String() string {
	switch t {
	case TypeRequest:
		return "request"
	case TypeNotification:
		return "notification"
	case TypeResponse:
		return "response"
	default:
		return "unknown"
	}
}

// Type reports what kind of frame this is. A null id counts as absent, so
// a method with a null id classifies as a notification.
func (m *Message) Type() MessageType {
	hasMethod := m.Method != ""
	hasID := len(m.ID) > 0 && string(m.ID) != "null"

	if len(m.Result) > 0 || m.Error != nil {
		return TypeResponse
	}
	if hasMethod && hasID {
		return TypeRequest
	}
	if hasMethod {
		return TypeNotification
	}
	return TypeUnknown
}

// Parse decodes and validates one frame. Malformed JSON yields
// ErrInvalidJSON; any version other than "2.0" yields ErrInvalidVersion.
func Parse(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if msg.JSONRPC != Version {
		return nil, ErrInvalidVersion
	}
	return &msg, nil
}

// newResult builds a success response for the given request id.
func newResult(id json.RawMessage, result any) (*Message, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return &Message{JSONRPC: Version, ID: id, Result: raw}, nil
}

// newError builds an error response. A nil id is rendered as JSON null,
// which the protocol requires when the request id was undetectable.
func newError(id json.RawMessage, code int, message string, data any) *Message {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	obj := &ErrorObject{Code: code, Message: message}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			obj.Data = raw
		}
	}
	return &Message{JSONRPC: Version, ID: id, Error: obj}
}

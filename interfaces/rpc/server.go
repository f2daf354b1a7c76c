package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	sqlmcp "github.com/dbbuilder/sqlmcp-saas-sub003"
	"github.com/dbbuilder/sqlmcp-saas-sub003/application/gateway"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/audit"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/fault"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/middleware"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/tool"
	"github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/logging"
	storagememory "github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/storage/memory"
)

// ProtocolVersion is the negotiated protocol revision returned from
// initialize.
const ProtocolVersion = "2024-11-05"

// Methods the dispatcher understands. The initialized notification is
// accepted both bare and under the notifications/ prefix that clients
// commonly send.
const (
	methodInitialize      = "initialize"
	methodInitialized     = "initialized"
	methodInitializedFull = "notifications/initialized"
	methodPing            = "ping"
	methodListTools       = "tools/list"
	methodCallTool        = "tools/call"
)

// Config wires a Server.
type Config struct {
	// Gateway supplies the tool catalog and execution pipeline. Required.
	Gateway *gateway.Gateway

	// Registry overrides the catalog registry. When nil the gateway's
	// catalog is registered into a fresh in-memory registry.
	Registry tool.Registry

	// Middleware wraps every tools/call dispatch, outermost first.
	Middleware []middleware.Middleware

	// Name and Version identify the server during the handshake. They
	// default to the binary's identity.
	Name    string
	Version string

	// Instructions is optional usage guidance surfaced to clients.
	Instructions string
}

// Server dispatches JSON-RPC requests to the gateway's tool catalog. It
// is transport-agnostic: stdio and HTTP both feed frames through Handle.
type Server struct {
	registry     tool.Registry
	handler      middleware.Handler
	name         string
	version      string
	instructions string

	mu     sync.RWMutex
	ready  bool
	client clientInfo
}

// New creates a dispatcher over the gateway's catalog.
func New(cfg Config) (*Server, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("gateway is required")
	}

	reg := cfg.Registry
	if reg == nil {
		reg = storagememory.NewToolRegistry()
		if err := cfg.Gateway.Register(reg); err != nil {
			return nil, fmt.Errorf("register catalog: %w", err)
		}
	}

	name := cfg.Name
	if name == "" {
		name = "sqlmcp"
	}
	version := cfg.Version
	if version == "" {
		version = sqlmcp.Version
	}

	s := &Server{
		registry:     reg,
		name:         name,
		version:      version,
		instructions: cfg.Instructions,
	}
	s.handler = middleware.Chain(cfg.Middleware...)(s.execute)
	return s, nil
}

// Handshake and result DTOs.

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeParams struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ClientInfo      clientInfo `json:"clientInfo"`
}

type initializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    capabilities `json:"capabilities"`
	ServerInfo      clientInfo   `json:"serverInfo"`
	Instructions    string       `json:"instructions,omitempty"`
}

type capabilities struct {
	Tools toolsCapability `json:"tools"`
}

type toolsCapability struct{}

type toolEntry struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	InputSchema tool.Schema      `json:"inputSchema"`
	Annotations tool.Annotations `json:"annotations"`
}

type listToolsResult struct {
	Tools []toolEntry `json:"tools"`
}

type callToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type callMeta struct {
	CorrelationID string   `json:"correlation_id,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
	DurationMS    int64    `json:"duration_ms,omitempty"`
}

type callToolResult struct {
	Content []contentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
	Meta    *callMeta     `json:"_meta,omitempty"`
}

// errorData rides the JSON-RPC error object so callers can join the
// failure to its audit records.
type errorData struct {
	Kind          string            `json:"kind,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
}

// Handle processes one raw frame and returns the serialized response, or
// nil when the frame needs no reply (notifications and stray responses).
func (s *Server) Handle(ctx context.Context, data []byte) []byte {
	frame := bytes.TrimSpace(data)
	if len(frame) > 0 && frame[0] == '[' {
		return encode(newError(nil, CodeInvalidRequest, "batch requests are not supported", nil))
	}

	msg, err := Parse(frame)
	if err != nil {
		code := CodeInvalidRequest
		if errors.Is(err, ErrInvalidJSON) {
			code = CodeParseError
		}
		return encode(newError(nil, code, err.Error(), nil))
	}

	switch msg.Type() {
	case TypeRequest:
		return encode(s.dispatch(ctx, msg))
	case TypeNotification:
		s.notify(msg)
		return nil
	case TypeResponse:
		// The server issues no client-bound requests, so responses have
		// nothing to pair with.
		return nil
	default:
		return encode(newError(msg.ID, CodeInvalidRequest, "frame is neither request nor notification", nil))
	}
}

func (s *Server) dispatch(ctx context.Context, msg *Message) *Message {
	switch msg.Method {
	case methodInitialize:
		return s.initialize(msg)
	case methodPing:
		return s.result(msg.ID, struct{}{})
	case methodListTools:
		if resp := s.requireReady(msg.ID); resp != nil {
			return resp
		}
		return s.listTools(msg.ID)
	case methodCallTool:
		if resp := s.requireReady(msg.ID); resp != nil {
			return resp
		}
		return s.callTool(ctx, msg)
	default:
		return newError(msg.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", msg.Method), nil)
	}
}

func (s *Server) notify(msg *Message) {
	switch msg.Method {
	case methodInitialized, methodInitializedFull:
		s.mu.Lock()
		s.ready = true
		s.mu.Unlock()
		logging.Debug().Add(logging.Method(msg.Method)).Msg("client reports initialized")
	default:
		logging.Debug().Add(logging.Method(msg.Method)).Msg("ignoring notification")
	}
}

func (s *Server) initialize(msg *Message) *Message {
	var params initializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return newError(msg.ID, CodeInvalidParams, "malformed initialize params", nil)
		}
	}

	s.mu.Lock()
	s.ready = true
	if params.ClientInfo.Name != "" {
		s.client = params.ClientInfo
	}
	s.mu.Unlock()

	logging.Info().
		Add(logging.Str("client", params.ClientInfo.Name)).
		Add(logging.Str("client_version", params.ClientInfo.Version)).
		Add(logging.Str("requested_protocol", params.ProtocolVersion)).
		Msg("client initialized")

	return s.result(msg.ID, initializeResult{
		ProtocolVersion: ProtocolVersion,
		ServerInfo:      clientInfo{Name: s.name, Version: s.version},
		Instructions:    s.instructions,
	})
}

func (s *Server) listTools(id json.RawMessage) *Message {
	tools := s.registry.List()
	entries := make([]toolEntry, 0, len(tools))
	for _, t := range tools {
		entries = append(entries, toolEntry{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
			Annotations: t.Annotations(),
		})
	}
	return s.result(id, listToolsResult{Tools: entries})
}

func (s *Server) callTool(ctx context.Context, msg *Message) *Message {
	var params callToolParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return newError(msg.ID, CodeInvalidParams, "malformed tools/call params", nil)
	}
	if params.Name == "" {
		return newError(msg.ID, CodeInvalidParams, "tool name is required", nil)
	}

	correlationID := uuid.NewString()
	ctx = audit.ContextWithCorrelationID(ctx, correlationID)
	if session := s.sessionUser(); session != "" {
		ctx = gateway.ContextWithUser(ctx, session)
	}

	user, database := peekArgs(params.Arguments)
	if user == "" {
		user = s.sessionUser()
	}
	if user == "" {
		user = gateway.AnonymousUser
	}

	call := &middleware.Call{
		Tool:          params.Name,
		UserID:        user,
		Database:      database,
		Arguments:     params.Arguments,
		CorrelationID: correlationID,
	}

	out, err := s.handler(ctx, call)
	if err != nil {
		return s.errorResponse(msg.ID, correlationID, err)
	}
	res, ok := out.(tool.Result)
	if !ok {
		logging.Error().
			Add(logging.ToolName(call.Tool)).
			Add(logging.CorrelationID(correlationID)).
			Msg("handler returned unexpected result type")
		return newError(msg.ID, CodeInternalError, "internal error", errorData{CorrelationID: correlationID})
	}
	return s.result(msg.ID, toCallResult(res, correlationID))
}

// execute is the innermost handler under the middleware chain.
func (s *Server) execute(ctx context.Context, call *middleware.Call) (any, error) {
	t, ok := s.registry.Get(call.Tool)
	if !ok {
		return nil, fault.New(fault.KindProtocol, fmt.Sprintf("no tool named %q", call.Tool)).
			WithCorrelation(call.CorrelationID)
	}
	return t.Execute(ctx, call.Arguments)
}

func (s *Server) errorResponse(id json.RawMessage, correlationID string, err error) *Message {
	var missing *tool.MissingArgumentError
	if errors.As(err, &missing) || errors.Is(err, tool.ErrInvalidInput) {
		return newError(id, CodeInvalidParams, err.Error(), errorData{CorrelationID: correlationID})
	}

	var fe *fault.Error
	if errors.As(err, &fe) {
		correlation := fe.CorrelationID
		if correlation == "" {
			correlation = correlationID
		}
		return newError(id, fe.Kind.Code(), fe.Public(), errorData{
			Kind:          fe.Kind.String(),
			CorrelationID: correlation,
			Details:       fe.Data,
		})
	}

	// Unclassified failures are logged in full and cross the boundary
	// redacted.
	logging.Error().
		Add(logging.CorrelationID(correlationID)).
		Add(logging.ErrorField(err)).
		Msg("unclassified dispatch failure")
	return newError(id, CodeInternalError, "internal error", errorData{
		Kind:          fault.KindInternal.String(),
		CorrelationID: correlationID,
	})
}

func (s *Server) requireReady(id json.RawMessage) *Message {
	s.mu.RLock()
	ready := s.ready
	s.mu.RUnlock()
	if ready {
		return nil
	}
	return newError(id, CodeInvalidRequest, "server not initialized: call initialize first", nil)
}

func (s *Server) sessionUser() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client.Name
}

func (s *Server) result(id json.RawMessage, v any) *Message {
	msg, err := newResult(id, v)
	if err != nil {
		logging.Error().Add(logging.ErrorField(err)).Msg("encode response")
		return newError(id, CodeInternalError, "internal error", nil)
	}
	return msg
}

func toCallResult(res tool.Result, correlationID string) callToolResult {
	text := string(res.Output)
	if text == "" {
		text = "{}"
	}
	out := callToolResult{Content: []contentItem{{Type: "text", Text: text}}}
	out.Meta = &callMeta{
		CorrelationID: correlationID,
		Warnings:      res.Warnings,
		DurationMS:    res.Duration.Milliseconds(),
	}
	return out
}

// peekArgs lifts the caller identity and target database out of the raw
// arguments so middleware can label the call before it is decoded fully.
func peekArgs(raw json.RawMessage) (user, database string) {
	if len(raw) == 0 {
		return "", ""
	}
	var peek struct {
		User     string `json:"user"`
		Database string `json:"database"`
	}
	_ = json.Unmarshal(raw, &peek)
	return peek.User, peek.Database
}

func encode(msg *Message) []byte {
	raw, err := json.Marshal(msg)
	if err != nil {
		return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"internal error"}}`)
	}
	return raw
}

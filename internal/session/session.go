package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/loykin/termctl/internal/metrics"
	"github.com/loykin/termctl/internal/rpc"
	"github.com/loykin/termctl/internal/tools"
)

// Protocol identity returned from the handshake.
const (
	ProtocolVersion = "2024-11-05"
	ServerName      = "termctl"
	ServerVersion   = "0.1.0"
)

// State is the session lifecycle state. The only transition is
// Uninitialized -> Ready, taken exactly once on a successful handshake.
type State int

const (
	Uninitialized State = iota
	Ready
)

// Session is the request/response state machine sitting between the
// transport loop and the tool dispatcher. Every operation is a pure
// request->response transformation; nothing is pushed spontaneously.
type Session struct {
	state State
	disp  *tools.Dispatcher
	log   *slog.Logger
}

func New(disp *tools.Dispatcher) *Session {
	return &Session{disp: disp, log: slog.Default()}
}

// SetLogger replaces the session logger.
func (s *Session) SetLogger(l *slog.Logger) { s.log = l }

// State reports the current lifecycle state.
func (s *Session) State() State { return s.state }

// Handle processes one decoded request and always produces a response.
// Failures never escape as errors; they become error envelopes.
func (s *Session) Handle(ctx context.Context, req rpc.Request) rpc.Response {
	var resp rpc.Response
	switch req.Method {
	case "initialize":
		resp = s.handleInitialize(req)
	case "tools/list":
		resp = s.handleToolsList(req)
	case "tools/call":
		resp = s.handleToolsCall(ctx, req)
	default:
		resp = rpc.NewError(req.ID, rpc.CodeMethodNotFound, "Method not found: "+req.Method)
	}

	outcome := "ok"
	if resp.Error != nil {
		outcome = "error"
	}
	metrics.ObserveRequest(req.Method, outcome)
	return resp
}

type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"clientInfo"`
}

func (s *Session) handleInitialize(req rpc.Request) rpc.Response {
	var params initializeParams
	if len(req.Params) == 0 || json.Unmarshal(req.Params, &params) != nil ||
		params.ProtocolVersion == "" || params.ClientInfo.Name == "" {
		return rpc.NewError(req.ID, rpc.CodeInvalidParams, "Invalid initialize params")
	}

	s.state = Ready
	s.log.Info("session initialized",
		"client", params.ClientInfo.Name,
		"client_version", params.ClientInfo.Version,
		"protocol", params.ProtocolVersion)

	return rpc.NewResult(req.ID, map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities": map[string]any{
			"tools": s.disp.Tools(),
		},
		"serverInfo": map[string]any{
			"name":    ServerName,
			"version": ServerVersion,
		},
	})
}

func (s *Session) handleToolsList(req rpc.Request) rpc.Response {
	if s.state != Ready {
		return rpc.NewError(req.ID, rpc.CodeNotInitialized, "Server not initialized")
	}
	return rpc.NewResult(req.ID, map[string]any{"tools": s.disp.Tools()})
}

type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (s *Session) handleToolsCall(ctx context.Context, req rpc.Request) rpc.Response {
	if s.state != Ready {
		return rpc.NewError(req.ID, rpc.CodeNotInitialized, "Server not initialized")
	}
	if len(req.Params) == 0 {
		return rpc.NewError(req.ID, rpc.CodeInvalidParams, "Missing call parameters")
	}
	var params callParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return rpc.NewError(req.ID, rpc.CodeInvalidParams, "Malformed call parameters: "+err.Error())
	}
	if params.Name == "" {
		return rpc.NewError(req.ID, rpc.CodeInvalidParams, "Missing tool name")
	}

	result, err := s.disp.Call(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.Error("tool call failed", "tool", params.Name, "error", err)
		code := rpc.CodeInternalError
		if errors.Is(err, tools.ErrInvalidArguments) {
			code = rpc.CodeInvalidParams
		}
		return rpc.NewError(req.ID, code, err.Error())
	}

	return rpc.NewResult(req.ID, map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": result},
		},
	})
}

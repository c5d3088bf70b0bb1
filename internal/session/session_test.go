package session

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/termctl/internal/gateway/gatewaytest"
	"github.com/loykin/termctl/internal/nvim"
	"github.com/loykin/termctl/internal/registry"
	"github.com/loykin/termctl/internal/rpc"
	"github.com/loykin/termctl/internal/tools"
)

func newTestSession(t *testing.T) (*Session, *gatewaytest.Fake) {
	t.Helper()
	f := gatewaytest.New()
	r := registry.New(f.Gateway(), registry.Options{SpawnDelay: 1})
	return New(tools.NewDispatcher(r, f.Gateway(), nvim.NewExtractor(f))), f
}

func request(id, method, params string) rpc.Request {
	req := rpc.Request{JSONRPC: rpc.Version, Method: method}
	if id != "" {
		req.ID = json.RawMessage(id)
	}
	if params != "" {
		req.Params = json.RawMessage(params)
	}
	return req
}

func initialize(t *testing.T, s *Session) rpc.Response {
	t.Helper()
	resp := s.Handle(context.Background(), request("1", "initialize",
		`{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test-client","version":"1.0"}}`))
	require.Nil(t, resp.Error)
	return resp
}

func TestInitializeHandshake(t *testing.T) {
	s, _ := newTestSession(t)
	require.Equal(t, Uninitialized, s.State())

	resp := initialize(t, s)
	assert.Equal(t, Ready, s.State())

	body, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result struct {
		ProtocolVersion string `json:"protocolVersion"`
		Capabilities    struct {
			Tools []tools.Tool `json:"tools"`
		} `json:"capabilities"`
		ServerInfo struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"serverInfo"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, ProtocolVersion, result.ProtocolVersion)
	assert.Equal(t, ServerName, result.ServerInfo.Name)
	assert.Equal(t, ServerVersion, result.ServerInfo.Version)
	assert.Len(t, result.Capabilities.Tools, 5)
}

func TestInitializeRejectsBadParams(t *testing.T) {
	cases := map[string]string{
		"no params":        "",
		"empty object":     `{}`,
		"missing client":   `{"protocolVersion":"2024-11-05"}`,
		"nameless client":  `{"protocolVersion":"2024-11-05","clientInfo":{"version":"1.0"}}`,
		"missing protocol": `{"clientInfo":{"name":"c"}}`,
	}
	for name, params := range cases {
		t.Run(name, func(t *testing.T) {
			s, _ := newTestSession(t)
			resp := s.Handle(context.Background(), request("1", "initialize", params))
			require.NotNil(t, resp.Error)
			assert.Equal(t, rpc.CodeInvalidParams, resp.Error.Code)
			assert.Equal(t, "Invalid initialize params", resp.Error.Message)
			assert.Equal(t, Uninitialized, s.State(), "failed handshake must not transition")
		})
	}
}

func TestOperationsGatedUntilInitialized(t *testing.T) {
	s, _ := newTestSession(t)

	for _, method := range []string{"tools/list", "tools/call"} {
		resp := s.Handle(context.Background(), request("2", method, `{"name":"list_instances"}`))
		require.NotNil(t, resp.Error, method)
		assert.Equal(t, rpc.CodeNotInitialized, resp.Error.Code)
		assert.Equal(t, "Server not initialized", resp.Error.Message)
	}
}

func TestUnknownMethodRegardlessOfState(t *testing.T) {
	s, _ := newTestSession(t)

	resp := s.Handle(context.Background(), request("3", "resources/list", ""))
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeMethodNotFound, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "resources/list")

	initialize(t, s)
	resp = s.Handle(context.Background(), request("4", "resources/list", ""))
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeMethodNotFound, resp.Error.Code)
}

func TestToolsListAfterHandshake(t *testing.T) {
	s, _ := newTestSession(t)
	initialize(t, s)

	resp := s.Handle(context.Background(), request("2", "tools/list", ""))
	require.Nil(t, resp.Error)

	body, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result struct {
		Tools []tools.Tool `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	require.Len(t, result.Tools, 5)
	assert.Equal(t, "list_instances", result.Tools[0].Name)
	assert.Equal(t, "object", result.Tools[0].InputSchema.Type)
}

func TestToolsCallParamChecks(t *testing.T) {
	s, _ := newTestSession(t)
	initialize(t, s)

	cases := map[string]struct {
		params  string
		message string
	}{
		"absent":    {"", "Missing call parameters"},
		"malformed": {`{"name":`, "Malformed call parameters"},
		"unnamed":   {`{"arguments":{}}`, "Missing tool name"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			resp := s.Handle(context.Background(), request("5", "tools/call", tc.params))
			require.NotNil(t, resp.Error)
			assert.Equal(t, rpc.CodeInvalidParams, resp.Error.Code)
			assert.Contains(t, resp.Error.Message, tc.message)
		})
	}
}

func TestToolsCallErrorMapping(t *testing.T) {
	s, _ := newTestSession(t)
	initialize(t, s)

	// Schema violation maps to invalid params.
	resp := s.Handle(context.Background(), request("6", "tools/call", `{"name":"send_keys","arguments":{}}`))
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeInvalidParams, resp.Error.Code)

	// A domain failure (unknown instance) maps to internal error.
	resp = s.Handle(context.Background(), request("7", "tools/call",
		`{"name":"send_keys","arguments":{"instance_id":"ghost","keys":"ls"}}`))
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeInternalError, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "ghost")
}

func TestHandshakeThenSpawnThenList(t *testing.T) {
	s, _ := newTestSession(t)
	initialize(t, s)

	resp := s.Handle(context.Background(), request("2", "tools/call", `{"name":"list_instances"}`))
	require.Nil(t, resp.Error)
	assert.Contains(t, resultText(t, resp), "Found 0 terminal instances:")

	resp = s.Handle(context.Background(), request("3", "tools/call",
		`{"name":"spawn_instance","arguments":{"title":"t1"}}`))
	require.Nil(t, resp.Error)
	assert.Contains(t, resultText(t, resp), `"title": "t1"`)

	resp = s.Handle(context.Background(), request("4", "tools/call", `{"name":"list_instances"}`))
	require.Nil(t, resp.Error)
	text := resultText(t, resp)
	assert.Contains(t, text, "Found 1 terminal instances:")
	assert.Contains(t, text, `"title": "t1"`)
}

func resultText(t *testing.T, resp rpc.Response) string {
	t.Helper()
	body, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	require.Len(t, result.Content, 1)
	require.Equal(t, "text", result.Content[0].Type)
	return result.Content[0].Text
}

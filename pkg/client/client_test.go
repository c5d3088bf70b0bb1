package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedPeer answers every request line with respond(id, method).
func scriptedPeer(t *testing.T, respond func(id json.RawMessage, method string) string) *Client {
	t.Helper()
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()

	go func() {
		defer func() { _ = respW.Close() }()
		sc := bufio.NewScanner(reqR)
		for sc.Scan() {
			var req struct {
				Method string          `json:"method"`
				ID     json.RawMessage `json:"id"`
			}
			if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
				return
			}
			if _, err := fmt.Fprintln(respW, respond(req.ID, req.Method)); err != nil {
				return
			}
		}
	}()
	t.Cleanup(func() { _ = reqW.Close() })

	return New(reqW, respR)
}

func TestCallToolParsesContent(t *testing.T) {
	c := scriptedPeer(t, func(id json.RawMessage, _ string) string {
		return fmt.Sprintf(`{"jsonrpc":"2.0","id":%s,"result":{"content":[{"type":"text","text":"hello"}]}}`, id)
	})

	out, err := c.CallTool(context.Background(), "list_instances", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestErrorResponseBecomesRPCError(t *testing.T) {
	c := scriptedPeer(t, func(id json.RawMessage, _ string) string {
		return fmt.Sprintf(`{"jsonrpc":"2.0","id":%s,"error":{"code":-32002,"message":"Server not initialized"}}`, id)
	})

	_, err := c.ListTools(context.Background())
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32002, rpcErr.Code)
	assert.Contains(t, rpcErr.Error(), "Server not initialized")
}

func TestMismatchedResponseID(t *testing.T) {
	c := scriptedPeer(t, func(json.RawMessage, string) string {
		return `{"jsonrpc":"2.0","id":999,"result":{}}`
	})

	_, err := c.ListTools(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestPeerGoneReturnsUnexpectedEOF(t *testing.T) {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	_ = respW.Close()
	go func() { _, _ = io.Copy(io.Discard, reqR) }()
	t.Cleanup(func() { _ = reqW.Close() })

	c := New(reqW, respR)
	_, err := c.ListTools(context.Background())
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(io.Discard, iotestEmpty{})
	_, err := c.ListTools(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

type iotestEmpty struct{}

func (iotestEmpty) Read([]byte) (int, error) { return 0, io.EOF }

package rpc

import "encoding/json"

// JSON-RPC 2.0 framing for the line-oriented control protocol.
// One request per line in, one response per line out.

const Version = "2.0"

// Error codes used by the protocol. The negative five-digit codes follow the
// JSON-RPC convention; -32002 is the server-defined "not initialized" code.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotInitialized = -32002
)

// Request is a decoded protocol request. Params and ID are kept raw so the
// session layer decides how to interpret them; ID round-trips verbatim into
// the response (including JSON null).
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// Response carries exactly one of Result or Error.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// NewResult builds a success response for the given request id.
func NewResult(id json.RawMessage, result any) Response {
	return Response{JSONRPC: Version, Result: result, ID: normalizeID(id)}
}

// NewError builds an error response for the given request id.
func NewError(id json.RawMessage, code int, message string) Response {
	return Response{JSONRPC: Version, Error: &Error{Code: code, Message: message}, ID: normalizeID(id)}
}

// normalizeID maps an absent id to explicit JSON null so the response always
// carries an id field the client can correlate on.
func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

// Decode parses a single request line. The caller maps a failure to a
// ParseError response with a null id.
func Decode(line []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Encode renders a response as a single line without a trailing newline.
func Encode(resp Response) ([]byte, error) {
	return json.Marshal(resp)
}

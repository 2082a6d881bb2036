package graph

import "fmt"

// JSON-RPC canonical error codes per spec.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Implementation-defined codes emitted by the graph tool server.
const (
	CodeToolExecution     = -32000
	CodeUnknownTool       = -32001
	CodeInvalidToolParams = -32002
	CodeGraphUnavailable  = -32003
	CodeRateLimited       = -32004
)

// ErrorKind classifies a failed tool call.
type ErrorKind string

const (
	// ErrTransport covers connection failures, timeouts, and 5xx
	// responses that survived retries.
	ErrTransport ErrorKind = "transport"
	// ErrAuth covers 401 and 403 responses. Never retried.
	ErrAuth ErrorKind = "auth"
	// ErrRPC covers JSON-RPC error objects returned by the server.
	ErrRPC ErrorKind = "rpc"
	// ErrParse covers malformed response bodies and undecodable payloads.
	ErrParse ErrorKind = "parse"
)

// CallError is the structured failure of a single tool call.
type CallError struct {
	Kind    ErrorKind
	Tool    string
	Code    int // JSON-RPC error code when Kind is ErrRPC
	Message string
	Err     error
}

func (e *CallError) Error() string {
	if e.Kind == ErrRPC {
		return fmt.Sprintf("tool %s: %s error %d: %s", e.Tool, e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("tool %s: %s error: %s", e.Tool, e.Kind, e.Message)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

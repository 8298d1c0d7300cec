package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const jsonrpcVersion = "2.0"

// Reference: https://www.jsonrpc.org/specification#error_object
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// Reference: https://github.com/solana-labs/solana/blob/71e9958e061493d7545bd28d4ac7a85aaed6ffbb/client/src/rpc_custom_error.rs#L12
	CodeSendTransactionPreflightFailure = -32002

	CodeRateLimited = 429
)

// Error is a JSON-RPC error object
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

func newError(code int, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func invalidParams(format string, args ...interface{}) *Error {
	return newError(CodeInvalidParams, format, args...)
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// params are the positional parameters of a call
type params []json.RawMessage

func parseParams(raw json.RawMessage) (params, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var p params
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, invalidParams("params must be an array")
	}
	return p, nil
}

// required decodes the i'th parameter into out
func (p params) required(i int, name string, out interface{}) error {
	if i >= len(p) {
		return invalidParams("missing %s", name)
	}
	if err := json.Unmarshal(p[i], out); err != nil {
		return invalidParams("invalid %s: %v", name, err)
	}
	return nil
}

// optional decodes the i'th parameter into out if present
func (p params) optional(i int, name string, out interface{}) error {
	if i >= len(p) || bytes.Equal(bytes.TrimSpace(p[i]), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(p[i], out); err != nil {
		return invalidParams("invalid %s: %v", name, err)
	}
	return nil
}

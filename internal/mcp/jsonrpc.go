// Package mcp exposes the engagement engine to AI assistants over the
// Model Context Protocol (JSON-RPC 2.0 on Streamable HTTP).
//
// Every tool and resource maps onto one tracker operation, so an assistant
// sees the same state as the CLI and the REST API.
package mcp

import (
	"encoding/json"
	"fmt"
)

// ─── JSON-RPC 2.0 ──────────────────────────────────────────────────────────

// JSONRPCVersion is the only valid JSON-RPC version string.
const JSONRPCVersion = "2.0"

// Request is a JSON-RPC 2.0 request. A nil ID marks a notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

func newError(id any, code int, format string, args ...any) Response {
	return Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   &RPCError{Code: code, Message: fmt.Sprintf(format, args...)},
	}
}

// newResult marshals result into a success response.
func newResult(id any, result any) Response {
	data, err := json.Marshal(result)
	if err != nil {
		return newError(id, CodeInternalError, "Internal error: marshal result: %v", err)
	}
	return Response{JSONRPC: JSONRPCVersion, ID: id, Result: data}
}

// ParseRequest decodes raw into a Request, or returns the error response
// to send back.
func ParseRequest(raw []byte) (Request, *Response) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		resp := newError(nil, CodeParseError, "Parse error")
		return Request{}, &resp
	}
	if req.JSONRPC != JSONRPCVersion || req.Method == "" {
		resp := newError(req.ID, CodeInvalidRequest, "Invalid Request")
		return Request{}, &resp
	}
	return req, nil
}

// ─── MCP Schema Types ───────────────────────────────────────────────────────

// Tool is an MCP tool definition.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema is the JSON Schema for a tool's arguments.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property is one argument in an InputSchema.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`
}

// Resource is an MCP resource definition.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MimeType    string `json:"mimeType"`
}

// ResourceContent is one block returned by resources/read.
type ResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

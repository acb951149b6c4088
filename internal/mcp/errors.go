// Package mcp wires RequestFront to the Model Context Protocol SDK's
// stdio JSON-RPC transport: two tools, searchCode and openLocation, per
// spec.md §6.1.
package mcp

import (
	"fmt"

	"github.com/codivex/codivex/internal/front"
)

// MCPError is the MCP SDK's error shape: a JSON-RPC code plus message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

// MapError converts a RequestFront error (normally an *errors.KindError)
// to the JSON-RPC code table in spec.md §6.1.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}
	rpcErr := front.ToRPCError(err)
	return &MCPError{Code: rpcErr.Code, Message: rpcErr.Message}
}

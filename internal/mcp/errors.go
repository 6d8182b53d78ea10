// Package mcp exposes the message index to agent front-ends as Model Context
// Protocol tools.
package mcp

import (
	"context"
	"errors"
	"fmt"

	amerrors "github.com/Aman-CERP/swiftsearch/internal/errors"
)

// Custom MCP error codes.
const (
	// ErrCodeNotReady indicates the index has not finished bootstrapping.
	ErrCodeNotReady = -32001

	// ErrCodeSearchFailed indicates the engine rejected or failed the query.
	ErrCodeSearchFailed = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Sentinel errors for internal use.
var (
	// ErrNotReady indicates no index is loaded.
	ErrNotReady = errors.New("index not ready")

	// ErrToolNotFound indicates the requested tool does not exist.
	ErrToolNotFound = errors.New("tool not found")

	// ErrResourceNotFound indicates the requested resource does not exist.
	ErrResourceNotFound = errors.New("resource not found")
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}
	if se, ok := amerrors.As(err); ok {
		return mapSearchError(se)
	}

	switch {
	case errors.Is(err, ErrNotReady):
		return notReadyError()
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	case errors.Is(err, ErrToolNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: "Tool not found."}
	case errors.Is(err, ErrResourceNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: "Resource not found."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

func notReadyError() *MCPError {
	return &MCPError{
		Code:    ErrCodeNotReady,
		Message: "Index is not ready. Wait for initialSearch to finish, then retry.",
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// NewResourceNotFoundError creates an error for unknown resources.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Resource '%s' not found.", uri),
	}
}

// mapSearchError picks an MCP code from the domain error's code, then its
// category.
func mapSearchError(se *amerrors.SearchError) *MCPError {
	message := se.Message
	if se.Suggestion != "" {
		message = fmt.Sprintf("%s %s", se.Message, se.Suggestion)
	}

	switch se.Code {
	case amerrors.ErrCodeNotInitialized, amerrors.ErrCodeDestroyed:
		return &MCPError{Code: ErrCodeNotReady, Message: message}
	case amerrors.ErrCodeSearchFailed, amerrors.ErrCodeInvalidQuery:
		return &MCPError{Code: ErrCodeSearchFailed, Message: message}
	}

	switch se.Category {
	case amerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case amerrors.CategoryState:
		return &MCPError{Code: ErrCodeNotReady, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}

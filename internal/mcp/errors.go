// Package mcp exposes the pathmap solver as a Model Context Protocol server.
package mcp

import (
	"context"
	"errors"
	"fmt"

	perrors "github.com/Aman-CERP/pathmap/internal/errors"
)

// Custom MCP error codes for pathmap.
const (
	// ErrCodeStoreUnavailable indicates the graph store is locked or unreadable.
	ErrCodeStoreUnavailable = -32001

	// ErrCodeUpstreamFailed indicates the neighbor provider could not be reached.
	ErrCodeUpstreamFailed = -32002

	// ErrCodeTimeout indicates the request timed out or was cancelled.
	ErrCodeTimeout = -32003

	// ErrCodeSearchLimit indicates the search outgrew its frontier.
	ErrCodeSearchLimit = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
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

	var me *MCPError
	if errors.As(err, &me) {
		return me
	}

	var pe *perrors.MapError
	if errors.As(err, &pe) {
		return mapPathmapError(pe)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
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

func mapPathmapError(pe *perrors.MapError) *MCPError {
	message := pe.Message
	if pe.Suggestion != "" {
		message = fmt.Sprintf("%s %s", pe.Message, pe.Suggestion)
	}

	switch pe.Code {
	case perrors.ErrCodeSearchCancelled:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case perrors.ErrCodeFrontierExhausted:
		return &MCPError{Code: ErrCodeSearchLimit, Message: message}
	case perrors.ErrCodeFetchFailed, perrors.ErrCodeCircuitOpen:
		return &MCPError{Code: ErrCodeUpstreamFailed, Message: message}
	}

	switch pe.Category {
	case perrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case perrors.CategoryIO:
		return &MCPError{Code: ErrCodeStoreUnavailable, Message: message}
	case perrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeUpstreamFailed, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}

package types

import (
	"context"
)

// ContextKey is a type for the keys of values stored in the context
type ContextKey string

const (
	CtxRequestID  ContextKey = "ctx_request_id"
	CtxTerminalID ContextKey = "ctx_terminal_id"

	// DefaultTerminalID is used when no terminal identity is attached
	DefaultTerminalID = "terminal-01"
)

const (
	HeaderRequestID  = "X-Request-ID"
	HeaderTerminalID = "X-Terminal-ID"
)

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(CtxRequestID).(string); ok {
		return requestID
	}
	return ""
}

func GetTerminalID(ctx context.Context) string {
	if terminalID, ok := ctx.Value(CtxTerminalID).(string); ok {
		return terminalID
	}
	return DefaultTerminalID
}

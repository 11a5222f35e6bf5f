package middleware

import (
	"context"

	"github.com/giropos/fiscal/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func RequestIDMiddleware(c *gin.Context) {
	ctx := c.Request.Context()

	requestID := c.GetHeader(types.HeaderRequestID)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	ctx = context.WithValue(ctx, types.CtxRequestID, requestID)

	// The terminal identity ties log lines to the issuing POS device
	if terminalID := c.GetHeader(types.HeaderTerminalID); terminalID != "" {
		ctx = context.WithValue(ctx, types.CtxTerminalID, terminalID)
	}

	c.Request = c.Request.WithContext(ctx)
	c.Header(types.HeaderRequestID, requestID)

	c.Next()
}

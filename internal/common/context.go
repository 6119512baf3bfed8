package common

import (
	"context"
	"time"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeySellerID  contextKey = "seller_id"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithSellerID records which stored guide a request is scoped to
func WithSellerID(ctx context.Context, sellerID string) context.Context {
	return context.WithValue(ctx, ContextKeySellerID, sellerID)
}

// SellerIDFromContext extracts the seller (guide) ID from context
func SellerIDFromContext(ctx context.Context) string {
	if sellerID, ok := ctx.Value(ContextKeySellerID).(string); ok {
		return sellerID
	}
	return ""
}

// WithTimeout creates a context with the specified timeout; zero means no timeout.
func WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// TenantKey is the context key for tenant identifiers.
	TenantKey contextKey = "tenant_id"

	// UserKey is the context key for user identifiers.
	UserKey contextKey = "user_id"

	// CheckIDKey is the context key for compliance check ids.
	CheckIDKey contextKey = "check_id"
)

var contextKeys = []contextKey{RequestIDKey, TenantKey, UserKey, CheckIDKey}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithTenant adds a tenant identifier to the context.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, TenantKey, tenantID)
}

// WithUser adds a user identifier to the context.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserKey, userID)
}

// WithCheckID adds a compliance check id to the context.
func WithCheckID(ctx context.Context, checkID string) context.Context {
	return context.WithValue(ctx, CheckIDKey, checkID)
}

// GetTenant retrieves the tenant identifier from the context.
func GetTenant(ctx context.Context) string {
	return stringValue(ctx, TenantKey)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// contextAttrs extracts the known fields present in ctx.
func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	for _, key := range contextKeys {
		if v := stringValue(ctx, key); v != "" {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}
	return attrs
}

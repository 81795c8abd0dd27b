// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values from request headers; services and clients read
// them without importing net/http.
//
//	tenant := requestcontext.TenantID(ctx)
//	txn := requestcontext.TransactionID(ctx)
//	now := requestcontext.Now(ctx)
package requestcontext

import (
	"context"
	"time"
)

type (
	requestIDKey     struct{}
	transactionIDKey struct{}
	tenantIDKey      struct{}
	testModeKey      struct{}
	requestTimeKey   struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyRequestID     = requestIDKey{}
	ContextKeyTransactionID = transactionIDKey{}
	ContextKeyTenantID      = tenantIDKey{}
	ContextKeyTestMode      = testModeKey{}
	ContextKeyRequestTime   = requestTimeKey{}
)

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// TransactionID retrieves the caller supplied (or generated) transaction id.
// It is forwarded to every outbound call made on behalf of the request.
func TransactionID(ctx context.Context) string {
	if txn, ok := ctx.Value(ContextKeyTransactionID).(string); ok {
		return txn
	}
	return ""
}

// WithTransactionID injects a transaction id into the context.
func WithTransactionID(ctx context.Context, txn string) context.Context {
	return context.WithValue(ctx, ContextKeyTransactionID, txn)
}

// TenantID retrieves the tenant the request operates on.
func TenantID(ctx context.Context) string {
	if tenant, ok := ctx.Value(ContextKeyTenantID).(string); ok {
		return tenant
	}
	return ""
}

// WithTenantID injects a tenant id into the context.
func WithTenantID(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, ContextKeyTenantID, tenant)
}

// TestMode reports whether the request targets the test namespace.
func TestMode(ctx context.Context) bool {
	on, _ := ctx.Value(ContextKeyTestMode).(bool)
	return on
}

// WithTestMode marks the context as operating on the test namespace.
func WithTestMode(ctx context.Context, on bool) context.Context {
	return context.WithValue(ctx, ContextKeyTestMode, on)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (workers, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}

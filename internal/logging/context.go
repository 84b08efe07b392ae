package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// GenerateRequestID generates a new request ID
func GenerateRequestID() string {
	return uuid.NewString()
}

// WithRequestID stores a request ID in the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request ID carried by ctx, or ""
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// FromContext returns base enriched with the request ID carried by ctx
func FromContext(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	if id := RequestID(ctx); id != "" {
		return base.With().Str("request_id", id).Logger()
	}
	return base
}

// OrderContext scopes a logger to one order request
func OrderContext(l zerolog.Logger, symbol, side, orderType string) zerolog.Logger {
	return l.With().
		Str("symbol", symbol).
		Str("side", side).
		Str("order_type", orderType).
		Logger()
}

// BinanceAPIContext scopes a logger to one exchange call. Signatures and keys are
// never logged.
func BinanceAPIContext(l zerolog.Logger, method, endpoint string, params map[string]string) zerolog.Logger {
	ctx := l.With().Str("method", method).Str("endpoint", endpoint)
	for _, k := range []string{"symbol", "type", "orderId", "algoId", "origClientOrderId", "clientAlgoId"} {
		if v, ok := params[k]; ok && v != "" {
			ctx = ctx.Str(k, v)
		}
	}
	return ctx.Logger()
}

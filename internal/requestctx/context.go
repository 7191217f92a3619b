// Package requestctx holds request-scoped values set by HTTP middleware and
// read by services, without importing net/http.
package requestctx

import "context"

type (
	requestIDKey struct{}
	clientIPKey  struct{}
	userAgentKey struct{}
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey{}).(string)
	return v
}

func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentKey{}, ua)
}

func UserAgent(ctx context.Context) string {
	v, _ := ctx.Value(userAgentKey{}).(string)
	return v
}

// Metadata returns the non-empty request values keyed for audit storage.
func Metadata(ctx context.Context) map[string]interface{} {
	md := map[string]interface{}{}
	if v := RequestID(ctx); v != "" {
		md["request_id"] = v
	}
	if v := ClientIP(ctx); v != "" {
		md["ip"] = v
	}
	if v := UserAgent(ctx); v != "" {
		md["user_agent"] = v
	}
	return md
}

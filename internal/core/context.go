package core

import "context"

type contextKey string

const ctxKeyClientInfo contextKey = "client_info"

// ContextWithClientInfo adds the client identification (User-Agent) to context.
func ContextWithClientInfo(ctx context.Context, info string) context.Context {
	return context.WithValue(ctx, ctxKeyClientInfo, info)
}

// ClientInfoFromContext extracts the client identification from context.
func ClientInfoFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyClientInfo).(string); ok {
		return v
	}
	return ""
}

package core

import "context"

type contextKey string

const (
	ctxKeyClientIP contextKey = "client_ip"
	ctxKeyActor    contextKey = "actor"
)

// ContextWithClientIP adds the caller's IP address for import logging.
func ContextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyClientIP, ip)
}

// ContextWithActor adds the authenticated caller (API key name or CLI user).
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ctxKeyActor, actor)
}

// ClientIPFromContext returns the caller's IP address, or "".
func ClientIPFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyClientIP).(string); ok {
		return v
	}
	return ""
}

// ActorFromContext returns the authenticated caller, or "".
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyActor).(string); ok {
		return v
	}
	return ""
}

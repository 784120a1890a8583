package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/portfolio-import/internal/core"
	mw "github.com/JonMunkholm/portfolio-import/internal/web/middleware"
)

// withRequestMetadata copies the client IP and API key actor into ctx so the
// service can log who ran an import.
func withRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithClientIP(ctx, clientIP(r))
	if actor := mw.ActorFromRequest(r); actor != "" {
		ctx = core.ContextWithActor(ctx, actor)
	}
	return ctx
}

// clientIP strips the port from r.RemoteAddr. TrustedRealIP has already
// replaced it for requests from trusted proxies.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

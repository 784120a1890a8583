package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/JonMunkholm/portfolio-import/internal/config"
	"github.com/JonMunkholm/portfolio-import/internal/logging"
)

type actorKey struct{}

// APIKeyAuth checks the X-API-Key header against cfg.APIKeys when
// cfg.RequireAPIKey is set. Accepted requests carry an actor derived from
// the key, never the key itself.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			logger := logging.WithFields(r.Context(), "path", r.URL.Path, "method", r.Method, "remote_addr", r.RemoteAddr)

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				logger.Warn("auth: missing API key")
				writeAuthError(w, http.StatusUnauthorized, "missing API key")
				return
			}
			if !isValidAPIKey(apiKey, cfg.APIKeys) {
				logger.Warn("auth: invalid API key")
				writeAuthError(w, http.StatusForbidden, "invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), actorKey{}, keyActor(apiKey))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorFromRequest returns the actor set by APIKeyAuth, or "".
func ActorFromRequest(r *http.Request) string {
	actor, _ := r.Context().Value(actorKey{}).(string)
	return actor
}

// keyActor names a key by a short hash so logs can tell keys apart.
func keyActor(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "key:" + hex.EncodeToString(sum[:4])
}

// isValidAPIKey compares key against every configured key in constant time.
func isValidAPIKey(key string, validKeys []string) bool {
	valid := 0
	for _, validKey := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(validKey))
	}
	return valid == 1
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + message + `","message":"Missing or invalid API key","action":"Send a valid key in the X-API-Key header","code":"AUTH001"}` + "\n"))
}

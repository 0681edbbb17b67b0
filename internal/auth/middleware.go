package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

type contextKey struct{}

var keyContextKey contextKey

// FromContext returns the authenticated key record, or nil.
func FromContext(ctx context.Context) *Key {
	key, _ := ctx.Value(keyContextKey).(*Key)
	return key
}

// Middleware rejects requests that do not present a valid API key via the
// X-API-Key header or an Authorization bearer token. When required is false
// every request passes, but a valid key is still attached to the context.
func Middleware(ks *Keystore, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			secret := r.Header.Get("X-API-Key")
			if secret == "" {
				if bearer := r.Header.Get("Authorization"); strings.HasPrefix(bearer, "Bearer ") {
					secret = strings.TrimPrefix(bearer, "Bearer ")
				}
			}

			key := ks.Verify(secret)
			if key == nil && required {
				slog.Warn("Rejected unauthenticated request", "path", r.URL.Path, "remote", r.RemoteAddr)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error": "valid API key required"}`))
				return
			}

			if key != nil {
				r = r.WithContext(context.WithValue(r.Context(), keyContextKey, key))
			}
			next.ServeHTTP(w, r)
		})
	}
}

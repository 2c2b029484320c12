package auth

import (
	"log/slog"
	"net/http"
	"strings"
)

// Config holds the debug HTTP surface's authentication configuration.
type Config struct {
	// Token, when non-empty, is the bearer token required on every
	// request. Empty disables auth entirely (local-only default).
	Token string
}

// Enabled reports whether the bearer-token gate is active.
func (c Config) Enabled() bool {
	return c.Token != ""
}

// Middleware wraps next with a bearer-token check. When cfg is disabled
// every request passes through unmodified, matching the spec's default
// of no auth for local debug use.
func Middleware(cfg Config, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) || header[len(prefix):] != cfg.Token {
				logger.Warn("auth: rejected debug request", "path", r.URL.Path, "remote", r.RemoteAddr)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/modoterra/unitgate/pkg/auth"
)

// ErrUnauthorized is returned by Gate.Check for any credential failure.
var ErrUnauthorized = errors.New("unauthorized")

const bearerPrefix = "Bearer "

// Gate checks the bearer credential before any unit operation runs.
type Gate struct {
	token  auth.Token
	logger *slog.Logger
}

// NewGate creates a gate for the given shared secret.
func NewGate(token auth.Token, logger *slog.Logger) *Gate {
	return &Gate{token: token, logger: logger}
}

// Check validates the Authorization header of r. Missing, malformed and
// mismatched credentials all yield ErrUnauthorized.
func (g *Gate) Check(r *http.Request) error {
	candidate, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
	if !ok || !g.token.Match(candidate) {
		return ErrUnauthorized
	}
	return nil
}

// Middleware rejects unauthenticated requests with 401 before next runs.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := g.Check(r); err != nil {
			g.logger.Warn("request rejected", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", `Bearer realm="unitgate"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

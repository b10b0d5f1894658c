package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"marketlens/internal/infrastructure"
)

// AdminToken guards mutating endpoints. The presented token, from the
// X-Admin-Token header or a bearer Authorization header, is checked
// against the configured bcrypt hash. An empty hash disables the check.
func AdminToken(tokenHash string, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenHash == "" {
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get("X-Admin-Token")
			if token == "" {
				auth := r.Header.Get("Authorization")
				if strings.HasPrefix(auth, "Bearer ") {
					token = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			if token == "" || bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(token)) != nil {
				logger.WarnContext(r.Context(), "admin token rejected",
					"method", r.Method,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)

				w.Header().Set("Content-Type", "application/problem+json")
				w.WriteHeader(http.StatusUnauthorized)

				traceID := infrastructure.GetTraceID(r.Context())
				response := `{"type":"/errors/unauthorized","title":"Unauthorized","status":401,"detail":"A valid admin token is required","trace_id":"` + traceID + `"}`
				w.Write([]byte(response))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

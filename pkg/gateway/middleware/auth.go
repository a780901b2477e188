package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"arclight-hq/relay/pkg/gateway/types"
)

// Auth enforces the shared inbound bearer secret. Requests must carry
// "Authorization: Bearer <secret>"; on success the header is stripped
// so it can never leak to an upstream provider. An empty secret
// disables the check entirely and leaves caller headers untouched.
func Auth(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				logger.WarnContext(r.Context(), "rejected unauthenticated request",
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", GetRequestID(r.Context()),
					"remote_addr", r.RemoteAddr,
				)
				types.WriteError(w, types.NewErrorResponse(
					"Invalid or missing API key.",
					types.ErrorTypeAuthentication,
					"",
				))
				return
			}

			// The gateway secret must never travel upstream.
			r.Header.Del("Authorization")

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}

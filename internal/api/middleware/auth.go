// Package middleware holds HTTP middleware for the API server.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/newthinker/algotrade/internal/api/response"
	"github.com/newthinker/algotrade/internal/core"
)

// APIKeyHeader carries the API key.
const APIKeyHeader = "X-API-Key"

// APIKeyAuth returns middleware that validates the API key sent in
// X-API-Key or as a bearer token. If apiKey is empty, authentication is
// disabled. Preflight requests pass through.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			provided := providedKey(r)
			if provided == "" {
				response.Fail(w, core.Errorf(core.ErrUnauthorized, "%s header is required", APIKeyHeader))
				return
			}

			// Constant-time comparison to prevent timing attacks
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				response.Fail(w, core.ErrUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func providedKey(r *http.Request) string {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

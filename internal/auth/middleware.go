package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// ContextKey is used for storing claims in request context.
type ContextKey string

// ClaimsKey holds the verified *Claims for the request.
const ClaimsKey ContextKey = "claims"

// Middleware enforces bearer token authentication on HTTP handlers. A
// nil verifier disables enforcement and passes requests through.
type Middleware struct {
	verifier *Verifier
}

// NewMiddleware creates an auth middleware. verifier may be nil.
func NewMiddleware(verifier *Verifier) *Middleware {
	return &Middleware{verifier: verifier}
}

// RequireScope wraps next so the request must carry a valid token
// granting scope.
func (m *Middleware) RequireScope(scope string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.verifier == nil {
			next(w, r)
			return
		}

		token, ok := extractBearerToken(r)
		if !ok {
			writeAuthError(w, "Authentication required")
			return
		}

		claims, err := m.verifier.VerifyToken(token)
		if err != nil {
			writeAuthError(w, "Invalid token")
			return
		}
		if !claims.HasScope(scope) {
			writeForbidden(w, "Insufficient scope")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		next(w, r.WithContext(ctx))
	}
}

// ClaimsFromContext returns the verified claims, or nil when the route
// ran unauthenticated.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(ClaimsKey).(*Claims)
	return claims
}

func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func writeAuthError(w http.ResponseWriter, message string) {
	writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func writeForbidden(w http.ResponseWriter, message string) {
	writeJSONError(w, http.StatusForbidden, "FORBIDDEN", message)
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"result":  "error",
		"code":    code,
		"message": message,
	})
}

package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the parsed token claims.
type Claims struct {
	Subject string   `json:"sub"`
	Scopes  []string `json:"scopes"`
}

// Scope constants for control API routes.
const (
	ScopeRead    = "read"
	ScopeControl = "control"
)

// Verifier verifies HS256 bearer tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for the given shared secret.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("HS256 requires a secret key")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// VerifyToken verifies a JWT and returns its claims.
func (v *Verifier) VerifyToken(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("token cannot be empty")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return extractClaims(mapClaims)
}

// extractClaims pulls the subject and scopes out of the raw claim map.
func extractClaims(mc jwt.MapClaims) (*Claims, error) {
	claims := &Claims{}

	if sub, ok := mc["sub"].(string); ok {
		claims.Subject = sub
	}

	raw, ok := mc["scopes"]
	if !ok {
		return nil, fmt.Errorf("missing scopes claim")
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("scopes claim must be a list")
	}
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("scopes claim must contain strings")
		}
		claims.Scopes = append(claims.Scopes, s)
	}

	return claims, nil
}

// HasScope reports whether the claims grant the given scope.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Package auth implements bearer token verification for the control API.
//
// Tokens are HS256 JWTs carrying a "scopes" claim. Read-only routes are
// open; control routes require the "control" scope. An empty secret
// disables verification entirely, which is intended for bench use only.
package auth

// Package middleware provides HTTP middleware for authentication.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/jonathan/campaign-studio/internal/apperr"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// usernameKey is the context key for storing the authenticated username.
const usernameKey ContextKey = "username"

// TokenValidator is an interface for validating JWT tokens.
// This allows the middleware to work with any JWT service implementation.
type TokenValidator interface {
	ValidateToken(tokenString string) (SubjectGetter, error)
}

// SubjectGetter exposes the authenticated user from token claims.
type SubjectGetter interface {
	GetUsername() string
}

// AuthMiddleware validates the bearer token and stores the username in the
// request context. A missing token is answered with 401, a token that fails
// validation with 403.
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				deny(w, http.StatusUnauthorized, apperr.KindUnauthorized, "authentication required")
				return
			}

			claims, err := validator.ValidateToken(tokenString)
			if err != nil {
				deny(w, http.StatusForbidden, apperr.KindForbidden, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), usernameKey, claims.GetUsername())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken parses "Bearer <token>", accepting any case for the scheme.
func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func deny(w http.ResponseWriter, status int, kind apperr.Kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"kind": string(kind), "message": message},
	})
}

// GetUsername extracts the authenticated username from the request context.
func GetUsername(r *http.Request) (string, error) {
	username, ok := r.Context().Value(usernameKey).(string)
	if !ok || username == "" {
		return "", fmt.Errorf("username not found in request context")
	}
	return username, nil
}

package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTokenValidator is a test implementation of TokenValidator for unit tests.
type testTokenValidator struct {
	validTokens map[string]string
}

func newTestTokenValidator() *testTokenValidator {
	return &testTokenValidator{validTokens: make(map[string]string)}
}

func (v *testTokenValidator) ValidateToken(tokenString string) (SubjectGetter, error) {
	username, ok := v.validTokens[tokenString]
	if !ok {
		return nil, fmt.Errorf("invalid token")
	}
	return testClaims(username), nil
}

type testClaims string

func (c testClaims) GetUsername() string { return string(c) }

func okHandler(t *testing.T, called *bool, gotUser *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		username, err := GetUsername(r)
		require.NoError(t, err)
		*gotUser = username
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	validator := newTestTokenValidator()
	validator.validTokens["good-token"] = "studio"

	var called bool
	var user string
	handler := AuthMiddleware(validator)(okHandler(t, &called, &user))

	for _, scheme := range []string{"Bearer", "bearer", "BEARER"} {
		called = false
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		req.Header.Set("Authorization", scheme+" good-token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code, scheme)
		assert.True(t, called)
		assert.Equal(t, "studio", user)
	}
}

func TestAuthMiddleware_MissingOrMalformedIs401(t *testing.T) {
	handler := AuthMiddleware(newTestTokenValidator())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be called")
	}))

	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer a b", "token-only"} {
		t.Run(fmt.Sprintf("%q", header), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/status", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			var body map[string]map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "unauthorized", body["error"]["kind"])
		})
	}
}

func TestAuthMiddleware_InvalidTokenIs403(t *testing.T) {
	handler := AuthMiddleware(newTestTokenValidator())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer forged")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "forbidden")
}

func TestGetUsername(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := GetUsername(req)
	assert.Error(t, err)

	req = req.WithContext(context.WithValue(req.Context(), usernameKey, "studio"))
	username, err := GetUsername(req)
	require.NoError(t, err)
	assert.Equal(t, "studio", username)

	req = req.WithContext(context.WithValue(req.Context(), usernameKey, 42))
	_, err = GetUsername(req)
	assert.Error(t, err)
}

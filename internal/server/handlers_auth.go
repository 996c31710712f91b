package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/campaign-studio/internal/apperr"
	"github.com/jonathan/campaign-studio/internal/server/middleware"
)

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	Token string `json:"token"`
}

// handleLogin checks the studio credentials and issues a token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, r, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}
	if err := s.validator.Struct(req); err != nil {
		s.errorResponse(w, r, apperr.New(apperr.KindValidation, extractValidationErrors(err)))
		return
	}

	if !s.deps.Auth.CheckCredentials(req.Username, req.Password) {
		s.logger.Warn().Str("username", req.Username).Msg("login rejected")
		s.errorResponse(w, r, apperr.New(apperr.KindUnauthorized, "invalid username or password"))
		return
	}

	token, err := s.jwtService.GenerateToken(req.Username)
	if err != nil {
		s.errorResponse(w, r, apperr.Wrap(apperr.KindInternal, "failed to generate token", err))
		return
	}
	s.jsonResponse(w, http.StatusOK, LoginResponse{Token: token})
}

// handleStatus confirms that the caller's token is accepted.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.GetUsername(r)
	if err != nil {
		s.errorResponse(w, r, apperr.New(apperr.KindUnauthorized, "authentication required"))
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok", "username": username})
}

// extractValidationErrors extracts validation error messages from validator errors.
func extractValidationErrors(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok && len(validationErrors) > 0 {
		// First error only
		ve := validationErrors[0]
		return fmt.Sprintf("validation error: %s - %s", ve.Field(), ve.Tag())
	}
	return fmt.Sprintf("validation error: %v", err)
}

package config

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/crypto/bcrypt"
)

// JWTConfig holds configuration for JWT token generation and validation.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

// PasswordConfig holds configuration for password hashing and verification.
type PasswordConfig struct {
	BcryptCost int
}

// AuthConfig is everything needed to log the single studio user in and to
// issue and check tokens.
type AuthConfig struct {
	JWT          JWTConfig
	Password     PasswordConfig
	Username     string
	PasswordHash string
}

// NewAuthConfig reads authentication settings from the environment:
// JWT_SECRET (required), JWT_EXPIRATION_HOURS (default 24), BCRYPT_COST
// (default 12), APP_USERNAME, and either APP_PASSWORD_HASH or APP_PASSWORD.
// A plain APP_PASSWORD is hashed once here and not kept.
func NewAuthConfig() (*AuthConfig, error) {
	jwtCfg, err := newJWTConfig()
	if err != nil {
		return nil, err
	}
	pwCfg, err := newPasswordConfig()
	if err != nil {
		return nil, err
	}

	cfg := &AuthConfig{
		JWT:          *jwtCfg,
		Password:     *pwCfg,
		Username:     os.Getenv("APP_USERNAME"),
		PasswordHash: os.Getenv("APP_PASSWORD_HASH"),
	}
	if cfg.Username == "" {
		return nil, fmt.Errorf("APP_USERNAME is required but not set")
	}
	if cfg.PasswordHash == "" {
		plain := os.Getenv("APP_PASSWORD")
		if plain == "" {
			return nil, fmt.Errorf("APP_PASSWORD or APP_PASSWORD_HASH is required")
		}
		cfg.PasswordHash, err = cfg.Password.HashPassword(plain)
		if err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// CheckCredentials reports whether username and password match the
// configured user.
func (c *AuthConfig) CheckCredentials(username, password string) bool {
	// The hash is compared even for a wrong username so both paths take
	// about the same time.
	ok := c.Password.VerifyPassword(password, c.PasswordHash)
	return ok && username == c.Username
}

func newJWTConfig() (*JWTConfig, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but not set")
	}

	expirationStr := os.Getenv("JWT_EXPIRATION_HOURS")
	if expirationStr == "" {
		expirationStr = "24"
	}
	expirationHours, err := strconv.Atoi(expirationStr)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_HOURS: %v", err)
	}

	cfg := &JWTConfig{Secret: secret, ExpirationHours: expirationHours}
	if cfg.ExpirationHours < 1 {
		return nil, fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1 hour, got: %d", cfg.ExpirationHours)
	}
	return cfg, nil
}

func newPasswordConfig() (*PasswordConfig, error) {
	costStr := os.Getenv("BCRYPT_COST")
	if costStr == "" {
		costStr = "12"
	}
	cost, err := strconv.Atoi(costStr)
	if err != nil {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %v", err)
	}
	if cost < 10 || cost > 14 {
		return nil, fmt.Errorf("bcrypt cost out of range: %d (must be 10-14)", cost)
	}
	return &PasswordConfig{BcryptCost: cost}, nil
}

// HashPassword hashes a password using bcrypt.
func (c *PasswordConfig) HashPassword(pw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), c.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword verifies a password against a stored hash.
func (c *PasswordConfig) VerifyPassword(pw, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(pw)) == nil
}

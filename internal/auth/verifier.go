// Package auth verifies Supabase-issued bearer tokens and drives the Google sign-in flow.
package auth

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/joseph-ayodele/lumo-backend/internal/common"
)

const DefaultAudience = "authenticated"

// Claims are the Supabase access token claims the service reads.
type Claims struct {
	Email        string         `json:"email,omitempty"`
	Role         string         `json:"role,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the verified caller.
type Identity struct {
	UserID   string
	Email    string
	Metadata map[string]any
}

// Verifier checks HS256 tokens signed with the project JWT secret.
type Verifier struct {
	secret   []byte
	audience string
	logger   *slog.Logger
	now      func() time.Time
}

func NewVerifier(secret, audience string, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	if audience == "" {
		audience = DefaultAudience
	}
	return &Verifier{secret: []byte(secret), audience: audience, logger: logger, now: time.Now}
}

var (
	errExpired         = common.NewAppError("UNAUTHORIZED", "Token has expired", common.ErrUnauthorized)
	errInvalid         = common.NewAppError("UNAUTHORIZED", "Invalid token", common.ErrUnauthorized)
	errMissingHeader   = common.NewAppError("UNAUTHORIZED", "Authorization header is required", common.ErrUnauthorized)
	errMalformedBearer = common.NewAppError("UNAUTHORIZED", "Authorization header must be 'Bearer <token>'", common.ErrUnauthorized)
)

// Verify parses and validates a raw token.
func (v *Verifier) Verify(raw string) (Identity, error) {
	if len(v.secret) == 0 {
		return Identity{}, common.NewAppError("CONFIG_ERROR", "JWT secret not set", common.ErrInternal)
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(v.audience),
		jwt.WithTimeFunc(v.now),
	)
	claims := &Claims{}
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Identity{}, errExpired
	case err != nil:
		v.logger.Debug("auth.token.invalid", "error", err)
		return Identity{}, errInvalid
	}
	if claims.Subject == "" {
		return Identity{}, errInvalid
	}
	return Identity{UserID: claims.Subject, Email: claims.Email, Metadata: claims.UserMetadata}, nil
}

// VerifyHeader verifies an Authorization header value.
func (v *Verifier) VerifyHeader(header string) (Identity, error) {
	tok, err := BearerToken(header)
	if err != nil {
		return Identity{}, err
	}
	return v.Verify(tok)
}

// BearerToken extracts the token from "Bearer <token>".
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errMissingHeader
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", errMalformedBearer
	}
	return parts[1], nil
}

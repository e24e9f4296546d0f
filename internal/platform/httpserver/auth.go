package httpserver

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthorized = errors.New("unauthorized")

// Authenticator resolves the publishing owner from an HS256 bearer token.
// The owner id is the token subject.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) (Authenticator, error) {
	if strings.TrimSpace(secret) == "" {
		return Authenticator{}, errors.New("jwt secret is required")
	}
	return Authenticator{secret: []byte(secret)}, nil
}

func (a Authenticator) Authenticate(authorizationHeader string) (string, error) {
	if len(a.secret) == 0 {
		return "", ErrUnauthorized
	}
	parts := strings.SplitN(strings.TrimSpace(authorizationHeader), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(parts[1]), &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnauthorized
		}
		return a.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", ErrUnauthorized
	}
	return claims.Subject, nil
}

// IssueToken signs a token for ownerID. Used by operators and tests.
func (a Authenticator) IssueToken(ownerID string, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   ownerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims mirrors the access tokens issued by the platform.
type Claims struct {
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the principal the token was issued to.
func (c *Claims) Identity() Identity {
	id := Identity{ID: c.Subject, Email: c.Email}
	if name, ok := c.UserMetadata["full_name"].(string); ok {
		id.DisplayName = name
	}
	return id
}

const roleAuthenticated = "authenticated"

// GenerateToken signs an HS256 access token for id, the same shape the
// platform issues.
func GenerateToken(secret string, id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	c := Claims{
		Email: id.Email,
		Role:  roleAuthenticated,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	if id.DisplayName != "" {
		c.UserMetadata = map[string]any{"full_name": id.DisplayName}
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return t.SignedString([]byte(secret))
}

// ParseToken verifies an HS256 token against secret and returns its claims.
func ParseToken(secret, tokenStr string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	claims, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", jwt.ErrTokenInvalidClaims)
	}
	return claims, nil
}

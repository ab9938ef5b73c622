// Package security verifies the bearer tokens shoppers present to the API.
package security

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer is the iss claim the identity service puts on shopper tokens.
const Issuer = "playvault-identity"

// clockSkew tolerates small clock differences with the identity service.
const clockSkew = 30 * time.Second

var (
	// ErrInvalidToken covers malformed, unsigned or foreign tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned once exp has passed.
	ErrExpiredToken = errors.New("token expired")
)

// UserClaims identifies the shopper behind a request.
type UserClaims struct {
	UserID   uint64 `json:"uid"`
	Username string `json:"name"`
	jwt.RegisteredClaims
}

// GenerateToken mints a shopper token. Production tokens come from the
// identity service; this serves the token command and tests.
func GenerateToken(secret string, userID uint64, username string, expiry time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("security: empty jwt secret")
	}
	now := time.Now().UTC()
	claims := UserClaims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    Issuer,
			Subject:   strconv.FormatUint(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies an HS256 shopper token and returns its claims.
func ParseToken(secret string, tokenString string) (*UserClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	claims := &UserClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case err != nil, !token.Valid, claims.UserID == 0:
		return nil, ErrInvalidToken
	}
	return claims, nil
}

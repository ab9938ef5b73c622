package security

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("secret", 42, "ada", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseToken("secret", token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "ada" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestParseTokenRejectsBadTokens(t *testing.T) {
	valid, err := GenerateToken("secret", 1, "bob", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseToken("other-secret", valid); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for wrong secret, got %v", err)
	}
	if _, err := ParseToken("secret", "not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for garbage, got %v", err)
	}

	expired, err := GenerateToken("secret", 1, "bob", -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseToken("secret", expired); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected expired token, got %v", err)
	}

	anonymous, err := GenerateToken("secret", 0, "nobody", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseToken("secret", anonymous); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected user id to be required, got %v", err)
	}
}

func TestParseTokenRequiresIssuer(t *testing.T) {
	claims := UserClaims{
		UserID: 7,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseToken("secret", foreign); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected foreign issuer to be rejected, got %v", err)
	}
}

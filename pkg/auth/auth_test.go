package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashAndCheck(t *testing.T) {
	hash, err := HashPassword("secret", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if !CheckPassword("secret", hash) {
		t.Fatalf("password should match")
	}
	if CheckPassword("wrong", hash) {
		t.Fatalf("password should not match")
	}
}

func TestValidateServiceToken(t *testing.T) {
	if err := ValidateServiceToken("", "expected"); err == nil {
		t.Fatalf("expected missing token error")
	}
	if err := ValidateServiceToken("bad", "expected"); err == nil {
		t.Fatalf("expected invalid token error")
	}
	if err := ValidateServiceToken("expected", "expected"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestJWTGenerateValidate(t *testing.T) {
	secret := []byte("s3cr3t")
	token, err := GenerateJWT("operator", "admin", time.Hour, secret)
	if err != nil {
		t.Fatalf("generate jwt: %v", err)
	}
	claims, err := ValidateJWT(token, secret)
	if err != nil {
		t.Fatalf("validate jwt: %v", err)
	}
	if claims.Username != "operator" || claims.Role != "admin" {
		t.Fatalf("claims mismatch")
	}
}

func TestJWTValidationEdgeCases(t *testing.T) {
	tests := []struct {
		name        string
		setupToken  func() string
		secret      []byte
		expectError bool
		errorType   error
	}{
		{
			name: "valid token with correct secret",
			setupToken: func() string {
				token, _ := GenerateJWT("operator", "user", time.Hour, []byte("correct-secret"))
				return token
			},
			secret:      []byte("correct-secret"),
			expectError: false,
		},
		{
			name: "valid token with wrong secret",
			setupToken: func() string {
				token, _ := GenerateJWT("operator", "user", time.Hour, []byte("correct-secret"))
				return token
			},
			secret:      []byte("wrong-secret"),
			expectError: true,
			errorType:   ErrInvalidJWT,
		},
		{
			name: "expired token",
			setupToken: func() string {
				claims := &Claims{
					Username: "operator",
					Role:     "user",
					RegisteredClaims: jwt.RegisteredClaims{
						ExpiresAt: jwt.NewNumericDate(time.Now().Add(-1 * time.Hour)),
						IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
					},
				}
				token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
				tokenString, _ := token.SignedString([]byte("test-secret"))
				return tokenString
			},
			secret:      []byte("test-secret"),
			expectError: true,
			errorType:   ErrExpiredJWT,
		},
		{
			name: "malformed token",
			setupToken: func() string {
				return "not.a.valid.jwt.token"
			},
			secret:      []byte("test-secret"),
			expectError: true,
			errorType:   ErrInvalidJWT,
		},
		{
			name: "empty token",
			setupToken: func() string {
				return ""
			},
			secret:      []byte("test-secret"),
			expectError: true,
			errorType:   ErrInvalidJWT,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := tt.setupToken()
			claims, err := ValidateJWT(token, tt.secret)

			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error but got none")
				}
				if tt.errorType != nil && !errors.Is(err, tt.errorType) {
					t.Fatalf("expected error %v but got %v", tt.errorType, err)
				}
				if claims != nil {
					t.Fatalf("expected nil claims when error occurs")
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if claims == nil {
					t.Fatalf("expected valid claims")
				}
			}
		})
	}
}

func TestJWTAlgorithmConfusionPrevention(t *testing.T) {
	// Test that we reject tokens using different signing methods
	secret := []byte("test-secret")

	noneToken := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		Username: "operator",
		Role:     "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(1 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
	noneTokenString, err := noneToken.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to create none token: %v", err)
	}

	claims, err := ValidateJWT(noneTokenString, secret)
	if err == nil {
		t.Fatalf("expected rejection of none algorithm token but validation succeeded")
	}
	if claims != nil {
		t.Fatalf("expected nil claims when rejecting none algorithm")
	}
	if !errors.Is(err, ErrInvalidJWT) && !strings.Contains(err.Error(), "unexpected signing method") {
		t.Fatalf("expected signing method or invalid JWT error but got: %v", err)
	}
}

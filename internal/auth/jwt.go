package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleOperator = "operator"
	Issuer       = "retail-bank"

	clockSkew = 30 * time.Second
)

var (
	ErrForbidden      = errors.New("token lacks the operator role")
	ErrMissingSubject = errors.New("token has no subject")
)

type Claims struct {
	Subject string
	Role    string
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// GenerateToken signs an HS256 token for an operator of the bank's admin
// endpoints.
func GenerateToken(subject, role, secret string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("GenerateToken: %w", err)
	}
	return signed, nil
}

func ValidateToken(tokenString string, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired(), jwt.WithIssuer(Issuer), jwt.WithLeeway(clockSkew))
	if err != nil {
		return nil, fmt.Errorf("ValidateToken: %w", err)
	}

	tc, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("ValidateToken: invalid token claims")
	}
	if tc.Subject == "" {
		return nil, fmt.Errorf("ValidateToken: %w", ErrMissingSubject)
	}

	return &Claims{
		Subject: tc.Subject,
		Role:    tc.Role,
	}, nil
}

// RequireOperator validates the token and checks it grants the operator
// role. A valid token without the role returns its claims with ErrForbidden.
func RequireOperator(tokenString, secret string) (*Claims, error) {
	claims, err := ValidateToken(tokenString, secret)
	if err != nil {
		return nil, err
	}
	if claims.Role != RoleOperator {
		return claims, fmt.Errorf("RequireOperator: %w", ErrForbidden)
	}
	return claims, nil
}

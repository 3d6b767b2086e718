package auth

import (
	"fmt"
	"time"

	"image-ingest/internal/apperror"

	"github.com/golang-jwt/jwt/v5"
)

const adminRole = "admin"

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Gate verifies admin bearer tokens. It is the only authentication the
// ingestion core performs; everything else lives in the surrounding CMS.
type Gate struct {
	secret []byte
}

func NewGate(secret string) *Gate {
	return &Gate{secret: []byte(secret)}
}

func (g *Gate) RequireAdmin(token string) (*Claims, error) {
	if token == "" {
		return nil, apperror.Auth("missing auth token")
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return g.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, apperror.Auth("invalid or expired auth token")
	}

	if claims.Role != adminRole {
		return nil, apperror.Auth("admin role required")
	}

	return claims, nil
}

// IssueToken mints an admin token, used by operator tooling and tests.
func (g *Gate) IssueToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

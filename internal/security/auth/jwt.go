package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yourorg/rentledger/internal/domain"
)

// Claims carry the authenticated subject and its role.
type Claims struct {
	SubjectID string      `json:"subject_id"`
	Role      domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Identity converts the claims into the identity used by the services.
func (c *Claims) Identity() domain.Identity {
	return domain.Identity{SubjectID: c.SubjectID, Role: c.Role}
}

type TokenManager struct {
	secret string
	issuer string
	ttl    time.Duration
}

func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	if secret == "" {
		secret = "change-me-in-production"
	}
	if issuer == "" {
		issuer = "rentledger"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{secret: secret, issuer: issuer, ttl: ttl}
}

// TTL is the lifetime of issued tokens.
func (tm *TokenManager) TTL() time.Duration { return tm.ttl }

func (tm *TokenManager) GenerateToken(id domain.Identity) (string, time.Time, error) {
	if id.SubjectID == "" || id.Role == "" {
		return "", time.Time{}, fmt.Errorf("subject_id and role required")
	}
	now := time.Now()
	expires := now.Add(tm.ttl)
	claims := Claims{
		SubjectID: id.SubjectID,
		Role:      id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.SubjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			Issuer:    tm.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(tm.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(tm.secret), nil
	}, jwt.WithIssuer(tm.issuer))
	if err != nil {
		return nil, fmt.Errorf("parse token failed: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if _, err := domain.ParseRole(string(claims.Role)); err != nil {
		return nil, fmt.Errorf("invalid role claim: %w", err)
	}
	return claims, nil
}

func ExtractToken(authHeader string) (string, error) {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", fmt.Errorf("invalid authorization header")
	}
	return parts[1], nil
}

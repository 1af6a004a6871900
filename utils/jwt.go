package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cppla/queridometro/config"
)

// Claims defines JWT claims used in the application. Name is the member's
// roster spelling; Version is the credential version the token was issued at.
type Claims struct {
	UserID  uint   `json:"user_id"`
	Name    string `json:"name"`
	Version uint   `json:"ver"`
	jwt.RegisteredClaims
}

// GenerateToken issues a JWT for the specified member.
func GenerateToken(userID uint, name string, version uint, duration time.Duration) (string, time.Time, error) {
	cfg := config.Get()

	now := time.Now()
	expires := now.Add(duration)
	claims := Claims{
		UserID:  userID,
		Name:    name,
		Version: version,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   name,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	return signed, expires, err
}

// ParseToken validates a JWT and returns its claims.
func ParseToken(tokenStr string) (*Claims, error) {
	cfg := config.Get()
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Name == "" {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

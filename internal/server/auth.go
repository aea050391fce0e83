package server

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// validateToken parses and validates a JWT string using the shared HMAC
// secret. It returns an error if the token is malformed, expired, or signed
// with the wrong key.
func validateToken(tokenString, secret string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return fmt.Errorf("parsing access token: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("invalid access token")
	}
	return nil
}

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// TokenTTL is how long a session token stays valid.
const TokenTTL = time.Hour * 24 * 7

// ErrSecretMissing is returned when tokens are requested before InitAuth was
// given a secret.
var ErrSecretMissing = errors.New("JWT secret is not configured")

var jwtSecret []byte

// AppClaims represents the custom claims for the JWT. The subject is the
// canvas session the bearer may drive.
type AppClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

func InitAuth(secret string) {
	jwtSecret = []byte(secret)
	if len(jwtSecret) == 0 {
		logrus.Warn("JWT_SECRET is not set. Session tokens will not work.")
	}
}

// CreateJWT mints a token for the given session.
func CreateJWT(sessionID string) (string, error) {
	if len(jwtSecret) == 0 {
		return "", ErrSecretMissing
	}
	now := time.Now()
	claims := AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		SessionID: sessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func ParseJWT(tokenString string) (*AppClaims, error) {
	if len(jwtSecret) == 0 {
		return nil, ErrSecretMissing
	}
	token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*AppClaims); ok && token.Valid && claims.SessionID != "" {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

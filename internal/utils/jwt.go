package utils

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fixnow-app/fixnow/internal/engine"
)

// Secret returns the HMAC signing secret for actor tokens.
func Secret() []byte {
	if s := os.Getenv("JWT_SECRET"); s != "" {
		return []byte(s)
	}
	return []byte("supersecret")
}

// SignActorToken issues a bearer token carrying the actor identity. Token
// issuance proper (login, refresh) lives outside this service; this exists
// for tooling and tests.
func SignActorToken(actor engine.Actor, secret []byte, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"id":   actor.ID,
		"role": string(actor.Role),
		"name": actor.DisplayName,
		"exp":  time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseActorToken validates a bearer token and returns the actor it names.
func ParseActorToken(header string, secret []byte) (engine.Actor, error) {
	if header == "" {
		return engine.Actor{}, errors.New("missing authorization header")
	}
	tokenStr := strings.TrimPrefix(header, "Bearer ")
	if tokenStr == header {
		return engine.Actor{}, errors.New("malformed authorization header")
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return engine.Actor{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return engine.Actor{}, errors.New("invalid token claims")
	}
	id, _ := claims["id"].(string)
	role, _ := claims["role"].(string)
	name, _ := claims["name"].(string)
	if id == "" || role == "" {
		return engine.Actor{}, errors.New("invalid token claims")
	}
	return engine.Actor{ID: id, Role: engine.Role(role), DisplayName: name}, nil
}

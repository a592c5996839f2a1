package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func jwtSecret() []byte {
	return []byte(os.Getenv("KEY"))
}

// GenerateJWT issues the Bearer token returned on login, keyed by the
// user's email
func GenerateJWT(email string) (string, error) {
	claims := jwt.MapClaims{
		"email": email,
		"exp":   time.Now().Add(24 * time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret())
}

func parseToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return jwtSecret(), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token")
	}

	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return "", errors.New("token has no email claim")
	}
	return email, nil
}

// JWT_decoder extracts the authenticated user's email from the request's
// Bearer token
func JWT_decoder(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", errors.New("missing Authorization header")
	}

	tokenString := strings.TrimPrefix(header, "Bearer ")
	if tokenString == header {
		return "", errors.New("Authorization header must use the Bearer scheme")
	}

	return parseToken(tokenString)
}

// Socketio_JWT_decoder extracts the user's email from a socket.io handshake
// auth payload ("authorization" field, Bearer prefix like the HTTP header)
func Socketio_JWT_decoder(authData map[string]interface{}) (string, error) {
	raw, exists := authData["authorization"].(string)
	if !exists {
		return "", errors.New("missing authorization field")
	}

	tokenString := strings.TrimPrefix(raw, "Bearer ")
	return parseToken(tokenString)
}

// AuthRequired guards the /auth route group: requests without a valid
// Bearer token are rejected before reaching any handler
func AuthRequired(c *gin.Context) {
	email, err := JWT_decoder(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	// Handlers down the chain re-read the email via JWT_decoder; stash it
	// anyway for the ones that prefer the context
	c.Set("email", email)
	c.Next()
}

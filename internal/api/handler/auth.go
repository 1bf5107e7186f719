package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"honbap/backend/internal/config"
	"honbap/backend/internal/pairing"
)

// generateJWT issues a token carrying the anonymous id and optional contact
// email. Anonymity is a UI property: nothing else links the id to a profile.
func generateJWT(anonID, email string) (string, error) {
	claims := jwt.MapClaims{
		"anon_id": anonID,
		"exp":     time.Now().Add(time.Hour * 72).Unix(),
		"iss":     "honbap-service",
	}
	if email != "" {
		claims["email"] = email
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(config.JWTSecret())
}

func parseJWT(tokenString string) (pairing.Session, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return config.JWTSecret(), nil
	})
	if err != nil || !token.Valid {
		return pairing.Session{}, errors.New("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return pairing.Session{}, errors.New("invalid claims")
	}
	anonID, _ := claims["anon_id"].(string)
	if anonID == "" {
		return pairing.Session{}, errors.New("missing anon_id")
	}
	email, _ := claims["email"].(string)
	return pairing.Session{UserID: anonID, Email: email}, nil
}

// GetAnonID mints a fresh anonymous id and its JWT.
func (h *Handler) GetAnonID(c *gin.Context) {
	anonID := uuid.NewString()
	email := c.Query("email")

	token, err := generateJWT(anonID, email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "anon_id": anonID})
}

const sessionKey = "session"

// AuthRequired validates the bearer token and stashes the session in the gin
// context for the handlers behind it.
func (h *Handler) AuthRequired(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
		return
	}
	sess, err := parseJWT(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}
	c.Set(sessionKey, sess)
	c.Next()
}

func session(c *gin.Context) pairing.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return pairing.Session{}
	}
	sess, _ := v.(pairing.Session)
	return sess
}

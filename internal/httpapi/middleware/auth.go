package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	PlayerIDKey   = "player_id"
	PlayerNameKey = "player_name"
)

type playerClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

// IssueToken signs an HS256 token whose subject is playerID.
func IssueToken(secret, playerID, name string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	if strings.TrimSpace(playerID) == "" {
		return "", errors.New("player id is empty")
	}
	now := time.Now()
	claims := playerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name: name,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// AuthRequired accepts "Authorization: Bearer <token>" signed with secret and
// stores the subject under PlayerIDKey.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(raw) == "" || secret == "" {
			abort(c, http.StatusUnauthorized, 40101, "unauthorized")
			return
		}

		var claims playerClaims
		_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims, func(t *jwt.Token) (any, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err != nil || claims.Subject == "" {
			abort(c, http.StatusUnauthorized, 40102, "invalid token")
			return
		}

		c.Set(PlayerIDKey, claims.Subject)
		c.Set(PlayerNameKey, claims.Name)
		c.Next()
	}
}

func abort(c *gin.Context, status, code int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code":    code,
		"message": msg,
		"data":    nil,
	})
}

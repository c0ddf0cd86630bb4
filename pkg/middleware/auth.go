package middleware

import (
	"net/http"
	"strings"

	"swaply-rewards/pkg/errutil"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	UserIDKey = "user_id"
	DeviceKey = "device_id"
)

type Claims struct {
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id,omitempty"`
	jwt.RegisteredClaims
}

// Auth validates the bearer token and stores the caller identity in the
// gin context. Requests without a valid token are rejected before any
// handler runs.
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			abortUnauthorized(c, "invalid authorization format")
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenParts[1], claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			abortUnauthorized(c, "invalid token")
			return
		}

		if claims.UserID == "" {
			claims.UserID = claims.Subject
		}
		if claims.UserID == "" {
			abortUnauthorized(c, "token missing subject")
			return
		}

		c.Set(UserIDKey, claims.UserID)
		if claims.DeviceID != "" {
			c.Set(DeviceKey, claims.DeviceID)
		}

		c.Next()
	}
}

// UserID returns the authenticated user identity set by Auth.
func UserID(c *gin.Context) string {
	v, _ := c.Get(UserIDKey)
	s, _ := v.(string)
	return s
}

// DeviceID returns the device identity from the token, if present.
func DeviceID(c *gin.Context) string {
	v, _ := c.Get(DeviceKey)
	s, _ := v.(string)
	return s
}

func abortUnauthorized(c *gin.Context, msg string) {
	be := errutil.BaseError{Code: errutil.StatusUnauthorized, Message: msg}
	c.AbortWithStatusJSON(http.StatusUnauthorized, be.JSON())
}

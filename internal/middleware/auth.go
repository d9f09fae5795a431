package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/notihub/notihub/internal/apperrors"
)

// CallerContextKey is the gin context key the resolved caller identity is
// stored under once a bearer token has been validated.
const CallerContextKey = "caller"

// Caller is the already-resolved identity the core trusts once auth passes.
// The core never performs authentication itself (see SPEC_FULL §1); this
// middleware only parses and validates a bearer token handed to it.
type Caller struct {
	Subject string
	Role    string
}

// JWTAuth validates a Bearer JWT signed with secret using HS256 and attaches
// the resolved Caller to the gin context. Missing/invalid tokens abort the
// request chain with UNAUTHENTICATED before any handler runs.
func JWTAuth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			abortUnauthenticated(c, "missing bearer token")
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			abortUnauthenticated(c, "invalid bearer token")
			return
		}

		sub, _ := claims["sub"].(string)
		role, _ := claims["role"].(string)
		c.Set(CallerContextKey, Caller{Subject: sub, Role: role})
		c.Next()
	}
}

// ServiceAuth gates operational routes (digest/queue processing, webhooks)
// behind a static shared secret instead of a per-user JWT.
func ServiceAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" || c.GetHeader("X-Cron-Secret") != secret {
			abortUnauthenticated(c, "missing or invalid cron secret")
			return
		}
		c.Next()
	}
}

func abortUnauthenticated(c *gin.Context, message string) {
	err := apperrors.NewUnauthenticatedError(message)
	c.AbortWithStatusJSON(http.StatusUnauthorized, err)
}

// CallerFromContext extracts the resolved Caller set by JWTAuth.
func CallerFromContext(c *gin.Context) (Caller, bool) {
	v, ok := c.Get(CallerContextKey)
	if !ok {
		return Caller{}, false
	}
	caller, ok := v.(Caller)
	return caller, ok
}

package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/judfetch/models"
)

// IdentityKey is the gin context key holding the caller's API key.
const IdentityKey = "api_key"

// Auth returns API-key authentication middleware.
//
// Keys are read from, in order:
//
//	X-API-Key: <key>
//	Authorization: Bearer <key>
//	?api_key=<key>   (GET only)
//
// The query form lets a spreadsheet export or zip archive be fetched from
// a plain link. If apiKeys is empty, the middleware is a no-op.
func Auth(apiKeys []string) gin.HandlerFunc {
	var keys [][]byte
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}
	if len(keys) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := extractAPIKey(c)
		if key == "" {
			unauthorized(c, "missing API key: provide X-API-Key header or Authorization: Bearer <key>")
			return
		}
		if !validKey(keys, key) {
			unauthorized(c, "invalid API key")
			return
		}
		c.Set(IdentityKey, key)
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Error: &models.ErrorDetail{Code: models.ErrCodeUnauthorized, Message: msg},
	})
}

// validKey compares key against every configured key in constant time.
func validKey(keys [][]byte, key string) bool {
	found := 0
	for _, k := range keys {
		found |= subtle.ConstantTimeCompare(k, []byte(key))
	}
	return found == 1
}

func extractAPIKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if c.Request.Method == http.MethodGet {
		return c.Query("api_key")
	}
	return ""
}

package middleware

import (
	"net/http"
	"strings"

	"fee-management-backend/internal/apperr"
	"fee-management-backend/internal/services/auth"

	"github.com/gin-gonic/gin"
)

type TokenParser interface {
	Parse(token string) (auth.Identity, error)
}

// AuthRequired verifies the bearer token and places the caller's identity
// on the request context.
func AuthRequired(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(tokenStr) == "" {
			abort(c, http.StatusUnauthorized, "Not authenticated")
			return
		}

		id, err := tokens.Parse(strings.TrimSpace(tokenStr))
		if err != nil {
			abort(c, http.StatusUnauthorized, apperr.Message(err))
			return
		}

		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// RoleRequired lets the request through when the caller holds one of roles.
func RoleRequired(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := auth.FromContext(c.Request.Context())
		if !ok {
			abort(c, http.StatusUnauthorized, "Not authenticated")
			return
		}
		for _, r := range roles {
			if id.Role == r {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "Forbidden")
	}
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}

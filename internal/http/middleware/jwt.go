package middleware

import (
	"net/http"
	"strings"

	"tasksync/internal/service"

	"github.com/gin-gonic/gin"
)

// JWT verifies the bearer token and exposes its claims both as "user_id" in
// the gin context and on the request context for the identity provider.
func JWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := service.ParseJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Request = c.Request.WithContext(service.WithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

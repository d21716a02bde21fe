package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Me returns the caller as resolved by the identity provider.
func (h *Handler) Me(c *gin.Context) {
	user, ok := h.Identity.CurrentUser(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"email":      user.Email,
		"name":       user.Name,
		"created_at": user.CreatedAt,
	})
}

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"roombooking/internal/domain"
	"roombooking/internal/pkg/response"
)

// RequireRole ensures that the authenticated user has the specified role
func RequireRole(requiredRole domain.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(CtxRole)
		if !exists {
			response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Role not found in token")
			return
		}

		if r, _ := role.(string); domain.UserRole(r) != requiredRole {
			response.Abort(c, http.StatusForbidden, "FORBIDDEN", "Access denied: insufficient permissions")
			return
		}

		c.Next()
	}
}

// AdminOnly middleware requires admin role
func AdminOnly() gin.HandlerFunc {
	return RequireRole(domain.RoleAdmin)
}

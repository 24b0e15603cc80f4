package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"roombooking/internal/domain"
	"roombooking/internal/pkg/jwt"
	"roombooking/internal/pkg/response"
)

// Context keys set by JWTAuth.
const (
	CtxUserID      = "user_id"
	CtxUsername    = "username"
	CtxRole        = "role"
	CtxDisplayName = "display_name"
)

// JWTAuth validates the bearer token and stores the caller's identity in the
// gin context.
func JWTAuth(tokens *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Abort(c, http.StatusUnauthorized, "AUTH_HEADER_MISSING", "Authorization header is required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
			response.Abort(c, http.StatusUnauthorized, "INVALID_AUTH_FORMAT", "Authorization header must be 'Bearer <token>'")
			return
		}

		claims, err := tokens.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			log.Printf("auth_failure reason=invalid_token path=%s client_ip=%s", c.Request.URL.Path, c.ClientIP())
			response.Abort(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		SetIdentity(c, claims)
		c.Next()
	}
}

// SetIdentity copies token claims into the gin context.
func SetIdentity(c *gin.Context, claims *jwt.Claims) {
	c.Set(CtxUserID, claims.UserID)
	c.Set(CtxUsername, claims.Username)
	c.Set(CtxRole, claims.Role)
	c.Set(CtxDisplayName, claims.FullName)
}

// CurrentActor returns the identity JWTAuth stored for this request.
func CurrentActor(c *gin.Context) (domain.Actor, bool) {
	userID := c.GetInt64(CtxUserID)
	if userID == 0 {
		return domain.Actor{}, false
	}
	return domain.Actor{
		UserID:      userID,
		Role:        domain.UserRole(c.GetString(CtxRole)),
		DisplayName: c.GetString(CtxDisplayName),
	}, true
}

package notification

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"roombooking/internal/domain"
	"roombooking/internal/pkg/jwt"
	"roombooking/internal/pkg/response"
)

type Handler struct {
	hub      *Hub
	tokens   *jwt.Service
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, tokens *jwt.Service, allowedOrigins []string) *Handler {
	return &Handler{
		hub:      hub,
		tokens:   tokens,
		upgrader: newUpgrader(allowedOrigins),
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/ws/room-loans", h.Subscribe)
}

// Subscribe upgrades to a websocket that streams room loan events.
//
// Endpoint: GET /ws/room-loans?token=JWT
//
// Browsers cannot set headers on websocket requests, so the token travels in
// the query string.
func (h *Handler) Subscribe(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, http.StatusUnauthorized, "AUTH_TOKEN_MISSING", "Token is required. Use ?token=YOUR_JWT_TOKEN")
		return
	}

	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws_upgrade_failed user_id=%d error=%q", claims.UserID, err.Error())
		return
	}

	actor := domain.Actor{
		UserID:      claims.UserID,
		Role:        domain.UserRole(claims.Role),
		DisplayName: claims.FullName,
	}
	log.Printf("ws_connected user_id=%d role=%s", actor.UserID, actor.Role)
	h.hub.serve(conn, actor)
	log.Printf("ws_disconnected user_id=%d", actor.UserID)
}

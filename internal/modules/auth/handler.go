package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"roombooking/internal/middleware"
	"roombooking/internal/pkg/response"
)

// Handler manages all HTTP interactions for authentication
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterPublicRoutes(v1 *gin.RouterGroup) {
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/create-admin", h.CreateAdmin)
	}
}

func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	authGroup := protected.Group("/auth")
	{
		authGroup.GET("/me", h.GetMe)
		authGroup.PUT("/profile", h.UpdateProfile)
		authGroup.PUT("/change-password", h.ChangePassword)
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	res, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, res)
}

// CreateAdmin is unauthenticated and only succeeds while no admin exists.
func (h *Handler) CreateAdmin(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	res, err := h.service.CreateAdmin(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, res)
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *Handler) GetMe(c *gin.Context) {
	userID := c.GetInt64(middleware.CtxUserID)
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	u, err := h.service.GetCurrentUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": u})
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	userID := c.GetInt64(middleware.CtxUserID)
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	res, err := h.service.UpdateProfile(c.Request.Context(), userID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *Handler) ChangePassword(c *gin.Context) {
	userID := c.GetInt64(middleware.CtxUserID)
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), userID, req); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Password changed"})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
	case errors.Is(err, ErrWrongPassword):
		response.Error(c, http.StatusBadRequest, "WRONG_PASSWORD", "Current password is incorrect")
	case errors.Is(err, ErrInvalidCredentials):
		response.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username/email or password")
	case errors.Is(err, ErrAccountInactive):
		response.Error(c, http.StatusUnauthorized, "ACCOUNT_INACTIVE", "Account is inactive")
	case errors.Is(err, ErrUsernameTaken):
		response.Error(c, http.StatusConflict, "USERNAME_EXISTS", "This username is already taken")
	case errors.Is(err, ErrEmailTaken):
		response.Error(c, http.StatusConflict, "EMAIL_EXISTS", "This email is already registered")
	case errors.Is(err, ErrAdminExists):
		response.Error(c, http.StatusConflict, "ADMIN_EXISTS", "An admin account already exists")
	case errors.Is(err, ErrUserNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "User not found")
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
	}
}

package roomloan

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"roombooking/internal/domain"
	"roombooking/internal/middleware"
	"roombooking/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the loan endpoints on rg, which must already run
// middleware.JWTAuth.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	loans := rg.Group("/room-loans")
	{
		loans.GET("", h.List)
		loans.GET("/statistics", h.Statistics)
		loans.GET("/:id", h.GetByID)
		loans.POST("", h.Create)
		loans.PUT("/:id", h.Update)
		loans.PUT("/:id/cancel", h.Cancel)

		admin := loans.Group("", middleware.AdminOnly())
		admin.PUT("/:id/approve", h.Approve)
		admin.PUT("/:id/reject", h.Reject)
		admin.DELETE("/:id", h.Delete)
	}
}

func (h *Handler) List(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var f ListFilter
	// Unknown or malformed filters are ignored.
	_ = c.ShouldBindQuery(&f)

	loans, err := h.service.List(c.Request.Context(), actor, f)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"room_loans": loans,
		"total":      len(loans),
	})
}

func (h *Handler) Statistics(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	st, err := h.service.Statistics(c.Request.Context(), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, st)
}

func (h *Handler) GetByID(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	l, err := h.service.GetByID(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"room_loan": l})
}

func (h *Handler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req LoanInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	l, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"room_loan": l})
}

func (h *Handler) Update(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	var req LoanInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	l, err := h.service.Update(c.Request.Context(), actor, id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"room_loan": l})
}

func (h *Handler) Approve(c *gin.Context) {
	h.changeStatus(c, h.service.Approve)
}

func (h *Handler) Reject(c *gin.Context) {
	h.changeStatus(c, h.service.Reject)
}

func (h *Handler) Cancel(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	l, err := h.service.Cancel(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"room_loan": l})
}

func (h *Handler) Delete(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), actor, id); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Room loan deleted"})
}

type statusChangeFunc func(ctx context.Context, actor domain.Actor, id int64, in StatusChangeInput) (*domain.RoomLoan, error)

func (h *Handler) changeStatus(c *gin.Context, fn statusChangeFunc) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	var req StatusChangeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	l, err := fn(c.Request.Context(), actor, id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"room_loan": l})
}

func requireActor(c *gin.Context) (domain.Actor, bool) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
	}
	return actor, ok
}

func actorAndID(c *gin.Context) (domain.Actor, int64, bool) {
	actor, ok := requireActor(c)
	if !ok {
		return domain.Actor{}, 0, false
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid room loan ID")
		return domain.Actor{}, 0, false
	}
	return actor, id, true
}

func writeError(c *gin.Context, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid room loan data", verr.Fields)
	case errors.Is(err, ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, ErrForbidden):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "You do not have access to this room loan")
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Room loan not found")
	case errors.Is(err, ErrInvalidState):
		response.Error(c, http.StatusConflict, "INVALID_STATE", "Room loan cannot change from its current status")
	case errors.Is(err, ErrConflict):
		response.Error(c, http.StatusConflict, "BOOKING_CONFLICT", "Room is already booked for the selected time")
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
	}
}

package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "paidping-backend/internal/common/errors"
	"paidping-backend/internal/common/middleware"
	"paidping-backend/internal/features/intent/models"
	"paidping-backend/internal/features/intent/service"
)

type Handler struct {
	service service.IntentService
}

func NewHandler(service service.IntentService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	intents := router.Group("/intents")
	{
		intents.POST("", h.Create)
		intents.GET("/:id", h.Status)
		intents.POST("/:id/consume", h.Consume)
	}
}

func (h *Handler) intentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		middleware.AbortWithError(c, apperrors.New(apperrors.ErrCodeValidation, "malformed intent id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) Create(c *gin.Context) {
	var req models.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, apperrors.New(apperrors.ErrCodeValidation, "invalid request body"))
		return
	}

	checkout, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, checkout)
}

// Status is the endpoint clients poll while waiting for settlement.
// While the intent is pending it also runs confirmation detection, so
// polling is what moves a paid-for intent to confirmed.
func (h *Handler) Status(c *gin.Context) {
	id, ok := h.intentID(c)
	if !ok {
		return
	}
	status, err := h.service.CheckAndConfirm(c.Request.Context(), id)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) Consume(c *gin.Context) {
	id, ok := h.intentID(c)
	if !ok {
		return
	}
	consumed, err := h.service.Consume(c.Request.Context(), id)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, consumed)
}

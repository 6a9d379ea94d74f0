package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "paidping-backend/internal/common/errors"
	"paidping-backend/internal/common/middleware"
	"paidping-backend/internal/features/auth/models"
	"paidping-backend/internal/features/auth/service"
)

type Handler struct {
	service service.AuthService
}

func NewHandler(service service.AuthService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/auth")
	{
		auth.POST("/nonce", h.Nonce)
		auth.POST("/verify", h.Verify)
	}
}

func (h *Handler) Nonce(c *gin.Context) {
	challenge, err := h.service.Issue(c.Request.Context(), c.ClientIP())
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, challenge)
}

func (h *Handler) Verify(c *gin.Context) {
	var req models.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, apperrors.New(apperrors.ErrCodeValidation, "invalid request body"))
		return
	}

	session, err := h.service.Verify(c.Request.Context(), c.ClientIP(), req)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

package http

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "paidping-backend/internal/common/errors"
	"paidping-backend/internal/common/logger"
	"paidping-backend/internal/common/middleware"
	"paidping-backend/internal/features/admin/service"
)

// AdminTokenHeader gates maintenance endpoints with a shared secret.
const AdminTokenHeader = "X-Admin-Token"

type Handler struct {
	service    service.AdminService
	resetToken string
}

func NewHandler(service service.AdminService, resetToken string) *Handler {
	return &Handler{service: service, resetToken: resetToken}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	admin := router.Group("/admin")
	{
		admin.POST("/reset", h.Reset)
	}
}

func (h *Handler) Reset(c *gin.Context) {
	// An unset token disables the endpoint entirely.
	token := c.GetHeader(AdminTokenHeader)
	if h.resetToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.resetToken)) != 1 {
		middleware.AbortWithError(c, apperrors.New(apperrors.ErrCodeForbidden, "admin token required"))
		return
	}

	result, err := h.service.Reset(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, apperrors.NewInternal(err))
		return
	}

	logger.Warn().
		Int64("messages", result.Messages).
		Int64("intents", result.Intents).
		Int64("profiles", result.Profiles).
		Msg("bulk reset executed")
	c.JSON(http.StatusOK, result)
}

package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "paidping-backend/internal/common/errors"
	"paidping-backend/internal/common/middleware"
	authmw "paidping-backend/internal/features/auth/middleware"
	"paidping-backend/internal/features/message/models"
	"paidping-backend/internal/features/message/service"
	paymentmodels "paidping-backend/internal/features/payment/models"
	paymentservice "paidping-backend/internal/features/payment/service"
	profileservice "paidping-backend/internal/features/profile/service"
)

// PaymentHeader carries the inline payment proof on the sync path.
const PaymentHeader = "X-PAYMENT"

type Handler struct {
	service  service.MessageService
	payments *paymentservice.PaymentService
	profiles profileservice.ProfileService
}

func NewHandler(service service.MessageService, payments *paymentservice.PaymentService, profiles profileservice.ProfileService) *Handler {
	return &Handler{service: service, payments: payments, profiles: profiles}
}

// RegisterRoutes mounts the public pay-then-retry endpoint;
// RegisterProtected mounts the recipient inbox surface.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/pings", h.SendPing)
}

func (h *Handler) RegisterProtected(router *gin.RouterGroup) {
	me := router.Group("/me")
	{
		me.GET("/messages", h.List)
		me.GET("/messages/:id", h.Get)
		me.PATCH("/messages/:id/status", h.SetStatus)
		me.GET("/stats", h.Stats)
	}
}

type sendPingRequest struct {
	ToHandle      string `json:"toHandle" binding:"required"`
	Tier          string `json:"tier" binding:"required"`
	Body          string `json:"body" binding:"required"`
	SenderName    string `json:"senderName"`
	SenderContact string `json:"senderContact"`
}

func (h *Handler) SendPing(c *gin.Context) {
	var req sendPingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, apperrors.New(apperrors.ErrCodeValidation, "invalid request body"))
		return
	}

	tier := paymentmodels.Tier(req.Tier)
	if !tier.Valid() {
		middleware.AbortWithError(c, apperrors.Newf(apperrors.ErrCodeValidation, "unknown tier %q", req.Tier))
		return
	}

	recipient, err := h.profiles.Resolve(c.Request.Context(), req.ToHandle)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if recipient == nil {
		middleware.AbortWithError(c, apperrors.Newf(apperrors.ErrCodeRecipientNotFound, "no profile for handle %q", req.ToHandle))
		return
	}

	header := c.GetHeader(PaymentHeader)
	if header == "" {
		// No proof attached: describe what settling this ping takes.
		// No side effects.
		c.JSON(http.StatusPaymentRequired, paymentmodels.PaymentRequired{
			X402Version: paymentmodels.ProtocolVersion,
			Error:       "payment required",
			Accepts: []paymentmodels.Requirements{
				h.payments.BuildRequirements(tier, recipient.OwnerWallet, c.Request.URL.Path),
			},
		})
		return
	}

	proof, err := h.payments.ParseInline(header)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	result, err := h.service.Admit(c.Request.Context(), service.AdmitRequest{
		ToHandle:      req.ToHandle,
		Tier:          tier,
		Body:          req.Body,
		SenderName:    req.SenderName,
		SenderContact: req.SenderContact,
		Proof:         proof,
	})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Deduped {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

func (h *Handler) messageID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		middleware.AbortWithError(c, apperrors.New(apperrors.ErrCodeValidation, "malformed message id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) List(c *gin.Context) {
	var status *models.Status
	if raw := c.Query("status"); raw != "" {
		s := models.Status(raw)
		status = &s
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			middleware.AbortWithError(c, apperrors.New(apperrors.ErrCodeValidation, "malformed limit"))
			return
		}
		limit = parsed
	}

	page, err := h.service.List(c.Request.Context(), authmw.SessionProfileID(c), status, c.Query("cursor"), limit)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := h.messageID(c)
	if !ok {
		return
	}
	msg, err := h.service.Get(c.Request.Context(), authmw.SessionProfileID(c), id)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

type setStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) SetStatus(c *gin.Context) {
	id, ok := h.messageID(c)
	if !ok {
		return
	}

	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, apperrors.New(apperrors.ErrCodeValidation, "invalid request body"))
		return
	}

	msg, err := h.service.SetStatus(c.Request.Context(), authmw.SessionProfileID(c), id, models.Status(req.Status))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), authmw.SessionProfileID(c))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "paidping-backend/internal/common/errors"
	commonmw "paidping-backend/internal/common/middleware"
	authmw "paidping-backend/internal/features/auth/middleware"
	paymentmodels "paidping-backend/internal/features/payment/models"
	"paidping-backend/internal/features/profile/models"
	"paidping-backend/internal/features/profile/service"
)

type Handler struct {
	service service.ProfileService
}

func NewHandler(service service.ProfileService) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the public profile card; RegisterProtected
// mounts the session-scoped mutation.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/profiles/:handle", h.GetByHandle)
}

func (h *Handler) RegisterProtected(router *gin.RouterGroup) {
	router.PUT("/profiles/me", h.UpdateMe)
}

type profileCard struct {
	Handle      string           `json:"handle"`
	DisplayName string           `json:"displayName"`
	Bio         string           `json:"bio,omitempty"`
	PriceCents  map[string]int64 `json:"priceCents"`
}

func priceSchedule() map[string]int64 {
	return map[string]int64{
		string(paymentmodels.TierStandard): paymentmodels.TierStandard.PriceCents(),
		string(paymentmodels.TierPriority): paymentmodels.TierPriority.PriceCents(),
		string(paymentmodels.TierVIP):      paymentmodels.TierVIP.PriceCents(),
	}
}

func (h *Handler) GetByHandle(c *gin.Context) {
	profile, err := h.service.Resolve(c.Request.Context(), c.Param("handle"))
	if err != nil {
		commonmw.AbortWithError(c, err)
		return
	}
	if profile == nil {
		commonmw.AbortWithError(c, apperrors.New(apperrors.ErrCodeNotFound, "profile not found"))
		return
	}

	c.JSON(http.StatusOK, profileCard{
		Handle:      profile.Handle,
		DisplayName: profile.DisplayName,
		Bio:         profile.Bio,
		PriceCents:  priceSchedule(),
	})
}

type updateMeRequest struct {
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio"`
}

func (h *Handler) UpdateMe(c *gin.Context) {
	var req updateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		commonmw.AbortWithError(c, apperrors.New(apperrors.ErrCodeValidation, "invalid request body"))
		return
	}

	// Re-claiming the session's own handle is the update path.
	profile, err := h.service.Claim(c.Request.Context(), models.ClaimRequest{
		Handle:      authmw.SessionHandle(c),
		DisplayName: req.DisplayName,
		OwnerWallet: authmw.SessionWallet(c),
		Bio:         req.Bio,
	})
	if err != nil {
		commonmw.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

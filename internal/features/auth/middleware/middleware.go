package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "paidping-backend/internal/common/errors"
	commonmw "paidping-backend/internal/common/middleware"
	"paidping-backend/internal/features/auth/service"
)

const (
	ctxWallet    = "auth_wallet"
	ctxHandle    = "auth_handle"
	ctxProfileID = "auth_profile_id"
)

// RequireSession rejects requests without a valid bearer session token
// and exposes the session identity to downstream handlers.
func RequireSession(auth service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			commonmw.AbortWithError(c, apperrors.New(apperrors.ErrCodeUnauthorized, "missing bearer token"))
			return
		}

		claims, err := auth.ParseSession(token)
		if err != nil {
			commonmw.AbortWithError(c, err)
			return
		}

		c.Set(ctxWallet, claims.Wallet)
		c.Set(ctxHandle, claims.Handle)
		c.Set(ctxProfileID, claims.ProfileID)
		c.Next()
	}
}

// SessionWallet returns the authenticated wallet address.
func SessionWallet(c *gin.Context) string {
	return c.GetString(ctxWallet)
}

// SessionHandle returns the authenticated handle.
func SessionHandle(c *gin.Context) string {
	return c.GetString(ctxHandle)
}

// SessionProfileID returns the authenticated profile id, or uuid.Nil
// outside a session.
func SessionProfileID(c *gin.Context) uuid.UUID {
	v, ok := c.Get(ctxProfileID)
	if !ok {
		return uuid.Nil
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}

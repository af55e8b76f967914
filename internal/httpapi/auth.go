package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"voicechat-platform/internal/auth"
	"voicechat-platform/pkg/logger"
)

type loginRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	FirstName string `json:"first_name"`
}

// Login issues a token pair for the given identity and provisions the
// first-touch records behind it: the wallet entitlement and the profile
// persona. Credential verification is delegated to the fronting identity
// provider; this endpoint trusts its subject.
func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	ctx := c.Request.Context()
	if err := h.wallet.Initialize(ctx, userID); err != nil {
		logger.FromGin(c).Error("wallet init on login failed", "user_id", userID, "err", err)
	}
	if req.FirstName != "" {
		p, err := h.profiles.Get(ctx, userID)
		if err == nil {
			p.FirstName = req.FirstName
			if err := h.profiles.Save(ctx, p); err != nil {
				logger.FromGin(c).Error("profile save on login failed", "user_id", userID, "err", err)
			}
		}
	}
	if err := h.profiles.EnsurePersona(ctx, userID); err != nil {
		logger.FromGin(c).Error("persona backfill failed", "user_id", userID, "err", err)
	}

	pair, err := h.auth.IssuePair(time.Now(), userID)
	if err != nil {
		logger.FromGin(c).Error("token issuance failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue tokens"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h *Handlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh_token is required"})
		return
	}

	claims, err := h.auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, time.Now())
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	pair, err := h.auth.IssuePair(time.Now(), claims.UserID)
	if err != nil {
		logger.FromGin(c).Error("token issuance failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue tokens"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

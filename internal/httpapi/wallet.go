package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"voicechat-platform/internal/wallet"
	"voicechat-platform/pkg/logger"
)

func (h *Handlers) WalletBalance(c *gin.Context) {
	userID := currentUserID(c)
	balance := h.wallet.GetBalance(c.Request.Context(), userID)
	c.JSON(http.StatusOK, gin.H{
		"balance_seconds": balance,
		"formatted":       wallet.FormatSeconds(balance),
	})
}

type topUpRequest struct {
	Minutes int64 `json:"minutes" binding:"required"`
}

func (h *Handlers) WalletTopUp(c *gin.Context) {
	var req topUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "minutes is required"})
		return
	}

	w, err := h.wallet.Credit(c.Request.Context(), currentUserID(c), req.Minutes)
	if err != nil {
		if errors.Is(err, wallet.ErrInvalidArgument) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "minutes must be positive"})
			return
		}
		logger.FromGin(c).Error("top-up failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "top-up failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"balance_seconds": w.BalanceSeconds,
		"formatted":       wallet.FormatSeconds(w.BalanceSeconds),
		"last_loaded":     w.LastLoaded,
	})
}

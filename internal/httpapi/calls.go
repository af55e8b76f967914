package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"voicechat-platform/internal/session"
	"voicechat-platform/internal/voice"
	"voicechat-platform/pkg/logger"
)

type startCallRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (h *Handlers) StartCall(c *gin.Context) {
	var req startCallRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
			return
		}
	}

	snap, err := h.sessions.Start(c.Request.Context(), currentUserID(c), session.StartParams{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	})
	if err != nil {
		switch {
		case errors.Is(err, session.ErrInsufficientBalance):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient balance"})
		case errors.Is(err, session.ErrSessionActive):
			c.JSON(http.StatusConflict, gin.H{"error": "a call is already active"})
		case errors.Is(err, voice.ErrServiceUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "voice service unavailable"})
		case errors.Is(err, voice.ErrBadCredentials), errors.Is(err, voice.ErrAgentNotFound):
			logger.FromGin(c).Error("voice service rejected call", "err", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "voice service rejected the call"})
		default:
			logger.FromGin(c).Error("call start failed", "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start call"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"call_id": snap.CallID,
		"status":  snap.Status,
	})
}

func (h *Handlers) HangUpCall(c *gin.Context) {
	err := h.sessions.HangUp(c.Request.Context(), currentUserID(c))
	if err != nil {
		if errors.Is(err, session.ErrNoActiveSession) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active call"})
			return
		}
		logger.FromGin(c).Error("hangup failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not hang up"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": session.StatusDisconnected})
}

func (h *Handlers) CallState(c *gin.Context) {
	snap := h.sessions.Snapshot(currentUserID(c))
	c.JSON(http.StatusOK, snap)
}

func (h *Handlers) CallStats(c *gin.Context) {
	userID := currentUserID(c)
	c.JSON(http.StatusOK, gin.H{
		"total_calls": h.stats.Total(c.Request.Context(), userID),
	})
}

func (h *Handlers) CallTranscripts(c *gin.Context) {
	callID := c.Param("call_id")
	snap, ok, err := h.transcripts.Get(c.Request.Context(), callID)
	if err != nil {
		logger.FromGin(c).Error("transcript lookup failed", "call_id", callID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "transcript lookup failed"})
		return
	}
	// Missing and foreign calls are indistinguishable to the caller.
	if !ok || snap.UserID != currentUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

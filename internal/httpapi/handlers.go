// Package httpapi exposes the service over HTTP. Handlers stay thin: bind,
// call a service, map domain errors to status codes.
package httpapi

import (
	"database/sql"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"voicechat-platform/internal/auth"
	"voicechat-platform/internal/callstats"
	"voicechat-platform/internal/prefs"
	"voicechat-platform/internal/session"
	"voicechat-platform/internal/transcripts"
	"voicechat-platform/internal/wallet"
)

type Handlers struct {
	auth        *auth.Manager
	wallet      *wallet.Service
	sessions    *session.Registry
	transcripts *transcripts.Service
	stats       *callstats.Service
	profiles    *prefs.Service

	db  *sql.DB
	rdb *redis.Client
}

type Deps struct {
	Auth        *auth.Manager
	Wallet      *wallet.Service
	Sessions    *session.Registry
	Transcripts *transcripts.Service
	Stats       *callstats.Service
	Profiles    *prefs.Service

	DB    *sql.DB
	Redis *redis.Client
}

func NewHandlers(d Deps) *Handlers {
	return &Handlers{
		auth:        d.Auth,
		wallet:      d.Wallet,
		sessions:    d.Sessions,
		transcripts: d.Transcripts,
		stats:       d.Stats,
		profiles:    d.Profiles,
		db:          d.DB,
		rdb:         d.Redis,
	}
}

// RegisterRoutes mounts the public and authenticated route groups.
func (h *Handlers) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/v1")
	v1.POST("/auth/login", h.Login)
	v1.POST("/auth/refresh", h.Refresh)

	authed := v1.Group("")
	authed.Use(auth.RequireAccessToken(h.auth))
	{
		authed.GET("/wallet/balance", h.WalletBalance)
		authed.POST("/wallet/topup", h.WalletTopUp)

		authed.POST("/calls/start", h.StartCall)
		authed.POST("/calls/hangup", h.HangUpCall)
		authed.GET("/calls/state", h.CallState)
		authed.GET("/calls/stats", h.CallStats)
		authed.GET("/calls/:call_id/transcripts", h.CallTranscripts)
	}
}

func currentUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

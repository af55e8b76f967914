package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"voicechat-platform/internal/auth"
	"voicechat-platform/internal/callstats"
	"voicechat-platform/internal/config"
	"voicechat-platform/internal/geo"
	"voicechat-platform/internal/httpapi"
	"voicechat-platform/internal/prefs"
	"voicechat-platform/internal/session"
	"voicechat-platform/internal/transcripts"
	"voicechat-platform/internal/voice"
	"voicechat-platform/internal/wallet"
	"voicechat-platform/pkg/logger"
	"voicechat-platform/pkg/utils"
)

func main() {
	// Optional .env for local runs; real deployments inject env directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres open failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis open failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	authMgr, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth manager init failed", "err", err)
		os.Exit(1)
	}

	walletSvc := wallet.NewService(wallet.NewPostgresRepository(db))
	statsSvc := callstats.NewService(callstats.NewPostgresRepository(db))
	transcriptSvc := transcripts.NewService(transcripts.NewPostgresRepository(db))
	profileSvc := prefs.NewService(prefs.NewPostgresRepository(db))
	geoSvc := geo.NewService(cfg.Geo)

	registry := session.NewRegistry(session.Deps{
		Wallet:            walletSvc,
		Stats:             statsSvc,
		Calls:             voice.NewClient(cfg.Voice),
		Profiles:          profileSvc,
		Transcripts:       transcriptSvc,
		Geo:               geoSvc,
		ConnectTimeout:    cfg.Voice.ConnectTimeout,
		MinBalanceSeconds: cfg.Voice.MinBalanceSeconds,
	}, session.NewRedisGuard(rdb))

	handlers := httpapi.NewHandlers(httpapi.Deps{
		Auth:        authMgr,
		Wallet:      walletSvc,
		Sessions:    registry,
		Transcripts: transcriptSvc,
		Stats:       statsSvc,
		Profiles:    profileSvc,
		DB:          db,
		Redis:       rdb,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), logger.Middleware(log))
	handlers.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errC := make(chan error, 1)
	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		errC <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errC:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}
	_ = logger.ShutdownFlush(shutdownCtx, time.Second)
	log.Info("api stopped")
}

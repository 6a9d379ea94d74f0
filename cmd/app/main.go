package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"paidping-backend/internal/common/config"
	"paidping-backend/internal/common/logger"
	"paidping-backend/internal/common/middleware"
	"paidping-backend/internal/common/ratelimit"
	adminhttp "paidping-backend/internal/features/admin/handler/http"
	adminservice "paidping-backend/internal/features/admin/service"
	authhttp "paidping-backend/internal/features/auth/handler/http"
	authmw "paidping-backend/internal/features/auth/middleware"
	noncerepo "paidping-backend/internal/features/auth/repository/redis"
	authservice "paidping-backend/internal/features/auth/service"
	intenthttp "paidping-backend/internal/features/intent/handler/http"
	intentrepo "paidping-backend/internal/features/intent/repository/gorm"
	intentservice "paidping-backend/internal/features/intent/service"
	messagehttp "paidping-backend/internal/features/message/handler/http"
	messagerepo "paidping-backend/internal/features/message/repository/gorm"
	messageservice "paidping-backend/internal/features/message/service"
	paymentservice "paidping-backend/internal/features/payment/service"
	profilehttp "paidping-backend/internal/features/profile/handler/http"
	profilerepo "paidping-backend/internal/features/profile/repository/gorm"
	profileservice "paidping-backend/internal/features/profile/service"
	"paidping-backend/internal/platform/db"
	platformredis "paidping-backend/internal/platform/redis"
	platformsolana "paidping-backend/internal/platform/solana"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger.Init("paidping-backend", cfg.Debug)
	logger.Info().Bool("debug", cfg.Debug).Msg("starting paidping backend")

	gormDB, err := db.Open(cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate schema")
	}
	logger.Info().Msg("database ready")

	ctx := context.Background()
	redisClient, err := platformredis.Open(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	logger.Info().Str("addr", cfg.Redis.Addr).Msg("redis ready")

	chain := platformsolana.NewClient(cfg.Solana.RPCURL)

	limiter := ratelimit.NewRedisLimiter(redisClient, map[string]ratelimit.Limit{
		ratelimit.PurposePayer:      {Events: cfg.RateLimit.PayerPerHour, Window: time.Hour, Burst: cfg.RateLimit.PayerBurst},
		ratelimit.PurposePayerPair:  {Events: cfg.RateLimit.PairPerMinute, Window: time.Minute, Burst: cfg.RateLimit.PairBurst},
		ratelimit.PurposeNonceIssue: {Events: cfg.RateLimit.NoncePerMin, Window: time.Minute, Burst: cfg.RateLimit.NonceBurst},
		ratelimit.PurposeAuthVerify: {Events: cfg.RateLimit.NoncePerMin, Window: time.Minute, Burst: cfg.RateLimit.NonceBurst},
	})

	profiles := profileservice.NewProfileService(profilerepo.NewProfileRepository(gormDB))
	payments := paymentservice.NewPaymentService(chain, cfg.Solana.Network, cfg.Solana.USDCMint)
	messages := messageservice.NewMessageService(messagerepo.NewMessageRepository(gormDB), profiles, limiter)
	intents := intentservice.NewIntentService(intentrepo.NewIntentRepository(gormDB), profiles, payments, intentservice.Config{
		Network:      cfg.Solana.Network,
		USDCMint:     cfg.Solana.USDCMint,
		ExplorerBase: cfg.Solana.ExplorerBase,
	})
	auth := authservice.NewAuthService(noncerepo.NewNonceRepository(redisClient), profiles, limiter, authservice.ChallengeConfig{
		Domain:        cfg.Auth.Domain,
		URI:           cfg.Auth.URI,
		ChainID:       cfg.Auth.ChainID,
		SessionSecret: cfg.Auth.SessionSecret,
		SessionTTL:    cfg.Auth.SessionTTL,
		NonceTTL:      cfg.Auth.NonceTTL,
	})
	admin := adminservice.NewAdminService(gormDB)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept", messagehttp.PaymentHeader, adminhttp.AdminTokenHeader}
	router.Use(cors.New(corsConfig))

	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/health/ready", func(c *gin.Context) {
		sqlDB, err := gormDB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err == nil {
			err = redisClient.Ping(c.Request.Context()).Err()
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	authhttp.NewHandler(auth).RegisterRoutes(v1)
	profileHandler := profilehttp.NewHandler(profiles)
	profileHandler.RegisterRoutes(v1)
	messageHandler := messagehttp.NewHandler(messages, payments, profiles)
	messageHandler.RegisterRoutes(v1)
	intenthttp.NewHandler(intents).RegisterRoutes(v1)
	adminhttp.NewHandler(admin, cfg.Admin.ResetToken).RegisterRoutes(v1)

	protected := v1.Group("")
	protected.Use(authmw.RequireSession(auth))
	profileHandler.RegisterProtected(protected)
	messageHandler.RegisterProtected(protected)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}
	logger.Info().Msg("server exited")
}

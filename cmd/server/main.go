// Package main runs the gala event HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lumina-gala/backend/config"
	"github.com/lumina-gala/backend/internal/assets"
	"github.com/lumina-gala/backend/internal/auth"
	"github.com/lumina-gala/backend/internal/checkin"
	"github.com/lumina-gala/backend/internal/draw"
	"github.com/lumina-gala/backend/internal/events"
	"github.com/lumina-gala/backend/internal/middleware"
	"github.com/lumina-gala/backend/internal/realtime"
	"github.com/lumina-gala/backend/internal/roster"
	"github.com/lumina-gala/backend/pkg/database"
	"github.com/lumina-gala/backend/pkg/redis"
	"github.com/lumina-gala/backend/pkg/response"
	"github.com/lumina-gala/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			AssetsBucket:         cfg.AWS.AssetsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Events
	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, logger)

	// Draw engine: one state machine per event, snapshots in Redis, realtime
	// frames through the hub.
	drawRegistry := draw.NewRegistry(rdb.Client,
		func(eventID uuid.UUID) draw.Broadcaster { return hub.Broadcaster(eventID) },
		logger,
		draw.WithTickInterval(time.Duration(cfg.Draw.TickMillis)*time.Millisecond),
	)
	drawHandler := draw.NewHandler(drawRegistry, logger)

	// Roster (shared by the draw pool and the check-in list)
	rosterRepo := roster.NewRepository(pool)
	rosterHandler := roster.NewHandler(rosterRepo, drawRegistry, logger)

	// Check-in
	checkinRepo := checkin.NewRepository(pool)
	sessionManager := checkin.NewManager(checkinRepo,
		func(eventID uuid.UUID) checkin.Broadcaster { return hub.Broadcaster(eventID) },
		logger,
		checkin.WithDefaultDuration(time.Duration(cfg.Checkin.DefaultSessionMinutes)*time.Minute),
	)
	arrivalFeed := checkin.NewFeed(rdb.Client,
		func(eventID uuid.UUID) checkin.Broadcaster { return hub.Broadcaster(eventID) },
		logger,
		time.Duration(cfg.Checkin.FeedDwellSeconds)*time.Second,
	)
	checkinHandler := checkin.NewHandler(checkinRepo, rosterRepo, eventRepo, sessionManager, arrivalFeed, logger)

	// Assets (prize images and event covers on S3)
	assetsHandler := assets.NewHandler(eventRepo, drawRegistry, s3Client, logger)

	jwtValidate := func(token string) (userID, role string, err error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", "", err
		}
		return claims.UserID.String(), claims.Role, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Public: big-screen displays and attendee phones bootstrap without a
	// login. Check-in itself is public too; the open session window is the
	// gate, not a JWT.
	router.GET("/events/active", eventHandler.GetActive)
	router.GET("/events/:id", eventHandler.GetByID)
	router.GET("/events/:id/draw", drawHandler.GetState)
	router.GET("/events/:id/draw/records", drawHandler.ListRecords)
	router.GET("/events/:id/draw/tiers/:tierId/winners", drawHandler.TierWinners)
	router.POST("/events/:id/checkins", checkinHandler.CheckIn)
	router.GET("/events/:id/checkins/session", checkinHandler.GetSession)
	router.GET("/events/:id/checkins/stats", checkinHandler.Stats)
	router.GET("/events/:id/assets/image", assetsHandler.GetImage)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Users (admin only)
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)

		// Events
		api.GET("/events", eventHandler.List)
		api.POST("/events", eventHandler.Create)
		api.PATCH("/events/:id", eventHandler.Update)
		api.POST("/events/:id/status", eventHandler.SetStatus)
		api.DELETE("/events/:id", eventHandler.Delete)

		// Roster
		api.GET("/events/:id/roster", rosterHandler.List)
		api.POST("/events/:id/roster", rosterHandler.Add)
		api.POST("/events/:id/roster/import", rosterHandler.Import)
		api.DELETE("/events/:id/roster/:employeeId", rosterHandler.Delete)
		api.DELETE("/events/:id/roster", rosterHandler.Clear)

		// Draw controls
		api.POST("/events/:id/draw/tier", drawHandler.SelectTier)
		api.POST("/events/:id/draw/batch-size", drawHandler.SetBatchSize)
		api.POST("/events/:id/draw/start", drawHandler.Start)
		api.POST("/events/:id/draw/stop", drawHandler.Stop)
		api.POST("/events/:id/draw/records/:recordId/undo", drawHandler.Undo)
		api.POST("/events/:id/draw/reset", drawHandler.Reset)
		api.DELETE("/events/:id/draw", drawHandler.ClearAll)
		api.PUT("/events/:id/draw/prizes", drawHandler.SetPrizes)
		api.GET("/events/:id/draw/export", rosterHandler.ExportRecords)

		// Check-in session and records
		api.POST("/events/:id/checkins/session", checkinHandler.OpenSession)
		api.DELETE("/events/:id/checkins/session", checkinHandler.CloseSession)
		api.GET("/events/:id/checkins", checkinHandler.List)
		api.DELETE("/events/:id/checkins", checkinHandler.Clear)

		// Assets (S3-backed images)
		api.POST("/events/:id/assets/generate-upload-url", assetsHandler.GenerateUploadURL)
		api.POST("/events/:id/prizes/:tierId/image", assetsHandler.UploadPrizeImage)
		api.POST("/events/:id/cover", assetsHandler.UploadCover)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	sessionManager.Shutdown()
	arrivalFeed.Shutdown()
	drawRegistry.Shutdown()
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}

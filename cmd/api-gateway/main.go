package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/evaclass/eva-api/api/swagger"
	"github.com/evaclass/eva-api/internal/handler"
	"github.com/evaclass/eva-api/internal/middleware"
	"github.com/evaclass/eva-api/internal/models"
	"github.com/evaclass/eva-api/internal/realtime"
	"github.com/evaclass/eva-api/internal/repository"
	"github.com/evaclass/eva-api/internal/service"
	"github.com/evaclass/eva-api/pkg/cache"
	"github.com/evaclass/eva-api/pkg/config"
	"github.com/evaclass/eva-api/pkg/database"
	"github.com/evaclass/eva-api/pkg/logger"
	corsmiddleware "github.com/evaclass/eva-api/pkg/middleware/cors"
	reqidmiddleware "github.com/evaclass/eva-api/pkg/middleware/requestid"
	"github.com/evaclass/eva-api/pkg/storage"
)

// @title EVA Classroom API
// @version 1.0.0
// @description Anonymous classroom Q&A with policy screening
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching and realtime disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	classRepo := repository.NewClassRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	threadRepo := repository.NewThreadRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	exportRepo := repository.NewExportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	var broker *realtime.Broker
	if cfg.Realtime.Enabled {
		broker = realtime.NewBroker(redisClient, cfg.Realtime.ChannelPrefix, logr)
	}

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "eva-api",
		Audience:           []string{"eva-classroom"},
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, validate, logr)
	scheduleSvc := service.NewScheduleService(scheduleRepo, classRepo, userRepo, validate, logr, nil)
	messageSvc := service.NewMessageService(messageRepo, classRepo, scheduleRepo, cacheRepo, broker, metricsSvc, validate, logr, nil)
	threadSvc := service.NewThreadService(threadRepo, classRepo, userRepo, scheduleRepo, cacheRepo, broker, metricsSvc, validate, logr, nil)
	analyticsSvc := service.NewAnalyticsService(analyticsRepo, classRepo, cacheRepo, metricsSvc, logr, service.AnalyticsConfig{
		CacheTTL:       cfg.Analytics.CacheTTL,
		SpikeThreshold: cfg.Analytics.SpikeThreshold,
		TimelineBucket: cfg.Analytics.TimelineBucket,
	})

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(exportRepo, analyticsSvc, userRepo, store, signer, service.ExportConfig{
			APIPrefix:         cfg.APIPrefix,
			ResultTTL:         cfg.Exports.SignedURLTTL,
			WorkerConcurrency: cfg.Exports.WorkerConcurrency,
			WorkerRetries:     cfg.Exports.WorkerRetries,
		}, logr, nil, nil)
		exportSvc.Start(ctx)
		defer exportSvc.Stop()
	}

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	classHandler := handler.NewClassHandler(classSvc)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)
	messageHandler := handler.NewMessageHandler(messageSvc)
	threadHandler := handler.NewThreadHandler(threadSvc)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.POST("/auth/logout", authHandler.Logout)
	authed.POST("/auth/change-password", authHandler.ChangePassword)
	authed.GET("/auth/me", authHandler.Me)

	users := authed.Group("/users")
	{
		users.GET("", middleware.RequireRoles(models.RoleAdmin), userHandler.List)
		users.POST("", middleware.RequireRoles(models.RoleAdmin), userHandler.Create)
		users.GET("/:id", middleware.RBAC("ADMIN", "SELF"), userHandler.Get)
		users.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Update)
		users.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Delete)
	}

	classes := authed.Group("/classes")
	{
		classes.GET("", classHandler.List)
		classes.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor), classHandler.Create)
		classes.POST("/join", classHandler.Join)
		classes.GET("/:id", classHandler.Get)
		classes.PUT("/:id", classHandler.Update)
		classes.DELETE("/:id", classHandler.Delete)

		classes.GET("/:id/schedules", scheduleHandler.List)
		classes.POST("/:id/schedules", scheduleHandler.Create)
		classes.PUT("/:id/schedules/:scheduleId", scheduleHandler.Update)
		classes.DELETE("/:id/schedules/:scheduleId", scheduleHandler.Delete)
		classes.GET("/:id/availability", scheduleHandler.Availability)

		classes.GET("/:id/messages", messageHandler.List)
		classes.POST("/:id/messages", messageHandler.Send)
		classes.POST("/:id/messages/preview", messageHandler.Preview)
		classes.DELETE("/:id/messages/:messageId", messageHandler.Delete)

		classes.GET("/:id/threads", threadHandler.List)
		classes.POST("/:id/threads", threadHandler.Create)
		classes.GET("/:id/threads/:threadId", threadHandler.Get)
		classes.DELETE("/:id/threads/:threadId", threadHandler.Delete)
		classes.POST("/:id/threads/:threadId/upvote", threadHandler.Upvote)
		classes.POST("/:id/threads/:threadId/replies", threadHandler.CreateReply)
		classes.POST("/:id/threads/:threadId/replies/:replyId/upvote", threadHandler.UpvoteReply)
		classes.PATCH("/:id/threads/:threadId/replies/:replyId/validate", threadHandler.ValidateReply)
		classes.DELETE("/:id/threads/:threadId/replies/:replyId", threadHandler.DeleteReply)

		classes.GET("/:id/analytics", analyticsHandler.ClassAnalytics)
	}

	authed.GET("/analytics/system", middleware.RequireRoles(models.RoleAdmin), analyticsHandler.SystemMetrics)

	if broker != nil {
		streamHandler := handler.NewStreamHandler(broker, classSvc)
		classes.GET("/:id/stream", streamHandler.Stream)
	}

	if exportSvc != nil {
		exportHandler := handler.NewExportHandler(exportSvc)
		classes.POST("/:id/exports", exportHandler.Request)
		classes.GET("/:id/exports", middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor), exportHandler.List)
		authed.GET("/exports/:jobId", exportHandler.Status)
		api.GET("/exports/download/:token", exportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}

	if redisClient != nil {
		_ = redisClient.Close()
	}
}

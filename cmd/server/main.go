// Package main runs the control plane HTTP server with the tenant-scoped
// upstream gateway, webhook ingestion, and graceful shutdown.
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

	"github.com/phishgate/backend/config"
	"github.com/phishgate/backend/internal/audit"
	"github.com/phishgate/backend/internal/auth"
	"github.com/phishgate/backend/internal/cache"
	"github.com/phishgate/backend/internal/events"
	"github.com/phishgate/backend/internal/gateway"
	"github.com/phishgate/backend/internal/middleware"
	"github.com/phishgate/backend/internal/models"
	"github.com/phishgate/backend/internal/realtime"
	"github.com/phishgate/backend/internal/reports"
	"github.com/phishgate/backend/internal/tenants"
	"github.com/phishgate/backend/internal/upstream"
	"github.com/phishgate/backend/pkg/database"
	"github.com/phishgate/backend/pkg/queue"
	"github.com/phishgate/backend/pkg/redis"
	"github.com/phishgate/backend/pkg/response"
	"github.com/phishgate/backend/pkg/storage"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Optional: archive downloads need object storage.
	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			ArchiveBucket:   cfg.AWS.ArchiveBucket,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Audit
	auditRepo := audit.NewRepository(pool)
	recorder := audit.NewRecorder(auditRepo, logger)
	auditHandler := audit.NewHandler(auditRepo)

	// Tenants
	tenantRepo := tenants.NewRepository(pool)
	resolver := tenants.NewResolver(tenantRepo, recorder, logger)
	tenantContext := tenants.RequireTenantContext(resolver)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, tenantRepo, jwtService, recorder, logger)
	tenantHandler := tenants.NewHandler(tenantRepo, authRepo, recorder, logger)

	// Upstream gateway with cache fallback
	cacheRepo := cache.NewRepository(pool)
	gw := gateway.New(cacheRepo, recorder, upstream.Options{
		CallTimeout: cfg.Upstream.CallTimeout,
		MaxRetries:  cfg.Upstream.MaxRetries,
		BackoffBase: cfg.Upstream.BackoffBase,
		Logger:      logger,
	}, logger)
	gatewayHandler := gateway.NewHandler(gw, tenantRepo, recorder, logger)

	// Event ingestion
	eventRepo := events.NewRepository(pool)
	pipeline := events.NewPipeline(eventRepo, cacheRepo, hub, logger)
	eventHandler := events.NewHandler(pipeline, eventRepo, tenantRepo, jobQueue, s3Client, recorder, logger)

	// Reports
	reportRepo := reports.NewRepository(pool)
	reportHandler := reports.NewHandler(reportRepo, logger)

	// The feed applies the same membership and active-status gate as the
	// HTTP API: a member of a suspended tenant cannot hold a live feed.
	feedAuthorize := func(ctx context.Context, token string, tenantID uuid.UUID) (*models.Principal, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return nil, err
		}
		p := claims.Principal()
		if _, err := resolver.Resolve(ctx, p, &tenantID); err != nil {
			return nil, err
		}
		return &p, nil
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

	// Webhooks (no JWT; per-tenant token in header)
	router.POST("/webhooks/events", eventHandler.Webhook)

	// WebSocket event feed (token in query; no Authorization header possible)
	router.GET("/ws", realtime.ServeWs(hub, logger, feedAuthorize))

	// Platform administration (JWT, super-admin only; no tenant context)
	admin := router.Group("/tenants")
	admin.Use(auth.JWT(jwtService), middleware.RequirePlatformRole(models.RoleSuperAdmin))
	{
		admin.POST("", tenantHandler.Create)
		admin.GET("", tenantHandler.List)
		admin.GET("/:id", tenantHandler.Get)
		admin.PATCH("/:id", tenantHandler.Update)
		admin.PATCH("/:id/status", tenantHandler.UpdateStatus)
	}

	// Tenant-scoped API (JWT + resolved tenant context)
	api := router.Group("/api")
	api.Use(auth.JWT(jwtService), tenantContext)
	{
		tenantAdmin := middleware.RequireTenantRole(models.TenantRoleAdmin)

		// Membership and settings (tenant admin)
		api.GET("/members", tenantAdmin, tenantHandler.ListMembers)
		api.POST("/members", tenantAdmin, tenantHandler.AddMember)
		api.DELETE("/members/:userId", tenantAdmin, tenantHandler.RemoveMember)
		api.PATCH("/members/:userId/role", tenantAdmin, tenantHandler.UpdateMemberRole)
		api.GET("/settings", tenantAdmin, tenantHandler.GetSettings)
		api.PATCH("/settings", tenantAdmin, tenantHandler.UpdateSettings)

		// Campaigns (cache-backed reads, fail-closed writes)
		api.GET("/campaigns", gatewayHandler.ListCampaigns)
		api.POST("/campaigns", gatewayHandler.CreateCampaign)
		api.GET("/campaigns/:id", gatewayHandler.GetCampaign)
		api.GET("/campaigns/:id/results", gatewayHandler.GetCampaignResults)
		api.GET("/campaigns/:id/complete", gatewayHandler.CompleteCampaign)
		api.DELETE("/campaigns/:id", gatewayHandler.DeleteCampaign)

		// Groups
		api.GET("/groups", gatewayHandler.ListGroups)
		api.POST("/groups", gatewayHandler.CreateGroup)
		api.GET("/groups/:id", gatewayHandler.GetGroup)
		api.PUT("/groups/:id", gatewayHandler.UpdateGroup)
		api.DELETE("/groups/:id", gatewayHandler.DeleteGroup)
		api.POST("/import/group", gatewayHandler.ImportGroupCSV)

		// Templates
		api.GET("/templates", gatewayHandler.ListTemplates)
		api.POST("/templates", gatewayHandler.CreateTemplate)
		api.GET("/templates/:id", gatewayHandler.GetTemplate)
		api.PUT("/templates/:id", gatewayHandler.UpdateTemplate)
		api.DELETE("/templates/:id", gatewayHandler.DeleteTemplate)
		api.POST("/import/email", gatewayHandler.ImportEmail)

		// Landing pages
		api.GET("/pages", gatewayHandler.ListPages)
		api.POST("/pages", gatewayHandler.CreatePage)
		api.GET("/pages/:id", gatewayHandler.GetPage)
		api.PUT("/pages/:id", gatewayHandler.UpdatePage)
		api.DELETE("/pages/:id", gatewayHandler.DeletePage)
		api.POST("/import/site", gatewayHandler.ImportSite)

		// SMTP sending profiles
		api.GET("/smtp", gatewayHandler.ListSMTPProfiles)
		api.POST("/smtp", gatewayHandler.CreateSMTPProfile)
		api.GET("/smtp/:id", gatewayHandler.GetSMTPProfile)
		api.PUT("/smtp/:id", gatewayHandler.UpdateSMTPProfile)
		api.DELETE("/smtp/:id", gatewayHandler.DeleteSMTPProfile)

		// Upstream engine accounts (tenant admin)
		api.GET("/users", tenantAdmin, gatewayHandler.ListUpstreamUsers)
		api.POST("/users", tenantAdmin, gatewayHandler.CreateUpstreamUser)
		api.GET("/users/:id", tenantAdmin, gatewayHandler.GetUpstreamUser)
		api.PUT("/users/:id", tenantAdmin, gatewayHandler.UpdateUpstreamUser)
		api.DELETE("/users/:id", tenantAdmin, gatewayHandler.DeleteUpstreamUser)

		// Events
		api.GET("/events", eventHandler.List)
		api.DELETE("/events", tenantAdmin, eventHandler.Clear)
		api.GET("/events/archive-url", tenantAdmin, eventHandler.ArchiveURL)

		// Reports
		api.GET("/reports/timeline", reportHandler.Timeline)
		api.GET("/reports/heatmap", reportHandler.Heatmap)

		// Audit
		api.GET("/audit", tenantAdmin, auditHandler.List)
	}

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
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}

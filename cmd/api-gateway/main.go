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

	_ "github.com/campuside/admissions-api/api/swagger"
	"github.com/campuside/admissions-api/internal/handler"
	"github.com/campuside/admissions-api/internal/middleware"
	"github.com/campuside/admissions-api/internal/models"
	"github.com/campuside/admissions-api/internal/repository"
	"github.com/campuside/admissions-api/internal/service"
	"github.com/campuside/admissions-api/pkg/cache"
	"github.com/campuside/admissions-api/pkg/config"
	"github.com/campuside/admissions-api/pkg/database"
	"github.com/campuside/admissions-api/pkg/jobs"
	"github.com/campuside/admissions-api/pkg/logger"
	"github.com/campuside/admissions-api/pkg/mailer"
	corsmiddleware "github.com/campuside/admissions-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campuside/admissions-api/pkg/middleware/requestid"
)

// @title Campuside Admissions API
// @version 1.0.0
// @description Admission workflow engine for applicant intake, document verification, scheduling and enrollment
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	cacheEnabled := false
	var cacheRepo *repository.CacheRepository
	if redisClient, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
	} else {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		cacheEnabled = cfg.Dashboard.Enabled
		defer redisClient.Close()
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cacheEnabled)

	applicantRepo := repository.NewApplicantRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	programRepo := repository.NewProgramRepository(db)
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	eventRepo := repository.NewEventRepository(db)

	var mail mailer.Mailer
	if cfg.Mail.Provider == "sendgrid" && cfg.Mail.APIKey != "" {
		mail = mailer.NewSendGrid(cfg.Mail.APIKey, cfg.Mail.FromName, cfg.Mail.FromEmail)
	} else {
		mail = mailer.NewDummy(logr)
	}

	notificationSvc := service.NewNotificationService(notificationRepo, userRepo, mail, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	}, logr)

	eventSvc := service.NewEventService(eventRepo, notificationSvc, metricsSvc, logr)
	schedulerSvc := service.NewSchedulerService(scheduleRepo, notificationSvc, cfg.Admissions.ExamLeadDays, validate, logr)
	workflowSvc := service.NewWorkflowService(applicantRepo, documentRepo, schedulerSvc, eventSvc, logr)
	documentSvc := service.NewDocumentService(documentRepo, applicantRepo, workflowSvc, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(applicantRepo, studentRepo, programRepo, eventSvc, logr)
	applicantSvc := service.NewApplicantService(applicantRepo, documentRepo, eventSvc, cacheSvc, validate, logr)
	dashboardSvc := service.NewDashboardService(applicantRepo, scheduleRepo, cacheSvc, cfg.Dashboard.CacheTTL, logr)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "admissions-api",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Notifications.Enabled {
		notificationSvc.Start(ctx)
		defer notificationSvc.Stop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r, cfg, routeHandlers{
		auth:          handler.NewAuthHandler(authSvc),
		applicants:    handler.NewApplicantHandler(applicantSvc, workflowSvc, enrollmentSvc),
		documents:     handler.NewDocumentHandler(documentSvc),
		schedules:     handler.NewScheduleHandler(schedulerSvc),
		notifications: handler.NewNotificationHandler(notificationSvc),
		dashboard:     handler.NewDashboardHandler(dashboardSvc),
	}, authSvc)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type routeHandlers struct {
	auth          *handler.AuthHandler
	applicants    *handler.ApplicantHandler
	documents     *handler.DocumentHandler
	schedules     *handler.ScheduleHandler
	notifications *handler.NotificationHandler
	dashboard     *handler.DashboardHandler
}

func registerRoutes(r *gin.Engine, cfg *config.Config, h routeHandlers, authSvc *service.AuthService) {
	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)

	auth := api.Group("/auth")
	auth.POST("/login", h.auth.Login)
	auth.POST("/refresh", h.auth.Refresh)

	staff := []models.UserRole{models.RoleAdmin, models.RoleOfficer, models.RoleProgramHead, models.RoleRegistrar}

	secured := api.Group("")
	secured.Use(middleware.JWT(authSvc))

	applicants := secured.Group("/applicants")
	applicants.GET("", middleware.RequireRoles(staff...), h.applicants.List)
	applicants.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleOfficer), h.applicants.Create)
	applicants.POST("/enroll-batch", middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar), h.applicants.EnrollBatch)
	applicants.GET("/:id", middleware.RequireRoles(staff...), h.applicants.Get)
	applicants.GET("/:id/history", middleware.RequireRoles(staff...), h.applicants.History)
	applicants.GET("/:id/documents", middleware.RequireRoles(staff...), h.documents.ListByApplicant)
	applicants.GET("/:id/documents/evaluation", middleware.RequireRoles(staff...), h.documents.Evaluate)
	applicants.POST("/:id/approve", middleware.RequireRoles(staff...), h.applicants.Approve)
	applicants.POST("/:id/decline", middleware.RequireRoles(staff...), h.applicants.Decline)
	applicants.POST("/:id/interview", middleware.RequireRoles(models.RoleAdmin, models.RoleProgramHead), h.applicants.ScheduleInterview)
	applicants.POST("/:id/enrollment-stage", middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar), h.applicants.MoveToEnrollment)
	applicants.POST("/:id/enroll", middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar), h.applicants.Enroll)

	documents := secured.Group("/documents")
	documents.Use(middleware.RequireRoles(staff...))
	documents.POST("", h.documents.Add)
	documents.POST("/bulk-verify", h.documents.BulkVerify)
	documents.POST("/:id/verify", h.documents.Verify)
	documents.POST("/:id/invalidate", h.documents.Invalidate)

	schedules := secured.Group("/schedules")
	schedules.GET("", middleware.RequireRoles(staff...), h.schedules.List)
	schedules.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleOfficer, models.RoleProgramHead), h.schedules.Create)
	schedules.GET("/:id/assignments", middleware.RequireRoles(staff...), h.schedules.Assignments)

	notifications := secured.Group("/notifications")
	notifications.GET("", h.notifications.List)
	notifications.POST("/:id/read", h.notifications.MarkRead)

	secured.GET("/dashboard/admissions", middleware.RequireRoles(staff...), h.dashboard.Admissions)
}

package main

import (
	"context"
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

	_ "github.com/sudeep-patali/nodue-api/api/swagger"
	"github.com/sudeep-patali/nodue-api/internal/handler"
	"github.com/sudeep-patali/nodue-api/internal/middleware"
	"github.com/sudeep-patali/nodue-api/internal/models"
	"github.com/sudeep-patali/nodue-api/internal/repository"
	"github.com/sudeep-patali/nodue-api/internal/service"
	"github.com/sudeep-patali/nodue-api/pkg/cache"
	"github.com/sudeep-patali/nodue-api/pkg/certificate"
	"github.com/sudeep-patali/nodue-api/pkg/config"
	"github.com/sudeep-patali/nodue-api/pkg/database"
	"github.com/sudeep-patali/nodue-api/pkg/jobs"
	"github.com/sudeep-patali/nodue-api/pkg/logger"
	corsmiddleware "github.com/sudeep-patali/nodue-api/pkg/middleware/cors"
	reqidmiddleware "github.com/sudeep-patali/nodue-api/pkg/middleware/requestid"
	"github.com/sudeep-patali/nodue-api/pkg/storage"
)

// @title No-Due Certificate API
// @version 1.0.0
// @description Multi-stage no-due clearance workflow for students, faculty, and administrative staff
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metricsService := service.NewMetricsService()

	var cacheService *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		cacheService = service.NewCacheService(nil, metricsService, 0, logr, false)
	} else {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheService = service.NewCacheService(cacheRepo, metricsService, cfg.Dashboard.CacheTTL, logr, true)
		defer cacheRepo.Close() //nolint:errcheck
	}

	certStore, err := storage.NewLocalStorage(cfg.Certificates.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init certificate storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Certificates.SignedURLSecret, cfg.Certificates.SignedURLTTL)
	renderer := certificate.NewRenderer("NO-DUE CERTIFICATE")

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	staffRepo := repository.NewStaffRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	authService := service.NewAuthService(userRepo, roleRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "nodue-api",
	})
	verificationService := service.NewVerificationService(applicationRepo, notificationRepo, roleRepo, userRepo, metricsService, logr, cfg.Workflow.CommentOptionalStages)
	submissionService := service.NewSubmissionService(applicationRepo, profileRepo, staffRepo, batchRepo, settingsRepo, roleRepo, notificationRepo, userRepo, cacheService, metricsService, validate, logr, cfg.Submission.WindowCacheTTL)
	assignmentService := service.NewAssignmentService(assignmentRepo, applicationRepo, notificationRepo, userRepo, metricsService, logr)
	certificateService := service.NewCertificateService(applicationRepo, renderer, certStore, signer, userRepo, metricsService, logr)
	notificationService := service.NewNotificationService(notificationRepo, logr, cfg.Notifications.ReadRetention)
	provisioningService := service.NewProvisioningService(userRepo, staffRepo, profileRepo, batchRepo, applicationRepo, roleRepo, validate, logr)
	settingsService := service.NewSettingsService(settingsRepo, roleRepo, userRepo, cacheService, validate, logr)
	dashboardService := service.NewDashboardService(applicationRepo, cacheService, metricsService, logr, cfg.Dashboard.CacheTTL)

	authHandler := handler.NewAuthHandler(authService)
	applicationHandler := handler.NewApplicationHandler(submissionService, verificationService, certificateService)
	verificationHandler := handler.NewVerificationHandler(verificationService)
	assignmentHandler := handler.NewAssignmentHandler(assignmentService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	adminHandler := handler.NewAdminHandler(provisioningService, settingsService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	maintenance := jobs.NewRunner("maintenance", func(taskCtx context.Context, task jobs.Task) error {
		switch task.Kind {
		case jobs.KindNotificationPrune:
			return notificationService.PruneExpired(taskCtx)
		default:
			return fmt.Errorf("unknown task kind %q", task.Kind)
		}
	}, jobs.RunnerConfig{
		Workers: cfg.Notifications.Workers,
		Logger:  logr,
	})
	maintenance.Start(ctx)
	defer maintenance.Stop()
	maintenance.RunEvery(cfg.Notifications.PruneInterval, jobs.KindNotificationPrune)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r, cfg, authService, authHandler, applicationHandler, verificationHandler, assignmentHandler, notificationHandler, adminHandler, dashboardHandler)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("forced shutdown", "error", err)
	}
}

func registerRoutes(r *gin.Engine, cfg *config.Config, authService *service.AuthService, authHandler *handler.AuthHandler, applicationHandler *handler.ApplicationHandler, verificationHandler *handler.VerificationHandler, assignmentHandler *handler.AssignmentHandler, notificationHandler *handler.NotificationHandler, adminHandler *handler.AdminHandler, dashboardHandler *handler.DashboardHandler) {
	v1 := r.Group(cfg.APIPrefix)

	auth := v1.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	authed := v1.Group("")
	authed.Use(middleware.JWT(authService))

	authed.POST("/auth/logout", authHandler.Logout)
	authed.POST("/auth/change-password", authHandler.ChangePassword)
	authed.GET("/auth/me", authHandler.Me)

	// certificate download authenticates through the signed token itself
	v1.GET("/certificates/download", applicationHandler.DownloadCertificate)

	students := authed.Group("")
	students.Use(middleware.RequireRoles(models.RoleStudent))
	students.POST("/applications", applicationHandler.Submit)
	students.GET("/applications", applicationHandler.ListMine)
	students.GET("/applications/:id/progress", applicationHandler.Progress)
	students.POST("/applications/:id/payment", applicationHandler.RecordPayment)

	authed.GET("/applications/:id/certificate", middleware.RequireRoles(models.RoleStudent, models.RoleAdmin), applicationHandler.Certificate)

	verifierRoles := []models.Role{
		models.RoleLibrary,
		models.RoleHostel,
		models.RoleCollegeOffice,
		models.RoleFaculty,
		models.RoleCounsellor,
		models.RoleClassAdvisor,
		models.RoleHOD,
		models.RoleLabInstructor,
	}

	verification := authed.Group("/verification")
	verification.Use(middleware.RequireRoles(verifierRoles...))
	verification.GET("/:stage/queue", verificationHandler.Queue)
	verification.POST("/:stage/applications/:id", verificationHandler.Decide)

	authed.POST("/applications/:id/finalize", middleware.RequireRoles(models.RoleLabInstructor), verificationHandler.Finalize)

	// HODs who teach review their own subject rows through the same endpoints.
	faculty := authed.Group("/faculty")
	faculty.Use(middleware.RequireRoles(models.RoleFaculty, models.RoleHOD))
	faculty.GET("/assignments", assignmentHandler.Pending)
	faculty.POST("/applications/:id/review", assignmentHandler.Review)

	authed.GET("/notifications", notificationHandler.List)
	authed.GET("/notifications/unread-count", notificationHandler.CountUnread)
	authed.POST("/notifications/:id/read", notificationHandler.MarkRead)
	authed.POST("/notifications/read-all", notificationHandler.MarkAllRead)

	authed.GET("/staff", adminHandler.ListStaff)

	if cfg.Dashboard.Enabled {
		dashboard := authed.Group("/dashboard")
		dashboard.GET("/summary", middleware.RequireRoles(verifierRoles...), dashboardHandler.Summary)
		dashboard.GET("/system", middleware.RequireRoles(models.RoleAdmin), dashboardHandler.SystemMetrics)
	}

	admin := authed.Group("/admin")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.POST("/faculty", adminHandler.CreateFaculty)
	admin.DELETE("/faculty/:id", adminHandler.DeactivateFaculty)
	admin.POST("/staff", adminHandler.CreateStaff)
	admin.POST("/students", adminHandler.CreateStudents)
	admin.POST("/batches", adminHandler.CreateBatch)
	admin.POST("/batches/:name/advance", adminHandler.AdvanceBatch)
	admin.DELETE("/batches/:name", adminHandler.DeleteBatch)
	admin.DELETE("/applications/:id", adminHandler.DeleteApplication)
	admin.GET("/submission-windows/:scope", adminHandler.GetWindow)
	admin.PUT("/submission-windows", adminHandler.SetWindow)
	admin.DELETE("/submission-windows/:scope", adminHandler.ClearWindow)
}

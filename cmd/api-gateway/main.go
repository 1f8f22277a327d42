package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/tutorhub-api/api/swagger"
	"github.com/noah-isme/tutorhub-api/internal/handler"
	internalmiddleware "github.com/noah-isme/tutorhub-api/internal/middleware"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/cache"
	"github.com/noah-isme/tutorhub-api/pkg/config"
	"github.com/noah-isme/tutorhub-api/pkg/database"
	"github.com/noah-isme/tutorhub-api/pkg/jobs"
	"github.com/noah-isme/tutorhub-api/pkg/logger"
	"github.com/noah-isme/tutorhub-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/tutorhub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/tutorhub-api/pkg/middleware/requestid"
)

// @title TutorHub API
// @version 1.0.0
// @description Review requests, reviews and tutor profiles for the TutorHub marketplace.
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, tutor profile cache disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	tutorRepo := repository.NewTutorRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	requestRepo := repository.NewReviewRequestRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Reviews.ProfileCacheTTL, logr, redisClient != nil)
	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	dispatcher := jobs.NewDispatcher()
	notificationSvc := service.NewNotificationService(requestRepo, userRepo, mailer.New(cfg.Mail, logr), cfg.Mail.BaseURL, metricsSvc, logr)
	notificationSvc.Register(dispatcher)
	notificationQueue := jobs.NewQueue("notifications", dispatcher.Handle, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.Retries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()
	notificationQueue.Start(rootCtx)
	defer notificationQueue.Stop()

	eligibility := service.NewEligibilityEvaluator(bookingRepo, enrollmentRepo)
	submissionSvc := service.NewReviewSubmissionService(db, requestRepo, reviewRepo, bookingRepo, eligibility, cacheSvc, metricsSvc, logr)
	requestSvc := service.NewReviewRequestService(requestRepo, tutorRepo, courseRepo, notificationQueue, cfg.Reviews.NotificationsEnabled, metricsSvc, logr)
	reviewSvc := service.NewReviewService(reviewRepo, tutorRepo, cacheSvc, metricsSvc, validate, logr, cfg.Reviews.ExportMaxRows)
	tutorSvc := service.NewTutorService(tutorRepo, courseRepo, cacheSvc, cfg.Reviews.ProfileCacheTTL, logr)

	requestHandler := handler.NewReviewRequestHandler(requestSvc, submissionSvc)
	reviewHandler := handler.NewReviewHandler(reviewSvc)
	tutorHandler := handler.NewTutorHandler(tutorSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeDeps{
		auth:         authSvc,
		requests:     requestHandler,
		reviews:      reviewHandler,
		tutors:       tutorHandler,
		metrics:      metricsHandler,
		submitPerMin: cfg.RateLimit.SubmitPerMinute,
		logger:       logr,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type routeDeps struct {
	auth         internalmiddleware.TokenValidator
	requests     *handler.ReviewRequestHandler
	reviews      *handler.ReviewHandler
	tutors       *handler.TutorHandler
	metrics      *handler.MetricsHandler
	submitPerMin int64
	logger       *zap.Logger
}

func registerRoutes(api *gin.RouterGroup, deps routeDeps) {
	optional := internalmiddleware.OptionalJWT(deps.auth)
	secured := internalmiddleware.JWT(deps.auth)

	api.GET("/tutors/:id", deps.tutors.Profile)
	api.GET("/reviews", optional, deps.reviews.List)

	authed := api.Group("")
	authed.Use(secured)

	tutorOnly := internalmiddleware.RequireRoles(models.RoleTutor)
	studentOnly := internalmiddleware.RequireRoles(models.RoleStudent)

	requests := authed.Group("/review-requests")
	requests.POST("", tutorOnly, deps.requests.Issue)
	requests.GET("/pending", tutorOnly, deps.requests.ListPending)
	requests.GET("/mine", studentOnly, deps.requests.ListMine)
	requests.POST("/submit",
		studentOnly,
		internalmiddleware.RateLimit(deps.submitPerMin, time.Minute, deps.logger),
		deps.requests.Submit,
	)

	reviews := authed.Group("/reviews")
	reviews.GET("/export", tutorOnly, deps.reviews.Export)
	reviews.PATCH("/:id/status", tutorOnly, deps.reviews.Decide)
	reviews.DELETE("/:id", tutorOnly, deps.reviews.Delete)

	authed.GET("/metrics/summary", internalmiddleware.RequireRoles(models.RoleAdmin), deps.metrics.Summary)
}

package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/studymate/studyplan-api/api/swagger"
	"github.com/studymate/studyplan-api/internal/handler"
	"github.com/studymate/studyplan-api/internal/llm"
	internalmiddleware "github.com/studymate/studyplan-api/internal/middleware"
	"github.com/studymate/studyplan-api/internal/repository"
	"github.com/studymate/studyplan-api/internal/service"
	"github.com/studymate/studyplan-api/pkg/cache"
	"github.com/studymate/studyplan-api/pkg/config"
	"github.com/studymate/studyplan-api/pkg/database"
	"github.com/studymate/studyplan-api/pkg/logger"
	corsmiddleware "github.com/studymate/studyplan-api/pkg/middleware/cors"
	reqidmiddleware "github.com/studymate/studyplan-api/pkg/middleware/requestid"
)

// @title StudyPlan API
// @version 1.0.0
// @description Syllabus topic extraction and study plan scheduling service
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The plan cache is an optimisation, not a dependency.
		logr.Sugar().Warnw("redis unavailable, running without plan cache", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	topicRepo := repository.NewTopicRepository(db)
	runRepo := repository.NewExtractionRunRepository(db)
	planRepo := repository.NewStudyPlanRepository(db)
	prefRepo := repository.NewPreferenceRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	modelClient := llm.NewHTTPClient(llm.Config{
		BaseURL:         cfg.Model.BaseURL,
		APIKey:          cfg.Model.APIKey,
		Model:           cfg.Model.Name,
		Timeout:         cfg.Model.Timeout,
		MaxOutputTokens: cfg.Model.MaxOutputTokens,
	}, metrics, logr)

	authService := service.NewAuthService(userRepo, validate, logr, cfg.JWT)
	courseService := service.NewCourseService(courseRepo, topicRepo, prefRepo, cacheRepo, validate, logr)
	extractionService := service.NewExtractionService(courseRepo, topicRepo, runRepo, modelClient, db, cfg.Extraction, metrics, logr)
	planService := service.NewPlanService(courseRepo, topicRepo, prefRepo, planRepo, cacheRepo, modelClient, db, cfg.Planner, logr)
	healthService := service.NewHealthService(db, cacheRepo, runRepo, logr)

	authHandler := handler.NewAuthHandler(authService)
	courseHandler := handler.NewCourseHandler(courseService)
	extractionHandler := handler.NewExtractionHandler(extractionService)
	planHandler := handler.NewPlanHandler(planService)
	exportHandler := handler.NewExportHandler(planService, cfg.Export)
	healthHandler := handler.NewHealthHandler(healthService)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/healthz", healthHandler.Check)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(internalmiddleware.JWT(authService))
	{
		protected.POST("/courses", courseHandler.Create)
		protected.GET("/courses", courseHandler.List)
		protected.GET("/courses/:id", courseHandler.Get)
		protected.DELETE("/courses/:id", courseHandler.Archive)
		protected.GET("/courses/:id/topics", courseHandler.Topics)
		protected.POST("/courses/:id/extract-topics", extractionHandler.Extract)
		protected.PATCH("/topics/:id", courseHandler.UpdateTopic)
		protected.GET("/preferences", courseHandler.Preferences)
		protected.PUT("/preferences", courseHandler.UpsertPreferences)
		protected.POST("/plans/generate", planHandler.Generate)
		protected.GET("/plans/current", planHandler.Current)
		protected.GET("/plans/current/export", exportHandler.Export)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

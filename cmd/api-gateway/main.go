package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/emis-scheduler-api/api/swagger"
	"github.com/noah-isme/emis-scheduler-api/internal/handler"
	"github.com/noah-isme/emis-scheduler-api/internal/middleware"
	"github.com/noah-isme/emis-scheduler-api/internal/repository"
	"github.com/noah-isme/emis-scheduler-api/internal/service"
	"github.com/noah-isme/emis-scheduler-api/pkg/cache"
	"github.com/noah-isme/emis-scheduler-api/pkg/config"
	"github.com/noah-isme/emis-scheduler-api/pkg/database"
	"github.com/noah-isme/emis-scheduler-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/emis-scheduler-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/emis-scheduler-api/pkg/middleware/requestid"
)

// @title EMIS Scheduler API
// @version 0.1.0
// @description Academic resource scheduling: teacher distribution, slot lifecycle and absence substitution
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if client, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis unavailable, grid cache disabled", "error", err)
	} else {
		redisClient = client
		defer redisClient.Close() //nolint:errcheck
	}

	slotRepo := repository.NewSlotRepository(db)
	versionRepo := repository.NewScheduleVersionRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	classRepo := repository.NewClassRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	absenceRepo := repository.NewAbsenceRepository(db)
	substitutionRepo := repository.NewSubstitutionRepository(db)
	gridRepo := repository.NewGridRepository(db)
	gridCacheRepo := repository.NewGridCacheRepository(redisClient, logr)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	detector := service.NewConflictDetector()

	gridSvc := service.NewTimeGridService(gridRepo, gridCacheRepo, cfg.Grid.CacheTTL, logr, metricsSvc)
	distributionSvc := service.NewDistributionService(
		slotRepo, teacherRepo, classRepo, settingsRepo, versionRepo,
		gridSvc, detector, db, validate, logr, metricsSvc,
		service.DistributionConfig{
			PlanTTL:       cfg.Scheduler.PlanTTL,
			MaxIterations: cfg.Scheduler.MaxIterations,
		},
	)
	lifecycleSvc := service.NewSlotLifecycleService(
		slotRepo, teacherRepo, settingsRepo, substitutionRepo, absenceRepo,
		versionRepo, detector, db, validate, logr, metricsSvc,
	)
	substitutionSvc := service.NewSubstitutionService(
		absenceRepo, substitutionRepo, teacherRepo, slotRepo,
		gridSvc, lifecycleSvc, validate, logr, metricsSvc,
	)
	workloadSvc := service.NewWorkloadService(teacherRepo, slotRepo, subjectRepo, logr)

	distributionHandler := handler.NewDistributionHandler(distributionSvc)
	slotHandler := handler.NewSlotHandler(lifecycleSvc)
	substitutionHandler := handler.NewSubstitutionHandler(substitutionSvc)
	gridHandler := handler.NewGridHandler(gridSvc)
	workloadHandler := handler.NewWorkloadHandler(workloadSvc)
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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))
	{
		schedule := api.Group("/schedule")
		{
			schedule.POST("/preview", distributionHandler.Preview)
			schedule.POST("/commit", distributionHandler.Commit)
			schedule.GET("/settings", distributionHandler.GetSettings)
			schedule.PUT("/settings", distributionHandler.UpdateSettings)
			schedule.GET("/slots", slotHandler.List)
			schedule.PATCH("/slots/:id", slotHandler.Mutate)
			schedule.GET("/grid", gridHandler.Get)
		}

		absences := api.Group("/absences")
		{
			absences.GET("", substitutionHandler.ListAbsences)
			absences.POST("/:id/resolve", substitutionHandler.Resolve)
			absences.GET("/:id/substitutions", substitutionHandler.ListSubstitutions)
		}

		api.GET("/teachers/loads", workloadHandler.TeacherLoads)
		api.GET("/subjects", workloadHandler.Subjects)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

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
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/meal-queue-api/api/swagger"
	"github.com/noah-isme/meal-queue-api/internal/handler"
	internalmiddleware "github.com/noah-isme/meal-queue-api/internal/middleware"
	"github.com/noah-isme/meal-queue-api/internal/repository"
	"github.com/noah-isme/meal-queue-api/internal/service"
	"github.com/noah-isme/meal-queue-api/pkg/cache"
	"github.com/noah-isme/meal-queue-api/pkg/config"
	"github.com/noah-isme/meal-queue-api/pkg/database"
	"github.com/noah-isme/meal-queue-api/pkg/jobs"
	"github.com/noah-isme/meal-queue-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/meal-queue-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/meal-queue-api/pkg/middleware/requestid"
)

// @title Meal Queue API
// @version 1.0.0
// @description Cafeteria meal queue, headcount and reinforcement quota service
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable; caching and idempotency disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metricsSvc := service.NewMetricsService()
	validate := service.NewValidator()
	loc := cfg.Meals.Location()

	store := repository.NewRecordStore(db, loc, repository.WithObserver(metricsSvc))
	groupRepo := repository.NewGroupRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	idempotencyRepo := repository.NewIdempotencyRepository(redisClient, cfg.Cache.IdempotencyTTL)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.GroupsTTL, logr, cfg.Cache.Enabled && redisClient != nil)
	engine := service.NewStatusEngine(cfg.Meals.DefaultEatingDuration)
	groupSvc := service.NewGroupService(groupRepo, cacheSvc, cfg.Cache.GroupsTTL, validate, logr)
	mealSvc := service.NewMealService(store, groupSvc, engine, validate, logr)
	reconcileSvc := service.NewReconciliationService(store, metricsSvc, logr)
	attendanceSvc := service.NewAttendanceService(store, groupSvc, idempotencyRepo, metricsSvc, validate, logr)
	reportSvc := service.NewReportService(store, cfg.Reports.Title, logr)

	audience := ""
	if len(cfg.JWT.Audience) > 0 {
		audience = cfg.JWT.Audience[0]
	}
	authSvc := service.NewAuthService(service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		Audience:          audience,
	})

	scheduler := jobs.NewScheduler(jobs.SchedulerConfig{Logger: logr.Named("scheduler")})
	var board *service.QueueBoardService
	if cfg.Meals.BoardEnabled {
		board = service.NewQueueBoardService(store, groupSvc, engine, metricsSvc, logr)
		if err := board.Register(scheduler, service.BoardSchedule{
			RefreshEvery: cfg.Meals.RefreshInterval,
			TickEvery:    cfg.Meals.TickInterval,
			Timeout:      cfg.Meals.StoreOperationTimeout,
		}); err != nil {
			logr.Fatal("failed to schedule meal board", zap.Error(err))
		}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc.Handler(), readinessChecks(db, redisClient))
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	var mealBoard interface {
		Snapshot() service.BoardSnapshot
	}
	if board != nil {
		mealBoard = board
	}
	groupHandler := handler.NewGroupHandler(groupSvc)
	mealHandler := handler.NewMealHandler(mealSvc, reconcileSvc, mealBoard)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	reportHandler := handler.NewReportHandler(reportSvc)

	admin := internalmiddleware.RequireAdministrator()
	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(authSvc))
	{
		api.GET("/groups", groupHandler.List)
		api.POST("/groups", admin, groupHandler.Create)
		api.PUT("/groups/:id", admin, groupHandler.Update)

		api.GET("/meals/today", mealHandler.Today)
		api.GET("/meals/board", mealHandler.Board)
		api.POST("/meals", mealHandler.Register)
		api.POST("/meals/:id/enter", mealHandler.Enter)
		api.DELETE("/meals/mine", mealHandler.DeleteMine)
		api.DELETE("/meals/registrants/:registrantId", mealHandler.DeleteForRegistrant)
		api.DELETE("/meals/:id", mealHandler.Delete)
		api.DELETE("/meals", admin, mealHandler.DeleteAll)

		api.GET("/attendance", attendanceHandler.Get)
		api.GET("/attendance/quota", attendanceHandler.Quota)
		api.POST("/attendance", attendanceHandler.Submit)
		api.DELETE("/attendance", admin, attendanceHandler.Clear)

		if cfg.Reports.Enabled {
			api.GET("/reports/daily", admin, reportHandler.Daily)
		}
	}

	scheduler.Start(ctx)
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func readinessChecks(db *sqlx.DB, client *redis.Client) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if client != nil {
		checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}
	return checks
}

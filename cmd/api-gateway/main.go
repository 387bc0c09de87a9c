package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "time/tzdata"

	_ "github.com/noah-isme/tutorhub-api/api/swagger"
	"github.com/noah-isme/tutorhub-api/internal/handler"
	"github.com/noah-isme/tutorhub-api/internal/middleware"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/cache"
	"github.com/noah-isme/tutorhub-api/pkg/config"
	"github.com/noah-isme/tutorhub-api/pkg/database"
	"github.com/noah-isme/tutorhub-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/tutorhub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/tutorhub-api/pkg/middleware/requestid"
	"github.com/noah-isme/tutorhub-api/pkg/payment"
	"github.com/noah-isme/tutorhub-api/pkg/storage"
)

// @title TutorHub API
// @version 1.0.0
// @description Lessons, enrollments and the tutoring shop for teachers, students and managers.
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
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		_, err := database.Migrate(ctx, db.DB, logr)
		cancel()
		if err != nil {
			logr.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	metrics := service.NewMetricsService()
	validate := validator.New()
	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(redisClient),
		metrics,
		service.CacheTTLs{Lesson: cfg.Cache.LessonTTL, Catalog: cfg.Cache.CatalogTTL},
		logr,
		cfg.Cache.Enabled && redisClient != nil,
	)

	userRepo := repository.NewUserRepository(db)
	skillRepo := repository.NewSkillRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	productRepo := repository.NewProductRepository(db)
	cartRepo := repository.NewCartRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	mediaStorage, err := storage.NewLocalStorage(cfg.Media.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare media storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Media.SignedURLSecret, cfg.Media.SignedURLTTL)

	gateway, err := payment.NewGateway(cfg.Payments)
	if err != nil {
		logr.Fatal("failed to configure payment gateway", zap.Error(err))
	}

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "tutorhub-api",
	})
	userSvc := service.NewUserService(userRepo, skillRepo, lessonRepo, validate, logr)
	skillSvc := service.NewSkillService(skillRepo, validate, logr)
	lessonSvc := service.NewLessonService(lessonRepo, enrollmentRepo, userRepo, userRepo, cacheSvc, validate, logr, cfg.Lessons)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, lessonRepo, userRepo, cacheSvc, metrics, logr, cfg.Lessons.GuardCapacity)
	exportSvc := service.NewExportService(lessonRepo, logr)
	productSvc := service.NewProductService(productRepo, mediaStorage, signer, userRepo, cacheSvc, validate, logr, service.ProductConfig{
		APIPrefix: cfg.APIPrefix,
		Media:     cfg.Media,
	})
	cartSvc := service.NewCartService(cartRepo, productRepo, logr)
	checkoutSvc := service.NewCheckoutService(cartSvc, orderRepo, gateway, userRepo, metrics, validate, logr, cfg.Payments)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, cfg.APIPrefix))
	r.Use(middleware.WithResponseMeta())

	registerRoutes(r, cfg, routeDeps{
		auth:        handler.NewAuthHandler(authSvc, userSvc),
		users:       handler.NewUserHandler(userSvc),
		skills:      handler.NewSkillHandler(skillSvc),
		lessons:     handler.NewLessonHandler(lessonSvc, exportSvc),
		enrollments: handler.NewEnrollmentHandler(enrollmentSvc),
		products:    handler.NewProductHandler(productSvc),
		cart:        handler.NewCartHandler(cartSvc, checkoutSvc),
		ops:         handler.NewMetricsHandler(metrics, db),
		tokens:      authSvc,
		carts:       cartSvc,
		audit:       userRepo,
		logger:      logr,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "payments", cfg.Payments.Provider)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

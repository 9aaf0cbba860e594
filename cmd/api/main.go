package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campusfix-api/internal/auth"
	"github.com/noah-isme/campusfix-api/internal/config"
	"github.com/noah-isme/campusfix-api/internal/database"
	"github.com/noah-isme/campusfix-api/internal/handler"
	"github.com/noah-isme/campusfix-api/internal/middleware"
	"github.com/noah-isme/campusfix-api/internal/repository"
	"github.com/noah-isme/campusfix-api/internal/router"
	"github.com/noah-isme/campusfix-api/internal/service"
	cloud "github.com/noah-isme/campusfix-api/pkg/cloudinary"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "campusfix-api").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.AppEnv == "development" {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	reportRepo := repository.NewReportRepository(db)
	if touched, err := reportRepo.BackfillLegacyNotes(rootCtx); err != nil {
		logger.Fatal().Err(err).Msg("failed to backfill legacy report notes")
	} else if touched > 0 {
		logger.Info().Int64("notes", touched).Msg("backfilled legacy report notes")
	}

	healthChecks := map[string]handler.DependencyCheck{"database": database.Ping(db)}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(rootCtx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		client := redisClient
		healthChecks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	} else {
		logger.Warn().Msg("redis not configured; staff stats cache and cross-node realtime disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Drain()
	}

	var (
		storage service.FileStorage
		signer  service.UploadSigner
	)
	if cfg.CloudinaryEnabled() {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create cloudinary client")
		}
		storage = uploader
		signer = uploader
	} else {
		logger.Warn().Msg("cloudinary not configured; photo uploads disabled")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)

	userRepo := repository.NewUserRepository(db)
	sequenceRepo := repository.NewSequenceRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	uploadRepo := repository.NewUploadRepository(db)

	hub := service.NewReportEventHub(redisClient, natsConn, cfg.RealtimeChannel, logger)
	hub.Start(rootCtx)

	activityService := service.NewActivityService(activityRepo, logger)
	statsService := service.NewStaffStatsService(reportRepo, userRepo, redisClient, cfg.StaffStatsCacheTTL, logger)
	authService := service.NewAuthService(userRepo, sequenceRepo, tokens, hasher, activityService, statsService, cfg.SeedKey, validate, logger)
	userService := service.NewUserService(userRepo, hasher, validate, logger)
	reportService := service.NewReportService(reportRepo, userRepo, hasher, activityService, statsService, hub, validate, logger)
	uploadService := service.NewUploadService(storage, signer, uploadRepo, cfg.UploadMaxSizeMB, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxSizeMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{
		Logger:    &logger,
		AccessLog: cfg.AppEnv == "development",
	})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:     handler.NewAuthHandler(authService, logger),
		ReportHandler:   handler.NewReportHandler(reportService, logger),
		UserHandler:     handler.NewUserHandler(userService, statsService, logger),
		UploadHandler:   handler.NewUploadHandler(uploadService, logger),
		ActivityHandler: handler.NewActivityHandler(activityService, logger),
		RealtimeHandler: handler.NewRealtimeHandler(hub, logger),
		Authenticate: []fiber.Handler{
			middleware.JWTProtected(tokens),
			middleware.ResolveUser(userRepo, logger),
		},
		AuthLimiter:  middleware.RateLimit("auth", cfg.AuthRateLimitMax, cfg.AuthRateLimitWindow),
		HealthChecks: healthChecks,
	})

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Msg("http server listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	waitForShutdown(rootCtx, app, logger)
}

func waitForShutdown(ctx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}

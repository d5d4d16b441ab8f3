package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/essay-grader-api/internal/config"
	"github.com/noah-isme/essay-grader-api/internal/database"
	"github.com/noah-isme/essay-grader-api/internal/dispatch"
	"github.com/noah-isme/essay-grader-api/internal/events"
	"github.com/noah-isme/essay-grader-api/internal/handler"
	"github.com/noah-isme/essay-grader-api/internal/middleware"
	"github.com/noah-isme/essay-grader-api/internal/repository"
	"github.com/noah-isme/essay-grader-api/internal/router"
	"github.com/noah-isme/essay-grader-api/internal/service"
	"github.com/noah-isme/essay-grader-api/internal/utils"
	cloud "github.com/noah-isme/essay-grader-api/pkg/cloudinary"
	"github.com/noah-isme/essay-grader-api/pkg/mailer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("%v", err)
	}

	healthChecks := map[string]database.Check{"database": database.PostgresCheck(db)}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		healthChecks["redis"] = database.RedisCheck(redisClient)
	} else {
		logger.Warn().Msg("redis not configured, theme cache disabled")
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		conn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer conn.Drain()
		publisher = events.NewNATSPublisher(conn, "grader", logger)
	} else {
		logger.Warn().Msg("nats not configured, submission events disabled")
	}

	var storage service.FileStorage
	if cfg.CloudinaryEnabled() {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		storage = uploader
	} else {
		logger.Warn().Msg("cloudinary not configured, file submissions disabled")
	}

	var mail service.Mailer
	if cfg.SMTPHost != "" {
		smtpMailer, err := mailer.NewSMTP(mailer.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}, logger)
		if err != nil {
			log.Fatalf("failed to configure smtp: %v", err)
		}
		mail = smtpMailer
	} else {
		mail = mailer.NewLog(logger)
	}

	validate := utils.NewValidator()

	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	themeRepo := repository.NewThemeRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	dispatcher := dispatch.New(dispatch.Config{
		WebhookURL: cfg.GradingWebhookURL,
		Timeout:    cfg.DispatchTimeout,
		Workers:    cfg.DispatchWorkers,
		QueueSize:  cfg.DispatchQueueSize,
	}, submissionRepo, publisher, logger)
	dispatcher.Start(context.Background())

	accountService := service.NewAccountService(userRepo, profileRepo, validate, mail, service.AccountConfig{
		AppName:          cfg.AppName,
		FrontendURL:      cfg.FrontendURL,
		StartingCoins:    cfg.StartingCoins,
		JWTSecret:        cfg.JWTSecret,
		AccessTokenTTL:   cfg.AccessTokenTTL,
		PasswordResetTTL: cfg.PasswordResetTTL,
	}, logger)
	walletService := service.NewWalletService(profileRepo, validate, logger)
	themeService := service.NewThemeService(themeRepo, validate, redisClient, cfg.ThemeCacheTTL, logger)
	submissionService := service.NewSubmissionService(submissionRepo, validate, storage, dispatcher, cfg.UploadMaxMB, logger)
	gradingService, err := service.NewGradingService(submissionRepo, validate, publisher, cfg.GradingSecret, logger)
	if err != nil {
		log.Fatalf("failed to build grading service: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{
		Logger:    &logger,
		AccessLog: cfg.AppEnv == "development",
	})
	router.Register(app, cfg, router.Dependencies{
		AccountHandler:     handler.NewAccountHandler(accountService, walletService, logger),
		ThemeHandler:       handler.NewThemeHandler(themeService, logger),
		SubmissionHandler:  handler.NewSubmissionHandler(submissionService, logger),
		WebhookHandler:     handler.NewWebhookHandler(gradingService, logger),
		AdminHandler:       handler.NewAdminHandler(accountService, walletService, logger),
		JWTMiddleware:      middleware.JWTProtected(cfg.JWTSecret),
		PasswordResetLimit: middleware.RateLimit("password-reset", 5, time.Minute),
		HealthChecks:       healthChecks,
		Logger:             logger,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, dispatcher, logger)
}

func waitForShutdown(app *fiber.App, dispatcher *dispatch.Dispatcher, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	if err := dispatcher.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("dispatch queue not drained")
	}

	logger.Info().Msg("server stopped")
}

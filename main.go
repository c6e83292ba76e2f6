package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"tabiyaku/internal/config"
	"tabiyaku/internal/handlers"
	"tabiyaku/internal/logging"
	"tabiyaku/internal/middleware"
	"tabiyaku/internal/repositories"
	"tabiyaku/internal/services"
	"tabiyaku/pkg/oracle"
	"tabiyaku/pkg/rabbitmq"
	"tabiyaku/pkg/stash"
)

// multipartOverhead is the body allowance on top of the image size limit
// for form boundaries and the text field.
const multipartOverhead = 64 << 10

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	// --- Initialize Repositories ---
	userRepo, recordRepo, err := openRepositories(cfg)
	if err != nil {
		zlog.Fatal("failed to open repositories", zap.Error(err))
	}

	// --- Initialize Storage and Oracle ---
	objects, err := openStash(cfg)
	if err != nil {
		zlog.Fatal("failed to open upload storage", zap.Error(err))
	}
	if cfg.OpenAIKey == "" {
		zlog.Warn("OPENAI_API_KEY is empty; translation calls will be rejected upstream")
	}
	translator := oracle.New(oracle.Config{
		APIKey:  cfg.OpenAIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Timeout: cfg.OpenAITimeout,
	})

	// --- Initialize RabbitMQ Client (optional) ---
	var publisher services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL}, zlog)
		if err != nil {
			zlog.Fatal("failed to initialize RabbitMQ client", zap.Error(err))
		}
		defer mqClient.Close()
		publisher = mqClient

		err = mqClient.ConsumeTranslationEvents(func(event rabbitmq.TranslationEvent) error {
			zlog.Info("translation event received",
				zap.String("type", event.Type),
				zap.String("record_id", event.RecordID),
				zap.String("user_id", event.UserID))
			return nil
		})
		if err != nil {
			zlog.Error("failed to start RabbitMQ consumer", zap.Error(err))
		}
	}

	// --- Initialize Services ---
	authService := services.NewAuthService(userRepo, services.TokenConfig{
		Secret: cfg.JWTSecret,
		TTL:    cfg.JWTTTL,
		Issuer: cfg.JWTIssuer,
	}, zlog)
	translationService := services.NewTranslationService(
		userRepo, recordRepo, objects, translator, publisher, cfg.OpenAITimeout, zlog)

	app := newApp(authService, translationService, cfg.MaxUploadBytes+multipartOverhead, zlog)

	// --- Start HTTP Server ---
	zlog.Info("starting server", zap.String("addr", cfg.AppPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(cfg.AppPort); err != nil {
			zlog.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-quit
	zlog.Info("shutting down server")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		zlog.Error("error during Fiber shutdown", zap.Error(err))
	}
	zlog.Info("server gracefully stopped")
}

// newApp wires the HTTP surface onto the given services.
func newApp(authService *services.AuthService, translationService *services.TranslationService, bodyLimit int, zlog *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	authRequired := middleware.AuthRequired(authService)
	api := app.Group("/api")
	handlers.NewAuthHandler(authService, zlog).RegisterRoutes(api, authRequired)
	handlers.NewTranslationHandler(translationService, zlog).RegisterRoutes(api, authRequired)

	return app
}

func openRepositories(cfg *config.Config) (repositories.UserRepository, repositories.RecordRepository, error) {
	if cfg.DBDriver == "memory" {
		return repositories.NewMockUserRepository(), repositories.NewMockRecordRepository(), nil
	}
	db, err := repositories.OpenDatabase(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}
	return repositories.NewGORMUserRepository(db), repositories.NewGORMRecordRepository(db), nil
}

func openStash(cfg *config.Config) (stash.Stash, error) {
	switch cfg.StorageBackend {
	case "s3":
		return stash.NewS3(context.Background(), stash.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Endpoint:  cfg.S3Endpoint,
		})
	case "local":
		return stash.NewLocal(cfg.UploadDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

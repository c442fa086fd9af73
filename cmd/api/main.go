package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/testem-api/internal/config"
	"github.com/noah-isme/testem-api/internal/database"
	"github.com/noah-isme/testem-api/internal/handler"
	"github.com/noah-isme/testem-api/internal/middleware"
	"github.com/noah-isme/testem-api/internal/pipeline"
	"github.com/noah-isme/testem-api/internal/repository"
	"github.com/noah-isme/testem-api/internal/retry"
	"github.com/noah-isme/testem-api/internal/router"
	"github.com/noah-isme/testem-api/internal/service"
	"github.com/noah-isme/testem-api/pkg/ai"
	"github.com/noah-isme/testem-api/pkg/backboard"
	cloud "github.com/noah-isme/testem-api/pkg/cloudinary"
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

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis disabled; assistant cache and redis events are off")
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, logger)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}

	storage, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	backboardClient, err := backboard.New(backboard.Config{
		BaseURL: cfg.BackboardBaseURL,
		APIKey:  cfg.BackboardAPIKey,
		Timeout: cfg.BackboardTimeout,
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("failed to create backboard client: %v", err)
	}

	examPipeline, err := buildPipeline(cfg, backboardClient, storage, logger)
	if err != nil {
		log.Fatalf("failed to build exam pipeline: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	documentRepo := repository.NewDocumentRepository(db)
	assistantRepo := repository.NewAssistantRepository(db)
	examRepo := repository.NewExamRepository(db)

	assistantService := service.NewAssistantService(assistantRepo, backboardClient, redisClient, cfg.AssistantCacheTTL, logger)
	documentService := service.NewDocumentService(storage, documentRepo, cfg.MaxUploadMB, logger)
	examService := service.NewExamService(examRepo, documentRepo, assistantService, examPipeline, redisClient, natsConn, validate, service.ExamServiceConfig{
		PipelineTimeout: cfg.PipelineTimeout,
		ChannelBase:     cfg.ChannelBase,
	}, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.MaxUploadMB + 1) * 1024 * 1024,
		// Exam runs stream for minutes; the pipeline timeout bounds them instead.
		WriteTimeout: cfg.PipelineTimeout + 30*time.Second,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AssistantHandler: handler.NewAssistantHandler(assistantService, logger),
		DocumentHandler:  handler.NewDocumentHandler(documentService, logger),
		ExamHandler:      handler.NewExamHandler(examService, logger),
		HealthProbes:     healthProbes(db, redisClient),
		JWTMiddleware:    middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, logger)
}

func buildPipeline(cfg config.Config, client *backboard.Client, blobs pipeline.BlobFetcher, logger zerolog.Logger) (*pipeline.Pipeline, error) {
	gateway := pipeline.NewBackboardGateway(client, pipeline.GatewayOptions{
		LLMProvider: cfg.BackboardLLMProvider,
		ModelName:   cfg.BackboardModel,
		Memory:      backboard.MemoryMode(cfg.BackboardMemory),
	})

	policy := retry.Policy{MaxAttempts: cfg.PollMaxAttempts, Delay: cfg.PollDelay}
	coordinator := pipeline.NewCoordinator(
		blobs,
		pipeline.NewUploader(gateway, logger),
		pipeline.NewPoller(gateway, policy, logger),
		pipeline.CoordinatorConfig{
			UploadConcurrency: cfg.UploadConcurrency,
			RequireAllIndexed: cfg.RequireAllIndexed,
		},
		logger,
	)

	var grader pipeline.MessageSender
	if cfg.AIProvider == config.GraderOpenAI {
		chat, err := ai.NewOpenAIChat(ai.OpenAIConfig{
			APIKey:       cfg.OpenAIAPIKey,
			Model:        cfg.OpenAIModel,
			SystemPrompt: pipeline.AssistantSystemPrompt,
			Logger:       logger,
		})
		if err != nil {
			return nil, err
		}
		grader = pipeline.NewOpenAISender(chat)
		logger.Info().Str("model", cfg.OpenAIModel).Msg("grading with openai")
	}

	threads := pipeline.NewThreadManager(gateway, cfg.ThreadDeleteTTL, logger)
	return pipeline.New(threads, coordinator, gateway, grader, logger), nil
}

func healthProbes(db *gorm.DB, redisClient *redis.Client) map[string]handler.HealthProbe {
	probes := map[string]handler.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return probes
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}

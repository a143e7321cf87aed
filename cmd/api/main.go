package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/meilisearch/meilisearch-go"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/promptlab-api/internal/config"
	"github.com/noah-isme/promptlab-api/internal/database"
	"github.com/noah-isme/promptlab-api/internal/handler"
	"github.com/noah-isme/promptlab-api/internal/middleware"
	"github.com/noah-isme/promptlab-api/internal/repository"
	"github.com/noah-isme/promptlab-api/internal/router"
	"github.com/noah-isme/promptlab-api/internal/service"
	"github.com/noah-isme/promptlab-api/pkg/ai"
	cloud "github.com/noah-isme/promptlab-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(ctx, cfg.RedisURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis not configured; reports are uncached and events stay on this node")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	var storage service.ObjectStorage
	if cfg.CloudinaryCloudName != "" {
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
		logger.Warn().Msg("cloudinary not configured; image uploads are disabled")
	}

	provider, closeProvider, err := newProvider(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to create ai provider: %v", err)
	}
	defer closeProvider()

	var searchClient meilisearch.ServiceManager
	if cfg.MeiliHost != "" {
		searchClient = meilisearch.New(cfg.MeiliHost, meilisearch.WithAPIKey(cfg.MeiliAPIKey))
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	store := repository.NewStore(db)

	events := service.NewEventService(service.EventServiceConfig{
		Notifications: store.Notifications(),
		Redis:         redisClient,
		NATS:          natsConn,
		ChannelBase:   cfg.RealtimeChannel,
		Logger:        logger,
	})
	events.Start(ctx)

	reports := service.NewReportService(store, redisClient, cfg.ReportCacheTTL, logger)
	search := service.NewSearchService(searchClient, cfg.MeiliHost, logger)
	aiService := service.NewAIService(provider, provider, store.Templates(), validate, cfg.GenerationTimeout, logger)

	projects := service.NewProjectService(service.ProjectServiceConfig{
		Store:     store,
		AI:        aiService,
		Storage:   storage,
		Observers: []service.TransitionObserver{events, reports, search},
		Validator: validate,
		Logger:    logger,
	})
	images := service.NewImageService(store, storage, cfg.UploadMaxBytes(), logger)
	templates := service.NewTemplateService(store, validate, logger)
	users := service.NewUserService(store.Users(), validate, logger)
	activity := service.NewActivityService(store.Activity(), logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(cfg.UploadMaxBytes()) + 1<<20,
	})

	healthChecks := []handler.DependencyCheck{
		{Name: "postgres", Check: database.PostgresReady(db)},
		{Name: "ai", Check: aiService.Ready},
	}
	if redisClient != nil {
		healthChecks = append(healthChecks, handler.DependencyCheck{Name: "redis", Check: database.RedisReady(redisClient)})
	}
	if natsConn != nil {
		healthChecks = append(healthChecks, handler.DependencyCheck{Name: "nats", Check: database.NATSReady(natsConn)})
	}

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		ProjectHandler:      handler.NewProjectHandler(projects, images, logger),
		TemplateHandler:     handler.NewTemplateHandler(templates, logger),
		AIHandler:           handler.NewAIHandler(aiService, logger),
		UserHandler:         handler.NewUserHandler(users, logger),
		ActivityHandler:     handler.NewActivityHandler(activity, logger),
		EventHandler:        handler.NewEventHandler(events, logger, cfg.RealtimeKeepAlive),
		NotificationHandler: handler.NewNotificationHandler(events, logger),
		ReportHandler:       handler.NewReportHandler(reports, logger),
		SearchHandler:       handler.NewSearchHandler(search, logger),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		HealthChecks:        healthChecks,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdown(app)
}

// newProvider selects the configured model backend.
func newProvider(ctx context.Context, cfg config.Config, logger zerolog.Logger) (ai.Provider, func(), error) {
	switch strings.ToLower(cfg.AIProvider) {
	case "openai":
		provider, err := ai.NewOpenAIProvider(ai.OpenAIConfig{
			APIKey:              cfg.OpenAIAPIKey,
			BaseURL:             cfg.OpenAIBaseURL,
			Model:               cfg.AIModel,
			EvaluationMaxTokens: cfg.EvaluationMaxTokens,
			GenerationMaxTokens: cfg.GenerationMaxTokens,
			Logger:              logger,
		})
		if err != nil {
			return nil, func() {}, err
		}
		return provider, func() {}, nil
	default:
		provider, err := ai.NewGeminiProvider(ctx, ai.GeminiConfig{
			APIKey:              cfg.GeminiAPIKey,
			Model:               cfg.AIModel,
			EvaluationMaxTokens: cfg.EvaluationMaxTokens,
			GenerationMaxTokens: cfg.GenerationMaxTokens,
			Logger:              logger,
		})
		if err != nil {
			return nil, func() {}, err
		}
		return provider, func() { _ = provider.Close() }, nil
	}
}

func shutdown(app *fiber.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}

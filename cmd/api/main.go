package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/smart-care/voice-gateway/internal/ai"
	httptransport "github.com/smart-care/voice-gateway/internal/api/http"
	"github.com/smart-care/voice-gateway/internal/api/http/handlers"
	"github.com/smart-care/voice-gateway/internal/auth"
	"github.com/smart-care/voice-gateway/internal/config"
	"github.com/smart-care/voice-gateway/internal/events"
	"github.com/smart-care/voice-gateway/internal/observability"
	"github.com/smart-care/voice-gateway/internal/persistence"
	"github.com/smart-care/voice-gateway/internal/repository"
	"github.com/smart-care/voice-gateway/internal/service"
	"github.com/smart-care/voice-gateway/internal/session"
	"github.com/smart-care/voice-gateway/internal/telephony"
	"github.com/smart-care/voice-gateway/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	pool := pg.PoolHandle()
	if pool != nil && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var redis *persistence.Redis
	if cfg.Session.DedupBackend == "redis" {
		redis = persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
	}

	metrics := observability.NewMetrics()

	var (
		userRepo       repository.UserRepository
		ticketRepo     repository.TicketRepository
		transcriptRepo repository.TranscriptRepository
		chatRepo       repository.ChatRepository
	)
	if pool != nil {
		userRepo = repository.NewUserRepository(pool)
		ticketRepo = repository.NewTicketRepository(pool)
		transcriptRepo = repository.NewTranscriptRepository(pool)
		chatRepo = repository.NewChatRepository(pool)
	} else {
		userRepo = repository.NewMemoryUserRepository()
		ticketRepo = repository.NewMemoryTicketRepository()
		transcriptRepo = repository.NewMemoryTranscriptRepository()
		chatRepo = repository.NewMemoryChatRepository()
	}

	var dedup session.ProcessedSet
	if redis != nil {
		dedup = session.NewRedisProcessedSet(redis.Client, time.Duration(cfg.Session.DedupTTLSec)*time.Second)
	} else {
		dedup = session.NewMemoryProcessedSet()
	}

	dialer, err := ai.NewRealtimeDialer(cfg.OpenAI)
	if err != nil {
		logger.Fatal("realtime dialer", zap.Error(err))
	}
	completion, err := ai.NewCompletionClient(cfg.OpenAI)
	if err != nil {
		logger.Fatal("completion client", zap.Error(err))
	}

	calls, err := telephony.NewCallService(cfg.Twilio)
	if err != nil {
		logger.Warn("telephony disabled", zap.Error(err))
		calls = nil
	}

	dispatcher := events.NewInMemoryDispatcher()
	registry := session.NewRegistry()

	ticketService := service.NewTicketService(ticketRepo, dispatcher, logger, metrics)
	authService := service.NewAuthService(cfg.Auth, userRepo)
	chatService := service.NewChatService(completion, chatRepo, logger)
	pipeline := service.NewPipeline(service.PipelineDependencies{
		Dedup:       dedup,
		Extractor:   service.NewExtractor(completion),
		Tickets:     ticketService,
		Users:       userRepo,
		Transcripts: transcriptRepo,
		Calls:       calls,
		Dispatcher:  dispatcher,
		Logger:      logger,
		Metrics:     metrics,
	})

	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, calls, logger))

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:  handlers.NewUsersHandler(authService, ticketService),
		Calls: handlers.NewCallHandler(handlers.CallHandlerDependencies{
			Registry:    registry,
			Dialer:      dialer,
			Pipeline:    pipeline,
			Calls:       calls,
			Transcripts: transcriptRepo,
			AIConfig:    cfg.OpenAI,
			Logger:      logger,
			Metrics:     metrics,
		}),
		Chat:           handlers.NewChatHandler(chatService, ticketService, pipeline),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

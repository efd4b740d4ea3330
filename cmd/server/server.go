package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	gormlogger "gorm.io/gorm/logger"

	"github.com/janhq/whatsapp-relay/internal/config"
	"github.com/janhq/whatsapp-relay/internal/domain/audit"
	"github.com/janhq/whatsapp-relay/internal/domain/channel"
	"github.com/janhq/whatsapp-relay/internal/domain/conversation"
	"github.com/janhq/whatsapp-relay/internal/domain/delivery"
	"github.com/janhq/whatsapp-relay/internal/domain/event"
	"github.com/janhq/whatsapp-relay/internal/domain/inbound"
	"github.com/janhq/whatsapp-relay/internal/domain/pipeline"
	"github.com/janhq/whatsapp-relay/internal/domain/retry"
	"github.com/janhq/whatsapp-relay/internal/infrastructure/cache"
	"github.com/janhq/whatsapp-relay/internal/infrastructure/database"
	"github.com/janhq/whatsapp-relay/internal/infrastructure/evolution"
	"github.com/janhq/whatsapp-relay/internal/infrastructure/llmprovider"
	"github.com/janhq/whatsapp-relay/internal/infrastructure/queue"
	channelrepo "github.com/janhq/whatsapp-relay/internal/infrastructure/repository/channel"
	conversationrepo "github.com/janhq/whatsapp-relay/internal/infrastructure/repository/conversation"
	eventrepo "github.com/janhq/whatsapp-relay/internal/infrastructure/repository/event"
	"github.com/janhq/whatsapp-relay/internal/infrastructure/repository/memory"
	"github.com/janhq/whatsapp-relay/internal/infrastructure/telemetry"
	"github.com/janhq/whatsapp-relay/internal/interfaces/httpserver"
	"github.com/janhq/whatsapp-relay/internal/webhook"
	"github.com/janhq/whatsapp-relay/internal/worker"
)

// @title WhatsApp Relay API
// @version 1.0
// @description Evolution API webhook ingestion and automated agent replies
// @contact.name Jan Server Team
// @contact.url https://github.com/janhq/jan-server
// @BasePath /
type Application struct {
	cfg        *config.Config
	httpServer *httpserver.HttpServer
	pipeline   *pipeline.Service
	workerPool *worker.Pool
	log        zerolog.Logger
}

func NewApplication(
	cfg *config.Config,
	httpServer *httpserver.HttpServer,
	svc *pipeline.Service,
	workerPool *worker.Pool,
	log zerolog.Logger,
) *Application {
	return &Application{
		cfg:        cfg,
		httpServer: httpServer,
		pipeline:   svc,
		workerPool: workerPool,
		log:        log,
	}
}

// Start runs the sweeper (when enabled) and blocks on the HTTP server.
func (a *Application) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.SweeperEnabled {
		if err := a.workerPool.Start(gctx); err != nil {
			return fmt.Errorf("start worker pool: %w", err)
		}
		g.Go(func() error {
			<-gctx.Done()
			a.log.Info().Msg("stopping worker pool")
			a.workerPool.Stop()
			return nil
		})
	}

	g.Go(func() error {
		return a.httpServer.Run(gctx)
	})

	err := g.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if drainErr := a.pipeline.Drain(drainCtx); drainErr != nil {
		a.log.Warn().Err(drainErr).Msg("agent notifications still in flight at shutdown")
	}
	return err
}

// repositories bundles the storage backend selected by RELAY_STORAGE.
type repositories struct {
	channels      channel.Repository
	events        event.Repository
	stale         queue.StaleEventSource
	conversations conversation.Repository
	ping          func(ctx context.Context) error
}

func newDatabaseConfig(cfg *config.Config, level gormlogger.LogLevel) database.Config {
	return database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        level,
	}
}

func newRepositories(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*repositories, func(), error) {
	if cfg.StorageDriver == config.StorageMemory {
		log.Warn().Msg("using in-memory storage; data is lost on restart")
		store := memory.NewStore()
		events := store.Events()
		return &repositories{
			channels:      store.Channels(),
			events:        events,
			stale:         events,
			conversations: store.Conversations(),
			ping:          func(context.Context) error { return nil },
		}, func() {}, nil
	}

	db, err := database.Connect(newDatabaseConfig(cfg, gormlogger.Warn))
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := database.Close(db); err != nil {
			log.Warn().Err(err).Msg("close database")
		}
	}
	if err := database.Migrate(ctx, db, log); err != nil {
		cleanup()
		return nil, nil, err
	}

	events := eventrepo.NewPostgresRepository(db, cfg.MaxRawPayloadBytes)
	return &repositories{
		channels:      channelrepo.NewPostgresRepository(db),
		events:        events,
		stale:         events,
		conversations: conversationrepo.NewPostgresRepository(db),
		ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}, cleanup, nil
}

// historyBackend is the conversation context store plus its health check.
type historyBackend struct {
	store cache.HistoryStore
	ping  func(ctx context.Context) error
}

func newHistoryBackend(cfg *config.Config, log zerolog.Logger) (*historyBackend, func(), error) {
	if cfg.RedisURL == "" {
		return &historyBackend{
			store: cache.NewMemoryHistory(cfg.ContextHistoryTurns),
			ping:  func(context.Context) error { return nil },
		}, func() {}, nil
	}

	history, err := cache.NewRedisHistory(cfg.RedisURL, cfg.ContextHistoryTurns, cfg.ContextHistoryTTL, log)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := history.Close(); err != nil {
			log.Warn().Err(err).Msg("close redis history")
		}
	}
	return &historyBackend{store: history, ping: history.HealthCheck}, cleanup, nil
}

func newAuditSink(cfg *config.Config, log zerolog.Logger) audit.Sink {
	sanitizer := telemetry.NewSanitizer(telemetry.ParseLevel(cfg.LogPIILevel), cfg.ServiceName)
	return audit.NewLogSink(log).WithRedactor(sanitizer)
}

func newReplyGenerator(cfg *config.Config, history *historyBackend, log zerolog.Logger) conversation.ReplyGenerator {
	llmCfg := llmprovider.Config{
		APIKey:       cfg.OpenAIAPIKey,
		BaseURL:      cfg.OpenAIBaseURL,
		Model:        cfg.ReplyModel,
		Temperature:  cfg.ReplyTemperature,
		MaxTokens:    cfg.ReplyMaxTokens,
		SystemPrompt: cfg.ReplySystemPrompt,
		Timeout:      cfg.ReplyTimeout,
	}
	return llmprovider.NewGenerator(llmprovider.NewOpenAIClient(llmCfg), history.store, llmCfg, log)
}

func newDeliveryAgent(cfg *config.Config, channels *channel.Service, repos *repositories, sink audit.Sink, log zerolog.Logger) *delivery.Agent {
	client := evolution.NewClient(evolution.ClientConfig{
		BaseURL: cfg.EvolutionAPIURL,
		APIKey:  cfg.EvolutionAPIKey,
		Timeout: cfg.EvolutionTimeout,
	}, log)
	gateway := evolution.NewGateway(client, channels, log)
	return delivery.NewAgent(gateway, repos.conversations, sink, log)
}

func newNotifier(cfg *config.Config, log zerolog.Logger) pipeline.Notifier {
	if !cfg.NotifyEnabled {
		return nil
	}
	return webhook.NewHTTPService(log, retry.DefaultPolicy())
}

func newPipelineService(
	repos *repositories,
	generator conversation.ReplyGenerator,
	deliveryAgent *delivery.Agent,
	channels *channel.Service,
	events *event.Store,
	notifier pipeline.Notifier,
	sink audit.Sink,
	log zerolog.Logger,
) *pipeline.Service {
	return pipeline.NewService(
		inbound.NewNormalizer(),
		channels,
		events,
		conversation.NewCorrelator(repos.conversations, sink, log),
		conversation.NewDispatcher(repos.conversations, generator, sink, log),
		deliveryAgent,
		notifier,
		sink,
		log,
	)
}

func newWorkerPool(cfg *config.Config, repos *repositories, svc *pipeline.Service, log zerolog.Logger) *worker.Pool {
	taskQueue := queue.NewStaleEventQueue(repos.stale, queue.Config{
		StaleAfter:  cfg.SweeperStaleAfter,
		MaxAttempts: cfg.SweeperMaxAttempts,
		BatchSize:   cfg.SweeperWorkerCount * 5,
	}, log)
	return worker.NewPool(taskQueue, svc, worker.Config{
		WorkerCount:  cfg.SweeperWorkerCount,
		TaskTimeout:  cfg.SweeperTaskTimeout,
		PollInterval: cfg.SweeperInterval,
	}, log)
}

func newHTTPServer(cfg *config.Config, log zerolog.Logger, svc *pipeline.Service, events *event.Store, repos *repositories, history *historyBackend) *httpserver.HttpServer {
	ready := func(ctx context.Context) error {
		return errors.Join(repos.ping(ctx), history.ping(ctx))
	}
	return httpserver.New(cfg, log, svc, events, ready)
}

// initializeApplication assembles the service by hand; wire.go describes the same graph.
func initializeApplication(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Application, func(), error) {
	repos, closeRepos, err := newRepositories(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	history, closeHistory, err := newHistoryBackend(cfg, log)
	if err != nil {
		closeRepos()
		return nil, nil, err
	}
	cleanup := func() {
		closeHistory()
		closeRepos()
	}

	sink := newAuditSink(cfg, log)
	channels := channel.NewService(repos.channels, sink, log)
	events := event.NewStore(repos.events, sink, log)
	generator := newReplyGenerator(cfg, history, log)
	deliveryAgent := newDeliveryAgent(cfg, channels, repos, sink, log)
	notifier := newNotifier(cfg, log)

	svc := newPipelineService(repos, generator, deliveryAgent, channels, events, notifier, sink, log)
	pool := newWorkerPool(cfg, repos, svc, log)
	server := newHTTPServer(cfg, log, svc, events, repos, history)

	return NewApplication(cfg, server, svc, pool, log), cleanup, nil
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}

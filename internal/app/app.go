package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"TrendCurator/internal/config"
	"TrendCurator/internal/httpapi"
	"TrendCurator/internal/infrastructure/broker"
	"TrendCurator/internal/infrastructure/cache"
	"TrendCurator/internal/infrastructure/llm"
	"TrendCurator/internal/infrastructure/scheduler"
	"TrendCurator/internal/infrastructure/search"
	"TrendCurator/internal/infrastructure/storage"
	"TrendCurator/internal/infrastructure/telegram"
	"TrendCurator/internal/infrastructure/throttle"
	"TrendCurator/internal/logging"
	"TrendCurator/internal/ports"
	"TrendCurator/internal/supervisor"
	"TrendCurator/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pipeline  *usecase.Pipeline
	db        *sql.DB
	redis     *redis.Client
	publisher *broker.Publisher
}

// New opens the database and builds every adapter. Optional integrations that are not
// configured, or fail to connect, are skipped with a warning.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if cfg.Database.DSN == "" {
		return nil, errors.New("database dsn is required")
	}

	db, err := storage.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	a := &Application{cfg: cfg, logger: baseLogger, db: db}
	repo := storage.NewPostgresRepository(db, cfg.Database.ContentTable, cfg.Database.RecommendationTable)

	chat := llm.NewChatClient(cfg.LLM)
	if cfg.LLM.APIKey == "" {
		baseLogger.Warn("llm api key is empty; classification falls back to the default category and enrichment will skip every item")
	}

	var classifier ports.Classifier = llm.NewClassifier(chat, llm.BreakerSettings{
		FailureThreshold: cfg.LLM.BreakerThreshold,
		Cooldown:         cfg.LLM.BreakerCooldown,
	})
	if cfg.Redis.Addr != "" {
		a.redis = cache.NewRedisClient(cfg.Redis)
		classifier = cache.NewClassifier(classifier, a.redis, cfg.Redis.TTL, baseLogger.With("component", "cache"))
	}

	var notifiers []ports.Notifier
	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		notifiers = append(notifiers, telegram.NewNotifier(tg.BotToken, tg.ChatID))
	}
	if cfg.Notifications.AMQP.URL != "" {
		pub, err := broker.NewPublisher(cfg.Notifications.AMQP)
		if err != nil {
			baseLogger.Warn("amqp publisher disabled", "error", err)
		} else {
			a.publisher = pub
			notifiers = append(notifiers, pub)
		}
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Pool:       repo,
		Classifier: classifier,
		Analyzer:   llm.NewAnalyzer(chat),
		Search:     search.NewMarketplaceSearch(cfg.Search, nil),
		Sink:       repo,
		Notifiers:  notifiers,
		Throttle:   throttle.NewDelay(cfg.Pipeline.EnrichInterval),
		Logger:     baseLogger.With("component", "pipeline"),
		Settings:   settingsFrom(cfg),
	})
	return a, nil
}

func settingsFrom(cfg config.Config) usecase.Settings {
	return usecase.Settings{
		Quotas:              cfg.Pipeline.Quotas,
		PoolLimit:           cfg.Pipeline.PoolLimit,
		SortKey:             cfg.Pipeline.SortKey,
		ClassifyConcurrency: cfg.Pipeline.ClassifyConcurrency,
		ConfidenceScore:     cfg.Pipeline.ConfidenceScore,
		Location:            cfg.Scheduler.Location(),
	}
}

// RunOnce performs a single pipeline execution.
func (a *Application) RunOnce(ctx context.Context) (usecase.RunResult, error) {
	return a.pipeline.Run(ctx)
}

// Serve runs the HTTP API and, when enabled, the daily scheduler until ctx is done.
func (a *Application) Serve(ctx context.Context) error {
	tree := supervisor.NewTree(a.logger.With("component", "supervisor"), supervisor.TreeConfig{
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
	})

	// One guard for both triggers: an on-demand run and the daily run never overlap.
	runner := usecase.NewSingleFlight(a.pipeline)

	server := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           httpapi.NewRouter(runner, a.cfg.Server.RunTimeout, a.logger.With("component", "http")),
		ReadHeaderTimeout: 10 * time.Second,
	}
	tree.AddAPIService(supervisor.NewHTTPServerService(server, a.cfg.Server.ShutdownTimeout))

	if a.cfg.Scheduler.IsEnabled() {
		driver, err := scheduler.NewDailyScheduler(a.cfg.Scheduler.RunAt, a.cfg.Scheduler.Location())
		if err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		daily := usecase.NewDailyRun(driver, runner, a.cfg.Server.RunTimeout, a.logger.With("component", "scheduler"))
		tree.AddJobService(supervisor.NewLifecycleService("daily-run", daily, a.cfg.Server.ShutdownTimeout))
	}

	a.logger.Info("serving", "addr", a.cfg.Server.Addr, "scheduler", a.cfg.Scheduler.IsEnabled(), "run_at", a.cfg.Scheduler.RunAt)
	err := tree.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases connections opened by New.
func (a *Application) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

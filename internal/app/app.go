// -----------------------------------------------------------------------
// Last Modified: Wednesday, 14th October 2026 2:40:00 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/insiderlens/internal/common"
	"github.com/ternarybob/insiderlens/internal/eodhd"
	"github.com/ternarybob/insiderlens/internal/interfaces"
	"github.com/ternarybob/insiderlens/internal/queue"
	"github.com/ternarybob/insiderlens/internal/scorecard"
	"github.com/ternarybob/insiderlens/internal/sec"
	"github.com/ternarybob/insiderlens/internal/services/collector"
	"github.com/ternarybob/insiderlens/internal/services/evaluator"
	"github.com/ternarybob/insiderlens/internal/services/kv"
	"github.com/ternarybob/insiderlens/internal/services/llm"
	"github.com/ternarybob/insiderlens/internal/services/macro"
	"github.com/ternarybob/insiderlens/internal/services/narrative"
	"github.com/ternarybob/insiderlens/internal/services/notify"
	"github.com/ternarybob/insiderlens/internal/services/scheduler"
	"github.com/ternarybob/insiderlens/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager
	KVService      *kv.Service

	// Scoring
	Engine *scorecard.Engine

	// Providers
	MarketClient *eodhd.Client
	Market       *eodhd.Provider
	Filings      *sec.Client
	LLM          *llm.ProviderFactory

	// Pipeline services
	Collector *collector.Service
	Macro     *macro.Service
	Evaluator *evaluator.Service
	Narrative *narrative.Service
	Notifier  *notify.Service

	// Job execution
	Metrics   *queue.Metrics
	Pipeline  *queue.Pipeline
	Worker    *queue.Worker
	Scheduler *scheduler.Service
	Refresher *scheduler.Refresher

	metricsServer *http.Server
}

// OpenStorage initializes only configuration and storage. Used by the
// administrative commands that never run the pipeline.
func OpenStorage(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	app := &App{
		Config: cfg,
		Logger: logger,
	}
	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.KVService = kv.NewService(app.StorageManager.KeyValueStorage(), logger)
	return app, nil
}

// New initializes the application with all dependencies. Nothing runs until Start.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app, err := OpenStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := app.initEngine(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize scorecard engine: %w", err)
	}

	if err := app.initProviders(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.initQueue(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize queue: %w", err)
	}

	logger.Info().
		Bool("ai_evaluation", cfg.Pipeline.AIEvaluation).
		Bool("narrative", cfg.Pipeline.Narrative).
		Bool("notifications", cfg.Notify.Enabled).
		Bool("scheduler", cfg.Scheduler.Enabled).
		Int("max_concurrent", cfg.Queue.MaxConcurrent).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	storageManager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger, badger.WithMaxRetries(a.Config.Queue.MaxRetries))
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")
	return nil
}

func (a *App) initEngine() error {
	rubric := scorecard.DefaultRubric()
	if path := a.Config.Pipeline.RubricFile; path != "" {
		loaded, err := scorecard.LoadRubric(path)
		if err != nil {
			return err
		}
		rubric = loaded
		a.Logger.Info().Str("path", path).Msg("Loaded rubric override")
	}
	a.Engine = scorecard.NewEngine(rubric)
	return nil
}

func (a *App) initProviders() error {
	ctx := context.Background()
	cfg := a.Config

	apiKey, err := common.ResolveAPIKey(ctx, a.StorageManager.KeyValueStorage(), kv.KeyEODHD, cfg.EODHD.APIKey)
	if err != nil {
		// Prices are required, so every job fails until a key is stored.
		a.Logger.Warn().Err(err).Msg("EODHD API key not configured")
	}

	a.MarketClient = eodhd.NewClient(apiKey,
		eodhd.WithBaseURL(cfg.EODHD.BaseURL),
		eodhd.WithHTTPClient(&http.Client{Timeout: common.MustDuration(cfg.EODHD.Timeout)}),
		eodhd.WithRateLimit(cfg.EODHD.RateLimit),
		eodhd.WithBreaker(cfg.EODHD.BreakerFailures, common.MustDuration(cfg.EODHD.BreakerTimeout)),
		eodhd.WithLogger(a.Logger),
	)
	a.Market = eodhd.NewProvider(a.MarketClient)

	if cfg.Pipeline.FilingText {
		a.Filings = sec.NewClient(cfg.SEC.UserAgent,
			sec.WithBaseURL(cfg.SEC.BaseURL),
			sec.WithRateLimit(cfg.SEC.RateLimit),
			sec.WithMaxChars(cfg.SEC.MaxChars),
			sec.WithLogger(a.Logger),
		)
	}

	a.LLM = llm.NewProviderFactory(&cfg.Gemini, &cfg.Claude, &cfg.LLM, a.StorageManager.KeyValueStorage(), a.Logger)
	return nil
}

func (a *App) initServices() error {
	cfg := a.Config

	opts := collector.DefaultOptions()
	opts.PriceSessions = cfg.Pipeline.PriceSessions
	opts.InsiderWindow = common.MustDuration(cfg.Pipeline.InsiderWindow)
	opts.NewsWindowDays = cfg.Pipeline.NewsWindowDays
	opts.FilingText = cfg.Pipeline.FilingText

	var filings interfaces.FilingProvider
	if a.Filings != nil {
		filings = a.Filings
	}
	a.Collector = collector.NewService(a.Market, filings, opts, a.Logger)

	a.Macro = macro.NewService(
		a.StorageManager.MacroStorage(),
		a.Market,
		a.LLM,
		cfg.Macro.Model,
		common.MustDuration(cfg.Macro.MaxAge),
		a.Logger,
	)

	if cfg.Pipeline.AIEvaluation {
		a.Evaluator = evaluator.NewService(a.LLM, "", a.Logger)
	}
	if cfg.Pipeline.Narrative {
		a.Narrative = narrative.NewService(a.LLM, "", a.Logger)
	}
	if cfg.Notify.Enabled {
		a.Notifier = notify.NewService(
			a.StorageManager.NotificationStorage(),
			a.StorageManager.SubscriberStorage(),
			cfg.Notify,
			a.Logger,
		)
	}
	return nil
}

func (a *App) initQueue() error {
	queueConfig, err := queue.ConfigFrom(a.Config.Queue)
	if err != nil {
		return err
	}

	a.Metrics = queue.NewMetrics()

	deps := queue.PipelineDeps{
		Analyses:     a.StorageManager.AnalysisStorage(),
		Collector:    a.Collector,
		Macro:        a.Macro,
		Engine:       a.Engine,
		RubricPrompt: scorecard.RubricPrompt(a.Engine.Rubric()),
		Metrics:      a.Metrics,
	}
	// Optional collaborators stay nil interfaces when disabled
	if a.Evaluator != nil {
		deps.Evaluator = a.Evaluator
	}
	if a.Narrative != nil {
		deps.Narrative = a.Narrative
	}
	if a.Notifier != nil {
		deps.Notifier = a.Notifier
	}
	a.Pipeline = queue.NewPipeline(deps, a.Logger)
	a.Worker = queue.NewWorker(a.StorageManager.QueueStorage(), a.Pipeline, queueConfig, a.Metrics, a.Logger)

	if a.Config.Scheduler.Enabled {
		a.Scheduler = scheduler.NewService(a.Logger)
	}
	return nil
}

// Start runs the worker, the refresh scheduler and the metrics listener
func (a *App) Start(ctx context.Context) error {
	if err := a.Worker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	if a.Scheduler != nil {
		if err := a.startScheduler(ctx); err != nil {
			return err
		}
	}

	if a.Config.Metrics.Enabled {
		a.startMetrics()
	}
	return nil
}

func (a *App) startScheduler(ctx context.Context) error {
	schedule := a.Market.MarketSchedule(ctx, common.DefaultExchange)
	refresher, err := scheduler.NewRefresher(
		a.StorageManager.QueueStorage(),
		a.StorageManager.AnalysisStorage(),
		schedule,
		a.Config.Scheduler,
		a.Logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create refresher: %w", err)
	}
	a.Refresher = refresher

	if err := a.Scheduler.RegisterJob(
		scheduler.RefreshJobName,
		a.Config.Scheduler.RefreshSchedule,
		"Re-enqueue completed analyses older than the stale window",
		refresher.Handler(),
	); err != nil {
		return fmt.Errorf("failed to register refresh job: %w", err)
	}
	if err := a.Scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	return nil
}

func (a *App) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Metrics.Handler())
	a.metricsServer = &http.Server{
		Addr:              a.Config.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	common.SafeGo(a.Logger, "metrics-listener", func() {
		a.Logger.Info().Str("address", a.Config.Metrics.Address).Msg("Metrics listener started")
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("Metrics listener failed")
		}
	})
}

// Close closes all application resources
func (a *App) Close() error {
	if a.Scheduler != nil {
		if err := a.Scheduler.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler")
		}
	}

	if a.Worker != nil {
		if err := a.Worker.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop worker")
		}
	}

	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop metrics listener")
		}
		cancel()
	}

	if a.LLM != nil {
		if err := a.LLM.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM providers")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}

	a.Logger.Info().Msg("Application closed")
	return nil
}

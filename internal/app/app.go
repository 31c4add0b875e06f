// Package app wires storage, services, and handlers together in
// dependency order and owns their shutdown sequence.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/congruo/internal/common"
	"github.com/ternarybob/congruo/internal/handlers"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
	"github.com/ternarybob/congruo/internal/queue"
	"github.com/ternarybob/congruo/internal/services/batch"
	"github.com/ternarybob/congruo/internal/services/briefs"
	"github.com/ternarybob/congruo/internal/services/cache"
	"github.com/ternarybob/congruo/internal/services/embeddings"
	"github.com/ternarybob/congruo/internal/services/events"
	"github.com/ternarybob/congruo/internal/services/filter"
	"github.com/ternarybob/congruo/internal/services/matcher"
	"github.com/ternarybob/congruo/internal/services/optimizer"
	"github.com/ternarybob/congruo/internal/services/pdf"
	"github.com/ternarybob/congruo/internal/services/reports"
	"github.com/ternarybob/congruo/internal/services/scheduler"
	"github.com/ternarybob/congruo/internal/services/scorers"
	"github.com/ternarybob/congruo/internal/services/tracker"
	"github.com/ternarybob/congruo/internal/services/weights"
	"github.com/ternarybob/congruo/internal/storage"
)

// maintenanceInterval drives the background sweep for expired matches,
// expired cache entries, unembedded opportunities, and stale jobs.
const maintenanceInterval = 5 * time.Minute

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	ctx            context.Context
	cancelCtx      context.CancelFunc
	StorageManager interfaces.StorageManager

	// Event plumbing
	EventService interfaces.EventService
	Recorder     *events.Recorder

	// Scoring pipeline
	WeightService  interfaces.WeightService
	QuickFilter    interfaces.QuickFilterService
	CacheService   interfaces.MatchCacheService
	MatcherService interfaces.MatcherService

	// Embeddings
	EmbeddingService     interfaces.EmbeddingService
	EmbeddingCoordinator *embeddings.Coordinator

	// Batch execution
	TrackerService   interfaces.TrackerService
	OptimizerService interfaces.OptimizerService
	BatchService     interfaces.BatchService
	QueueManager     *queue.Manager
	WorkerPool       *queue.WorkerPool

	// Scheduling and reporting
	SchedulerService interfaces.SchedulerService
	BriefService     interfaces.BriefService
	PDFService       interfaces.PDFService
	ReportService    interfaces.ReportService

	// Log streaming to websocket clients
	LogStreamer *handlers.LogStreamer

	// HTTP handlers
	WSHandler          *handlers.WebSocketHandler
	EventSubscriber    *handlers.EventSubscriber
	MatchHandler       *handlers.MatchHandler
	BatchHandler       *handlers.BatchHandler
	CompanyHandler     *handlers.CompanyHandler
	OpportunityHandler *handlers.OpportunityHandler
	VectorHandler      *handlers.VectorHandler
	ScheduleHandler    *handlers.ScheduleHandler
	BriefHandler       *handlers.BriefHandler
	StatusHandler      *handlers.StatusHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Initialize database
	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Event service first: services publish through it and handlers
	// subscribe to it
	app.EventService = events.NewService(app.Logger)
	if err := events.SubscribeLoggerToAllEvents(app.EventService, app.Logger); err != nil {
		app.Logger.Warn().Err(err).Msg("Failed to subscribe logger to events")
	}

	app.Recorder = events.NewRecorder(0)
	if err := app.Recorder.Attach(app.EventService); err != nil {
		return nil, fmt.Errorf("failed to attach event recorder: %w", err)
	}

	// WebSocket handler must exist before services start so the log
	// streamer can carry startup logs to early-connecting clients
	app.WSHandler = handlers.NewWebSocketHandler(app.Logger)

	streamer := handlers.NewLogStreamer(app.WSHandler, app.Logger, &cfg.WebSocket)
	if err := streamer.Start(); err != nil {
		return nil, fmt.Errorf("failed to start log streamer: %w", err)
	}
	app.LogStreamer = streamer

	// Arbor delivers log batches on the context channel
	app.Logger.SetChannel("context", streamer.GetChannel())

	// Initialize services in dependency order
	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Initialize handlers
	if err := app.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	// Start workers AFTER all handlers are initialized so every
	// dependency a work unit touches is wired
	if err := app.WorkerPool.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker pool: %w", err)
	}

	// Requeue jobs orphaned by an unclean shutdown before the first
	// maintenance tick
	if requeued, err := app.BatchService.RequeueStaleJobs(context.Background()); err != nil {
		app.Logger.Warn().Err(err).Msg("Failed to requeue stale jobs")
	} else if requeued > 0 {
		app.Logger.Info().Int("count", requeued).Msg("Requeued stale jobs from previous run")
	}

	app.startMaintenance()

	logger.Info().
		Str("embedding_provider", cfg.Embeddings.Provider).
		Bool("scheduler_enabled", cfg.Scheduler.Enabled).
		Bool("briefs_enabled", cfg.Briefs.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	// Load API keys from .env into the KV store. Keys resolved later by
	// ResolveAPIKey take env > KV > config precedence.
	if err := a.StorageManager.LoadEnvFile(context.Background(), ".env"); err != nil {
		// Log warning but don't fail startup
		a.Logger.Warn().Err(err).Msg("Failed to load .env file")
	}

	return nil
}

// initServices initializes all business services in dependency order.
//
// SCORING PIPELINE:
// 1. Weights, quick filter, cache - cheap stateless collaborators
// 2. Embedding service + coordinator - vector production
// 3. Matcher - fans scorers out over opportunity/company pairs
//
// BATCH EXECUTION:
// 1. QueueManager (Badger-backed) - persistent work unit queue
// 2. Tracker - job lifecycle and counters
// 3. Optimizer - adaptive partition sizing from run history
// 4. BatchService - submit, partition, process, finalize
// 5. WorkerPool - polls the queue and runs ProcessUnit
func (a *App) initServices() error {
	var err error

	// 1. Tracker for job lifecycle state
	a.TrackerService = tracker.NewService(
		a.StorageManager.JobStorage(),
		a.EventService,
		a.Logger,
	)

	// 2. Optimizer tunes partition sizes from run history
	a.OptimizerService = optimizer.NewService(
		a.Config.Batch,
		a.StorageManager.HistoryStorage(),
		a.Logger,
	)

	// 3. Match verdict cache
	cacheTTL := time.Duration(a.Config.Matching.CacheTTLSeconds) * time.Second
	a.CacheService = cache.NewService(
		a.StorageManager.CacheStorage(),
		cacheTTL,
		a.Logger,
	)

	// 4. Weight profiles with built-in defaults
	a.WeightService = weights.NewService(
		a.StorageManager.WeightStorage(),
		models.DefaultWeightSet(),
		a.Logger,
	)

	// 5. Quick filter for cheap pre-score rejection
	a.QuickFilter = filter.NewService(&a.Config.Filter, a.Logger)

	// 6. Embedding service (provider selected by config, degrades to
	// disabled when no API key resolves)
	a.EmbeddingService, err = embeddings.NewService(
		context.Background(),
		a.Config,
		a.StorageManager.KeyValueStorage(),
		a.Logger,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize embedding service: %w", err)
	}

	// 6.1 Coordinator keeps vectors fresh: re-embeds companies on
	// profile updates and sweeps unembedded opportunities
	a.EmbeddingCoordinator = embeddings.NewCoordinator(
		a.EmbeddingService,
		a.StorageManager.OpportunityStorage(),
		a.StorageManager.CompanyStorage(),
		a.StorageManager.VectorStorage(),
		a.EventService,
		a.Logger,
	)
	if err := a.EmbeddingCoordinator.Start(); err != nil {
		return fmt.Errorf("failed to start embedding coordinator: %w", err)
	}
	a.Logger.Debug().Msg("Embedding coordinator initialized")

	// 7. Matcher with the full scorer registry
	a.MatcherService = matcher.NewService(
		a.Config,
		scorers.Default(),
		a.QuickFilter,
		a.WeightService,
		a.CacheService,
		a.StorageManager.VectorStorage(),
		a.StorageManager.MatchStorage(),
		a.Logger,
	)
	a.Logger.Debug().Int("scorers", len(scorers.Default())).Msg("Matcher initialized")

	// 8. Queue manager (Badger-backed, leased delivery)
	queueMgr, err := queue.NewManager(
		a.StorageManager.QueueStorage(),
		queue.Config{
			PollInterval:      a.Config.QueuePollInterval(),
			Concurrency:       a.Config.Workers.Count,
			VisibilityTimeout: a.Config.QueueVisibilityTimeout(),
			MaxReceive:        a.Config.Queue.MaxReceive,
			QueueName:         a.Config.Queue.QueueName,
		},
		a.Logger,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize queue manager: %w", err)
	}
	if err := queueMgr.Start(); err != nil {
		return fmt.Errorf("failed to start queue manager: %w", err)
	}
	a.QueueManager = queueMgr
	a.Logger.Debug().Str("queue_name", a.Config.Queue.QueueName).Msg("Queue manager initialized")

	// 9. Batch service coordinates submit/partition/process/finalize
	a.BatchService = batch.NewService(
		a.Config.Batch,
		a.StorageManager.JobStorage(),
		a.StorageManager.OpportunityStorage(),
		a.StorageManager.CompanyStorage(),
		a.StorageManager.MatchStorage(),
		a.MatcherService,
		a.QueueManager,
		a.TrackerService,
		a.OptimizerService,
		a.EventService,
		a.Logger,
	)

	// 10. Worker pool drains the queue through BatchService.ProcessUnit.
	// Started in New() after handlers are wired.
	a.WorkerPool = queue.NewWorkerPool(queueMgr, a.Logger)
	a.WorkerPool.RegisterHandler(a.BatchService.ProcessUnit)
	a.Logger.Debug().Int("workers", a.Config.Workers.Count).Msg("Worker pool initialized")

	// 11. Scheduler dispatches recurring batch runs
	a.SchedulerService = scheduler.NewService(
		a.StorageManager.ScheduleStorage(),
		a.BatchService,
		a.EventService,
		a.Logger,
	)
	if a.Config.Scheduler.Enabled {
		if err := a.SchedulerService.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		a.Logger.Debug().Msg("Scheduler started")
	} else {
		a.Logger.Debug().Msg("Scheduler disabled by configuration")
	}

	// 12. Brief generation (Claude-backed, degrades to template briefs
	// when no API key resolves)
	a.BriefService = briefs.NewService(
		context.Background(),
		a.Config,
		a.StorageManager.KeyValueStorage(),
		a.StorageManager.MatchStorage(),
		a.StorageManager.OpportunityStorage(),
		a.StorageManager.CompanyStorage(),
		a.StorageManager.BriefStorage(),
		a.Logger,
	)

	// 13. PDF rendering and company match reports
	a.PDFService = pdf.NewService(a.Logger)
	a.ReportService = reports.NewService(
		a.StorageManager.MatchStorage(),
		a.StorageManager.CompanyStorage(),
		a.StorageManager.OpportunityStorage(),
		a.PDFService,
		a.Logger,
	)

	return nil
}

// initHandlers initializes all HTTP handlers
func (a *App) initHandlers() error {
	a.MatchHandler = handlers.NewMatchHandler(a.MatcherService, a.Logger)

	a.BatchHandler = handlers.NewBatchHandler(
		a.BatchService,
		a.TrackerService,
		a.StorageManager.JobStorage(),
		a.QueueManager,
		a.Logger,
	)

	a.CompanyHandler = handlers.NewCompanyHandler(
		a.StorageManager.CompanyStorage(),
		a.StorageManager.MatchStorage(),
		a.CacheService,
		a.EventService,
		a.ReportService,
		a.BriefService,
		a.Logger,
	)

	a.OpportunityHandler = handlers.NewOpportunityHandler(
		a.StorageManager.OpportunityStorage(),
		a.Logger,
	)

	a.VectorHandler = handlers.NewVectorHandler(
		a.StorageManager.VectorStorage(),
		a.Logger,
	)

	a.ScheduleHandler = handlers.NewScheduleHandler(a.SchedulerService, a.Logger)

	a.BriefHandler = handlers.NewBriefHandler(a.BriefService, a.Logger)

	a.StatusHandler = handlers.NewStatusHandler(
		a.Config,
		a.StorageManager,
		a.QueueManager,
		a.SchedulerService,
		a.EmbeddingService,
		a.BriefService,
		a.Recorder,
		a.Logger,
	)

	// Bridge events to websocket frames with per-type throttling
	a.EventSubscriber = handlers.NewEventSubscriber(
		a.WSHandler,
		a.EventService,
		a.Logger,
		&a.Config.WebSocket,
	)
	a.EventSubscriber.SubscribeAll()

	a.Logger.Debug().Msg("HTTP handlers initialized")
	return nil
}

// startMaintenance launches the background sweep goroutine. Each tick
// purges expired match results and cache entries, embeds opportunities
// that are missing vectors, requeues jobs whose workers died, and
// compacts badger's value log.
func (a *App) startMaintenance() {
	a.ctx, a.cancelCtx = context.WithCancel(context.Background())

	go func() {
		// Panic recovery so one failed sweep cannot take the loop down
		defer func() {
			if r := recover(); r != nil {
				a.Logger.Error().
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", common.GetStackTrace()).
					Msg("Recovered from panic in maintenance loop - loop stopped")
			}
		}()

		ticker := time.NewTicker(maintenanceInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				a.runMaintenance()
			case <-a.ctx.Done():
				a.Logger.Info().Msg("Maintenance loop shutting down")
				return
			}
		}
	}()
	a.Logger.Debug().Dur("interval", maintenanceInterval).Msg("Maintenance loop started")
}

// runMaintenance performs one sweep. Failures are logged and skipped so
// one broken step never starves the others.
func (a *App) runMaintenance() {
	now := time.Now().UTC()

	if purged, err := a.StorageManager.MatchStorage().DeleteExpired(a.ctx, now); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to purge expired match results")
	} else if purged > 0 {
		a.Logger.Info().Int("count", purged).Msg("Purged expired match results")
	}

	if purged, err := a.CacheService.DeleteExpired(a.ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to purge expired cache entries")
	} else if purged > 0 {
		a.Logger.Debug().Int("count", purged).Msg("Purged expired cache entries")
	}

	if embedded, err := a.EmbeddingCoordinator.SweepOpportunities(a.ctx, 50); err != nil {
		a.Logger.Warn().Err(err).Msg("Opportunity embedding sweep failed")
	} else if embedded > 0 {
		a.Logger.Debug().Int("count", embedded).Msg("Embedded opportunities missing vectors")
	}

	if requeued, err := a.BatchService.RequeueStaleJobs(a.ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to requeue stale jobs")
	} else if requeued > 0 {
		a.Logger.Warn().Int("count", requeued).Msg("Requeued stale jobs")
	}

	if rewritten := a.StorageManager.RunGC(); rewritten > 0 {
		a.Logger.Debug().Int("files", rewritten).Msg("Badger value log compacted")
	}
}

// Close closes all application resources
func (a *App) Close() error {
	// Cancel the maintenance loop and any other background goroutines
	if a.cancelCtx != nil {
		a.Logger.Info().Msg("Cancelling background goroutines")
		a.cancelCtx()
		// Allow goroutines to finish gracefully
		time.Sleep(100 * time.Millisecond)
	}

	// Flush context logs before stopping services. Arbor's Stop() is
	// idempotent but should only run once at the end of shutdown.
	a.Logger.Info().Msg("Flushing context logs")
	common.Stop()

	// Stop scheduler so no new batch runs dispatch during teardown
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	// Stop workers; in-flight units run to completion
	if a.WorkerPool != nil {
		if err := a.WorkerPool.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop worker pool")
		} else {
			a.Logger.Info().Msg("Worker pool stopped")
		}
	}

	// Stop the queue manager after workers so final acks land
	if a.QueueManager != nil {
		if err := a.QueueManager.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop queue manager")
		}
	}

	// Stop the log streamer
	if a.LogStreamer != nil {
		if err := a.LogStreamer.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop log streamer")
		}
	}

	// Close event service
	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	// Close storage last: everything above may still flush writes
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}

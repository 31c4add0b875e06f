package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"
	"github.com/ternarybob/congruo/internal/common"
	"github.com/ternarybob/congruo/internal/models"
	"github.com/ternarybob/congruo/internal/queue"
	"github.com/ternarybob/congruo/internal/services/batch"
	"github.com/ternarybob/congruo/internal/services/cache"
	"github.com/ternarybob/congruo/internal/services/events"
	"github.com/ternarybob/congruo/internal/services/filter"
	"github.com/ternarybob/congruo/internal/services/matcher"
	"github.com/ternarybob/congruo/internal/services/optimizer"
	"github.com/ternarybob/congruo/internal/services/scorers"
	"github.com/ternarybob/congruo/internal/services/tracker"
	"github.com/ternarybob/congruo/internal/services/weights"
	"github.com/ternarybob/congruo/internal/storage"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONGRUO_CONFIG")
	if configPath == "" {
		configPath = "congruo.toml"
	}

	config, err := common.LoadFromFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Minimal logger for MCP server (console only, warn level keeps the
	// stdio transport clean)
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	// Initialize storage. Badger is single-process: the MCP server and the
	// HTTP server cannot share a live database directory.
	storageManager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer storageManager.Close()

	// Scoring stack
	eventService := events.NewService(logger)
	weightService := weights.NewService(storageManager.WeightStorage(), models.DefaultWeightSet(), logger)
	quickFilter := filter.NewService(&config.Filter, logger)
	cacheService := cache.NewService(
		storageManager.CacheStorage(),
		time.Duration(config.Matching.CacheTTLSeconds)*time.Second,
		logger,
	)

	matcherService := matcher.NewService(
		config,
		scorers.Default(),
		quickFilter,
		weightService,
		cacheService,
		storageManager.VectorStorage(),
		storageManager.MatchStorage(),
		logger,
	)

	// Batch stack so submitted jobs process while the MCP session is open
	queueMgr, err := queue.NewManager(
		storageManager.QueueStorage(),
		queue.Config{
			PollInterval:      config.QueuePollInterval(),
			Concurrency:       config.Workers.Count,
			VisibilityTimeout: config.QueueVisibilityTimeout(),
			MaxReceive:        config.Queue.MaxReceive,
			QueueName:         config.Queue.QueueName,
		},
		logger,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize queue manager")
	}
	if err := queueMgr.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start queue manager")
	}
	defer queueMgr.Stop()

	trackerService := tracker.NewService(storageManager.JobStorage(), eventService, logger)
	optimizerService := optimizer.NewService(config.Batch, storageManager.HistoryStorage(), logger)

	batchService := batch.NewService(
		config.Batch,
		storageManager.JobStorage(),
		storageManager.OpportunityStorage(),
		storageManager.CompanyStorage(),
		storageManager.MatchStorage(),
		matcherService,
		queueMgr,
		trackerService,
		optimizerService,
		eventService,
		logger,
	)

	workerPool := queue.NewWorkerPool(queueMgr, logger)
	workerPool.RegisterHandler(batchService.ProcessUnit)
	if err := workerPool.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start worker pool")
	}
	defer workerPool.Stop()

	// Create MCP server
	mcpServer := server.NewMCPServer(
		"congruo",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	// Register scoring tools
	mcpServer.AddTool(createScoreMatchTool(), handleScoreMatch(storageManager, matcherService, logger))
	mcpServer.AddTool(createGetMatchTool(), handleGetMatch(storageManager, logger))
	mcpServer.AddTool(createTopMatchesTool(), handleTopMatches(storageManager, logger))

	// Register batch tools
	mcpServer.AddTool(createSubmitBatchTool(), handleSubmitBatch(batchService, logger))
	mcpServer.AddTool(createBatchStatusTool(), handleBatchStatus(batchService, trackerService, logger))

	// Start server (blocks on stdio)
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}

package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/common"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/services/events"
)

// StatusHandler serves health, version, and system status endpoints
type StatusHandler struct {
	config       *common.Config
	storage      interfaces.StorageManager
	queueManager interfaces.QueueManager
	scheduler    interfaces.SchedulerService
	embeddings   interfaces.EmbeddingService
	briefs       interfaces.BriefService
	recorder     *events.Recorder
	startedAt    time.Time
	logger       arbor.ILogger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(
	config *common.Config,
	storage interfaces.StorageManager,
	queueManager interfaces.QueueManager,
	scheduler interfaces.SchedulerService,
	embeddings interfaces.EmbeddingService,
	briefs interfaces.BriefService,
	recorder *events.Recorder,
	logger arbor.ILogger,
) *StatusHandler {
	return &StatusHandler{
		config:       config,
		storage:      storage,
		queueManager: queueManager,
		scheduler:    scheduler,
		embeddings:   embeddings,
		briefs:       briefs,
		recorder:     recorder,
		startedAt:    time.Now().UTC(),
		logger:       logger,
	}
}

// HealthHandler is the liveness probe
// GET /api/health
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "congruo",
	})
}

// VersionHandler returns build version information
// GET /api/version
func (h *StatusHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
		"runtime": common.GetRuntimeInfo(),
	})
}

// SystemStatusHandler returns store counts, queue depth, and provider
// availability
// GET /api/status
func (h *StatusHandler) SystemStatusHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	counts := map[string]int{}
	if n, err := h.storage.OpportunityStorage().CountOpportunities(ctx); err == nil {
		counts["opportunities"] = n
	}
	if n, err := h.storage.CompanyStorage().CountCompanies(ctx); err == nil {
		counts["companies"] = n
	}
	if n, err := h.storage.MatchStorage().CountMatches(ctx); err == nil {
		counts["matches"] = n
	}
	if n, err := h.storage.VectorStorage().CountVectors(ctx); err == nil {
		counts["vectors"] = n
	}
	if n, err := h.storage.CacheStorage().CountEntries(ctx); err == nil {
		counts["cache_entries"] = n
	}

	status := map[string]interface{}{
		"service":        "congruo",
		"version":        common.GetVersion(),
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"counts":         counts,
		"providers": map[string]bool{
			"embeddings": h.embeddings != nil && h.embeddings.IsAvailable(ctx),
			"briefs":     h.briefs != nil && h.briefs.IsAvailable(),
		},
		"scheduler_running": h.scheduler != nil && h.scheduler.IsRunning(),
	}

	if h.queueManager != nil {
		if queueStats, err := h.queueManager.Stats(ctx); err == nil {
			status["queue"] = queueStats
		}
	}

	WriteJSON(w, http.StatusOK, status)
}

// RecentEventsHandler returns the most recent published events
// GET /api/events/recent?limit=50
func (h *StatusHandler) RecentEventsHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := GetListParams(r, 50)

	var recent []events.RecordedEvent
	if h.recorder != nil {
		recent = h.recorder.Recent(limit)
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"events": recent,
		"count":  len(recent),
	})
}

// NotFoundHandler handles 404 errors with JSON response
func (h *StatusHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}

package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
)

// BatchHandler handles batch scoring job API requests
type BatchHandler struct {
	batchService interfaces.BatchService
	tracker      interfaces.TrackerService
	jobStorage   interfaces.JobStorage
	queueManager interfaces.QueueManager
	logger       arbor.ILogger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(
	batchService interfaces.BatchService,
	tracker interfaces.TrackerService,
	jobStorage interfaces.JobStorage,
	queueManager interfaces.QueueManager,
	logger arbor.ILogger,
) *BatchHandler {
	return &BatchHandler{
		batchService: batchService,
		tracker:      tracker,
		jobStorage:   jobStorage,
		queueManager: queueManager,
		logger:       logger,
	}
}

// SubmitBatchHandler accepts a batch scoring request and returns the job id
// POST /api/batches
func (h *BatchHandler) SubmitBatchHandler(w http.ResponseWriter, r *http.Request) {
	var req models.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteCodedError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := req.Validate(); err != nil {
		WriteCodedError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}

	jobID, err := h.batchService.Submit(r.Context(), TenantFromRequest(r), &req)
	if err != nil {
		h.logger.Error().Err(err).Str("company_id", req.CompanyID).Msg("Failed to submit batch job")
		WriteError(w, http.StatusInternalServerError, "Failed to submit batch job")
		return
	}

	h.logger.Info().Str("job_id", jobID).Str("company_id", req.CompanyID).Msg("Batch job submitted")

	WriteAccepted(w, map[string]string{
		"job_id": jobID,
		"status": string(models.JobStatePending),
	})
}

// ListBatchesHandler returns a tenant's batch jobs, newest first
// GET /api/batches?limit=50&offset=0
func (h *BatchHandler) ListBatchesHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := GetListParams(r, 50)

	jobs, err := h.batchService.ListJobs(r.Context(), TenantFromRequest(r), limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list batch jobs")
		WriteError(w, http.StatusInternalServerError, "Failed to list batch jobs")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":   jobs,
		"count":  len(jobs),
		"limit":  limit,
		"offset": offset,
	})
}

// GetBatchHandler returns one job with live throughput and ETA
// GET /api/batches/{id}
func (h *BatchHandler) GetBatchHandler(w http.ResponseWriter, r *http.Request) {
	jobID := pathSegment(r.URL.Path, 2)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	status, err := h.tracker.Status(r.Context(), jobID)
	if err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Batch job not found")
		WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	job, err := h.batchService.GetJob(r.Context(), jobID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job":    job,
		"status": status,
	})
}

// GetBatchHealthHandler returns the progress health verdict for one job
// GET /api/batches/{id}/health
func (h *BatchHandler) GetBatchHealthHandler(w http.ResponseWriter, r *http.Request) {
	jobID := pathSegment(r.URL.Path, 2)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	health, err := h.tracker.Health(r.Context(), jobID)
	if err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Batch job not found")
		WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	WriteJSON(w, http.StatusOK, health)
}

// CancelBatchHandler cancels a pending or running job. Queued units are
// dropped as skipped on dequeue; in-flight units complete and report.
// POST /api/batches/{id}/cancel
func (h *BatchHandler) CancelBatchHandler(w http.ResponseWriter, r *http.Request) {
	jobID := pathSegment(r.URL.Path, 2)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	if err := h.batchService.Cancel(r.Context(), jobID); err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to cancel batch job")
		if strings.Contains(err.Error(), "not found") {
			WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		WriteError(w, http.StatusConflict, err.Error())
		return
	}

	h.logger.Info().Str("job_id", jobID).Msg("Batch job cancelled")

	WriteJSON(w, http.StatusOK, map[string]string{
		"job_id": jobID,
		"status": string(models.JobStateCancelled),
	})
}

// BatchStatsHandler returns aggregate job counts by state plus queue depth
// GET /api/batches/stats
func (h *BatchHandler) BatchStatsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats := map[string]interface{}{}
	for _, state := range []models.JobState{
		models.JobStatePending,
		models.JobStateRunning,
		models.JobStateCompleted,
		models.JobStateFailed,
		models.JobStateCancelled,
	} {
		jobs, err := h.jobStorage.ListJobsByState(ctx, state)
		if err != nil {
			h.logger.Warn().Err(err).Str("state", string(state)).Msg("Failed to count jobs by state")
			continue
		}
		stats[strings.ToLower(string(state))+"_jobs"] = len(jobs)
	}

	if h.queueManager != nil {
		queueStats, err := h.queueManager.Stats(ctx)
		if err != nil {
			h.logger.Warn().Err(err).Msg("Failed to read queue stats")
		} else {
			stats["queue"] = queueStats
		}
	}

	WriteJSON(w, http.StatusOK, stats)
}

// pathSegment returns the nth slash-separated segment of a request path,
// or "" when the path is too short. /api/batches/{id} has the id at index 2.
func pathSegment(path string, index int) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if index < 0 || index >= len(parts) {
		return ""
	}
	return parts[index]
}

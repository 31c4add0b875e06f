package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
)

// ScheduleHandler handles schedule API requests
type ScheduleHandler struct {
	scheduler interfaces.SchedulerService
	logger    arbor.ILogger
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(scheduler interfaces.SchedulerService, logger arbor.ILogger) *ScheduleHandler {
	return &ScheduleHandler{
		scheduler: scheduler,
		logger:    logger,
	}
}

// ListSchedulesHandler returns all schedules with runtime status
// GET /api/schedules
func (h *ScheduleHandler) ListSchedulesHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := h.scheduler.ListSchedules(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list schedules")
		WriteError(w, http.StatusInternalServerError, "Failed to list schedules")
		return
	}

	statuses := h.scheduler.GetAllStatuses()

	type scheduleView struct {
		Entry  *models.ScheduleEntry      `json:"entry"`
		Status *interfaces.ScheduleStatus `json:"status,omitempty"`
	}
	views := make([]scheduleView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, scheduleView{
			Entry:  entry,
			Status: statuses[entry.Name],
		})
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"schedules": views,
		"count":     len(views),
		"running":   h.scheduler.IsRunning(),
	})
}

// CreateScheduleHandler validates, persists, and registers a new schedule
// POST /api/schedules
func (h *ScheduleHandler) CreateScheduleHandler(w http.ResponseWriter, r *http.Request) {
	var entry models.ScheduleEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		WriteCodedError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body: "+err.Error())
		return
	}
	defer r.Body.Close()

	if entry.TenantID == "" {
		entry.TenantID = TenantFromRequest(r)
	}

	if err := h.scheduler.CreateSchedule(r.Context(), &entry); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			WriteError(w, http.StatusConflict, err.Error())
			return
		}
		WriteCodedError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}

	h.logger.Info().Str("schedule", entry.Name).Str("cron", entry.CronExpr).Msg("Schedule created")

	WriteJSON(w, http.StatusCreated, map[string]string{
		"name":   entry.Name,
		"status": "created",
	})
}

// GetScheduleHandler returns one schedule with runtime status
// GET /api/schedules/{name}
func (h *ScheduleHandler) GetScheduleHandler(w http.ResponseWriter, r *http.Request) {
	name := pathSegment(r.URL.Path, 2)
	if name == "" {
		WriteError(w, http.StatusBadRequest, "Schedule name is required")
		return
	}

	entry, err := h.scheduler.GetSchedule(r.Context(), name)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Schedule not found")
		return
	}

	status, _ := h.scheduler.GetStatus(name)

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entry":  entry,
		"status": status,
	})
}

// UpdateScheduleHandler replaces an existing schedule and re-registers its trigger
// PUT /api/schedules/{name}
func (h *ScheduleHandler) UpdateScheduleHandler(w http.ResponseWriter, r *http.Request) {
	name := pathSegment(r.URL.Path, 2)
	if name == "" {
		WriteError(w, http.StatusBadRequest, "Schedule name is required")
		return
	}

	var entry models.ScheduleEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		WriteCodedError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body: "+err.Error())
		return
	}
	defer r.Body.Close()

	// The path name wins over any name in the body
	entry.Name = name
	if entry.TenantID == "" {
		entry.TenantID = TenantFromRequest(r)
	}

	if err := h.scheduler.UpdateSchedule(r.Context(), &entry); err != nil {
		if strings.Contains(err.Error(), "not found") {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		WriteCodedError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}

	h.logger.Info().Str("schedule", name).Msg("Schedule updated")

	WriteJSON(w, http.StatusOK, map[string]string{
		"name":   name,
		"status": "updated",
	})
}

// DeleteScheduleHandler removes a schedule and unregisters its trigger
// DELETE /api/schedules/{name}
func (h *ScheduleHandler) DeleteScheduleHandler(w http.ResponseWriter, r *http.Request) {
	name := pathSegment(r.URL.Path, 2)
	if name == "" {
		WriteError(w, http.StatusBadRequest, "Schedule name is required")
		return
	}

	if err := h.scheduler.DeleteSchedule(r.Context(), name); err != nil {
		if strings.Contains(err.Error(), "not found") {
			WriteError(w, http.StatusNotFound, "Schedule not found")
			return
		}
		h.logger.Error().Err(err).Str("schedule", name).Msg("Failed to delete schedule")
		WriteError(w, http.StatusInternalServerError, "Failed to delete schedule")
		return
	}

	h.logger.Info().Str("schedule", name).Msg("Schedule deleted")

	WriteJSON(w, http.StatusOK, map[string]string{
		"name":   name,
		"status": "deleted",
	})
}

// TriggerScheduleHandler fires a schedule immediately. The advisory lock
// still applies: a schedule whose previous job is active is skipped.
// POST /api/schedules/{name}/trigger
func (h *ScheduleHandler) TriggerScheduleHandler(w http.ResponseWriter, r *http.Request) {
	name := pathSegment(r.URL.Path, 2)
	if name == "" {
		WriteError(w, http.StatusBadRequest, "Schedule name is required")
		return
	}

	jobID, err := h.scheduler.TriggerNow(r.Context(), name)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			WriteError(w, http.StatusNotFound, "Schedule not found")
			return
		}
		h.logger.Warn().Err(err).Str("schedule", name).Msg("Schedule trigger rejected")
		WriteError(w, http.StatusConflict, err.Error())
		return
	}

	h.logger.Info().Str("schedule", name).Str("job_id", jobID).Msg("Schedule triggered")

	WriteAccepted(w, map[string]string{
		"name":   name,
		"job_id": jobID,
		"status": "triggered",
	})
}

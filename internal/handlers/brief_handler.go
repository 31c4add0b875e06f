package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/interfaces"
)

// BriefHandler handles capture brief generation requests
type BriefHandler struct {
	briefService interfaces.BriefService
	logger       arbor.ILogger
}

// NewBriefHandler creates a new brief handler
func NewBriefHandler(briefService interfaces.BriefService, logger arbor.ILogger) *BriefHandler {
	return &BriefHandler{
		briefService: briefService,
		logger:       logger,
	}
}

// GenerateBriefHandler generates a capture brief for a scored match. The
// pair must already have a persisted match result.
// POST /api/matches/{company_id}/{opportunity_id}/brief
func (h *BriefHandler) GenerateBriefHandler(w http.ResponseWriter, r *http.Request) {
	companyID := pathSegment(r.URL.Path, 2)
	opportunityID := pathSegment(r.URL.Path, 3)
	if companyID == "" || opportunityID == "" {
		WriteError(w, http.StatusBadRequest, "Company ID and opportunity ID are required")
		return
	}

	if !h.briefService.IsAvailable() {
		WriteError(w, http.StatusServiceUnavailable,
			"Brief generation is not available: enable briefs and configure an Anthropic API key")
		return
	}

	brief, err := h.briefService.GenerateBrief(r.Context(), companyID, opportunityID)
	if err != nil {
		if strings.Contains(err.Error(), "score the pair first") {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error().Err(err).
			Str("company_id", companyID).
			Str("opportunity_id", opportunityID).
			Msg("Failed to generate brief")
		WriteError(w, http.StatusBadGateway, "Failed to generate brief: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusCreated, brief)
}

// GetBriefHandler returns one persisted brief by id
// GET /api/briefs/{id}
func (h *BriefHandler) GetBriefHandler(w http.ResponseWriter, r *http.Request) {
	briefID := pathSegment(r.URL.Path, 2)
	if briefID == "" {
		WriteError(w, http.StatusBadRequest, "Brief ID is required")
		return
	}

	brief, err := h.briefService.GetBrief(r.Context(), briefID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Brief not found")
		return
	}

	WriteJSON(w, http.StatusOK, brief)
}

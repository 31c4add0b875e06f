package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
)

// OpportunityHandler handles opportunity catalog API requests
type OpportunityHandler struct {
	opportunities interfaces.OpportunityStorage
	logger        arbor.ILogger
}

// NewOpportunityHandler creates a new opportunity handler
func NewOpportunityHandler(opportunities interfaces.OpportunityStorage, logger arbor.ILogger) *OpportunityHandler {
	return &OpportunityHandler{
		opportunities: opportunities,
		logger:        logger,
	}
}

// UpsertOpportunityHandler stores opportunities in the catalog. Accepts a
// single object or an array for bulk loads from the crawler.
// PUT /api/opportunities
func (h *OpportunityHandler) UpsertOpportunityHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	defer r.Body.Close()

	opps, err := decodeOpportunities(body)
	if err != nil {
		WriteCodedError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}

	now := time.Now().UTC()
	for i, opp := range opps {
		if err := opp.Validate(); err != nil {
			WriteCodedError(w, http.StatusBadRequest, "INVALID_INPUT",
				fmt.Sprintf("opportunity %d: %s", i, err.Error()))
			return
		}
		if opp.CreatedAt.IsZero() {
			opp.CreatedAt = now
		}
		opp.UpdatedAt = now
	}

	if len(opps) == 1 {
		err = h.opportunities.StoreOpportunity(r.Context(), opps[0])
	} else {
		err = h.opportunities.StoreOpportunities(r.Context(), opps)
	}
	if err != nil {
		h.logger.Error().Err(err).Int("count", len(opps)).Msg("Failed to store opportunities")
		WriteError(w, http.StatusInternalServerError, "Failed to store opportunities")
		return
	}

	h.logger.Info().Int("count", len(opps)).Msg("Opportunities stored")

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"stored": len(opps),
		"status": "stored",
	})
}

// decodeOpportunities parses a single opportunity or an array of them
func decodeOpportunities(body []byte) ([]*models.Opportunity, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("request body is empty")
	}

	if trimmed[0] == '[' {
		var opps []*models.Opportunity
		if err := json.Unmarshal(trimmed, &opps); err != nil {
			return nil, fmt.Errorf("invalid opportunity array: %w", err)
		}
		if len(opps) == 0 {
			return nil, fmt.Errorf("opportunity array is empty")
		}
		return opps, nil
	}

	var opp models.Opportunity
	if err := json.Unmarshal(trimmed, &opp); err != nil {
		return nil, fmt.Errorf("invalid opportunity: %w", err)
	}
	return []*models.Opportunity{&opp}, nil
}

// ListOpportunitiesHandler scans the catalog with optional filters
// GET /api/opportunities?limit=50&naics_prefix=5415&include_archived=false
func (h *OpportunityHandler) ListOpportunitiesHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := GetListParams(r, 50)

	filters := models.OpportunityFilters{
		IncludeArchived: r.URL.Query().Get("include_archived") == "true",
	}
	if prefix := r.URL.Query().Get("naics_prefix"); prefix != "" {
		filters.NAICSPrefixes = []string{prefix}
	}
	if sa := r.URL.Query().Get("set_aside"); sa != "" {
		filters.SetAsideIn = []string{sa}
	}
	if state := r.URL.Query().Get("state"); state != "" {
		filters.States = []string{state}
	}
	if postedAfter := r.URL.Query().Get("posted_after"); postedAfter != "" {
		t, err := time.Parse("2006-01-02", postedAfter)
		if err != nil {
			WriteCodedError(w, http.StatusBadRequest, "INVALID_INPUT", "posted_after must be YYYY-MM-DD")
			return
		}
		filters.PostedAfter = &t
	}

	var opps []*models.Opportunity
	skipped := 0
	err := h.opportunities.Scan(r.Context(), filters, func(opp *models.Opportunity) bool {
		if skipped < offset {
			skipped++
			return true
		}
		opps = append(opps, opp)
		return len(opps) < limit
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to scan opportunities")
		WriteError(w, http.StatusInternalServerError, "Failed to list opportunities")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"opportunities": opps,
		"count":         len(opps),
		"limit":         limit,
		"offset":        offset,
	})
}

// GetOpportunityHandler returns one opportunity by notice id
// GET /api/opportunities/{id}
func (h *OpportunityHandler) GetOpportunityHandler(w http.ResponseWriter, r *http.Request) {
	noticeID := pathSegment(r.URL.Path, 2)
	if noticeID == "" {
		WriteError(w, http.StatusBadRequest, "Notice ID is required")
		return
	}

	opp, err := h.opportunities.GetOpportunity(r.Context(), noticeID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Opportunity not found")
		return
	}

	WriteJSON(w, http.StatusOK, opp)
}

// DeleteOpportunityHandler removes one opportunity from the catalog
// DELETE /api/opportunities/{id}
func (h *OpportunityHandler) DeleteOpportunityHandler(w http.ResponseWriter, r *http.Request) {
	noticeID := pathSegment(r.URL.Path, 2)
	if noticeID == "" {
		WriteError(w, http.StatusBadRequest, "Notice ID is required")
		return
	}

	if err := h.opportunities.DeleteOpportunity(r.Context(), noticeID); err != nil {
		h.logger.Error().Err(err).Str("notice_id", noticeID).Msg("Failed to delete opportunity")
		WriteError(w, http.StatusInternalServerError, "Failed to delete opportunity")
		return
	}

	h.logger.Info().Str("notice_id", noticeID).Msg("Opportunity deleted")

	WriteJSON(w, http.StatusOK, map[string]string{
		"notice_id": noticeID,
		"status":    "deleted",
	})
}

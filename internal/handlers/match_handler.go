package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
)

// MatchHandler handles synchronous match scoring requests
type MatchHandler struct {
	matcher interfaces.MatcherService
	logger  arbor.ILogger
}

// NewMatchHandler creates a new match handler
func NewMatchHandler(matcher interfaces.MatcherService, logger arbor.ILogger) *MatchHandler {
	return &MatchHandler{
		matcher: matcher,
		logger:  logger,
	}
}

// matchRequestBody mirrors models.MatchRequest with a nullable use_cache so
// an absent field defaults to true instead of JSON's zero value.
type matchRequestBody struct {
	Opportunity     *models.Opportunity    `json:"opportunity"`
	CompanyProfile  *models.CompanyProfile `json:"company_profile"`
	UseCache        *bool                  `json:"use_cache"`
	WeightsOverride map[string]float64     `json:"weights_override,omitempty"`
}

// MatchHandler scores one (opportunity, company) pair synchronously
// POST /api/match
func (h *MatchHandler) MatchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var body matchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteCodedError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body: "+err.Error())
		return
	}
	defer r.Body.Close()

	useCache := true
	if body.UseCache != nil {
		useCache = *body.UseCache
	}

	req := &models.MatchRequest{
		Opportunity:     body.Opportunity,
		CompanyProfile:  body.CompanyProfile,
		UseCache:        useCache,
		WeightsOverride: body.WeightsOverride,
	}

	if err := req.Validate(); err != nil {
		WriteCodedError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}

	result, err := h.matcher.MatchAndStore(r.Context(), req)
	if err != nil {
		if errors.Is(err, interfaces.ErrTransient) || errors.Is(err, interfaces.ErrRateLimit) {
			h.logger.Warn().Err(err).
				Str("company_id", req.CompanyProfile.CompanyID).
				Str("notice_id", req.Opportunity.NoticeID).
				Msg("Match failed on upstream dependency")
			WriteCodedError(w, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", err.Error())
			return
		}
		h.logger.Error().Err(err).
			Str("company_id", req.CompanyProfile.CompanyID).
			Str("notice_id", req.Opportunity.NoticeID).
			Msg("Match failed")
		WriteError(w, http.StatusInternalServerError, "Failed to score match")
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

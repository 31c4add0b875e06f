package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
)

// CompanyHandler handles company profile API requests
type CompanyHandler struct {
	companies     interfaces.CompanyStorage
	matches       interfaces.MatchStorage
	cache         interfaces.MatchCacheService
	events        interfaces.EventService
	reportService interfaces.ReportService
	briefService  interfaces.BriefService
	logger        arbor.ILogger
}

// NewCompanyHandler creates a new company handler
func NewCompanyHandler(
	companies interfaces.CompanyStorage,
	matches interfaces.MatchStorage,
	cache interfaces.MatchCacheService,
	events interfaces.EventService,
	reportService interfaces.ReportService,
	briefService interfaces.BriefService,
	logger arbor.ILogger,
) *CompanyHandler {
	return &CompanyHandler{
		companies:     companies,
		matches:       matches,
		cache:         cache,
		events:        events,
		reportService: reportService,
		briefService:  briefService,
		logger:        logger,
	}
}

// UpsertCompanyHandler stores a company profile. Re-upserts invalidate the
// company's cached match verdicts so the next score reflects the new profile.
// PUT /api/companies
func (h *CompanyHandler) UpsertCompanyHandler(w http.ResponseWriter, r *http.Request) {
	var profile models.CompanyProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		WriteCodedError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := profile.Validate(); err != nil {
		WriteCodedError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}

	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	if err := h.companies.StoreCompany(r.Context(), &profile); err != nil {
		h.logger.Error().Err(err).Str("company_id", profile.CompanyID).Msg("Failed to store company profile")
		WriteError(w, http.StatusInternalServerError, "Failed to store company profile")
		return
	}

	// Profile edits make cached verdicts stale immediately, not at TTL expiry
	h.cache.InvalidateCompany(r.Context(), profile.CompanyID)

	if h.events != nil {
		h.events.Publish(r.Context(), interfaces.Event{
			Type: interfaces.EventCompanyUpdated,
			Payload: map[string]interface{}{
				"company_id": profile.CompanyID,
				"tenant_id":  profile.TenantID,
				"timestamp":  now.Format(time.RFC3339),
			},
		})
	}

	h.logger.Info().Str("company_id", profile.CompanyID).Msg("Company profile stored")

	WriteJSON(w, http.StatusOK, map[string]string{
		"company_id": profile.CompanyID,
		"status":     "stored",
	})
}

// ListCompaniesHandler returns company profiles for a tenant
// GET /api/companies?limit=50&offset=0
func (h *CompanyHandler) ListCompaniesHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := GetListParams(r, 50)

	companies, err := h.companies.ListCompanies(r.Context(), TenantFromRequest(r), limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list companies")
		WriteError(w, http.StatusInternalServerError, "Failed to list companies")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"companies": companies,
		"count":     len(companies),
		"limit":     limit,
		"offset":    offset,
	})
}

// GetCompanyHandler returns one company profile
// GET /api/companies/{id}
func (h *CompanyHandler) GetCompanyHandler(w http.ResponseWriter, r *http.Request) {
	companyID := pathSegment(r.URL.Path, 2)
	if companyID == "" {
		WriteError(w, http.StatusBadRequest, "Company ID is required")
		return
	}

	profile, err := h.companies.GetCompany(r.Context(), companyID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Company not found")
		return
	}

	WriteJSON(w, http.StatusOK, profile)
}

// DeleteCompanyHandler removes a profile along with its cached verdicts and
// persisted match results
// DELETE /api/companies/{id}
func (h *CompanyHandler) DeleteCompanyHandler(w http.ResponseWriter, r *http.Request) {
	companyID := pathSegment(r.URL.Path, 2)
	if companyID == "" {
		WriteError(w, http.StatusBadRequest, "Company ID is required")
		return
	}

	if err := h.companies.DeleteCompany(r.Context(), companyID); err != nil {
		h.logger.Error().Err(err).Str("company_id", companyID).Msg("Failed to delete company")
		WriteError(w, http.StatusInternalServerError, "Failed to delete company")
		return
	}

	h.cache.InvalidateCompany(r.Context(), companyID)
	deleted, err := h.matches.DeleteMatches(r.Context(), companyID)
	if err != nil {
		h.logger.Warn().Err(err).Str("company_id", companyID).Msg("Failed to delete match results for company")
	}

	h.logger.Info().Str("company_id", companyID).Int("matches_deleted", deleted).Msg("Company deleted")

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"company_id":      companyID,
		"matches_deleted": deleted,
		"status":          "deleted",
	})
}

// CompanyMatchesHandler returns a company's scored matches
// GET /api/companies/{id}/matches?limit=20&order=score
func (h *CompanyHandler) CompanyMatchesHandler(w http.ResponseWriter, r *http.Request) {
	companyID := pathSegment(r.URL.Path, 2)
	if companyID == "" {
		WriteError(w, http.StatusBadRequest, "Company ID is required")
		return
	}

	limit, _ := GetListParams(r, 20)

	order := interfaces.MatchOrderScoreDesc
	switch r.URL.Query().Get("order") {
	case "", "score", "score_desc":
		order = interfaces.MatchOrderScoreDesc
	case "created", "created_desc":
		order = interfaces.MatchOrderCreatedDesc
	default:
		WriteCodedError(w, http.StatusBadRequest, "INVALID_INPUT",
			fmt.Sprintf("unknown order %q, expected score or created", r.URL.Query().Get("order")))
		return
	}

	results, err := h.matches.QueryMatches(r.Context(), companyID, limit, order)
	if err != nil {
		h.logger.Error().Err(err).Str("company_id", companyID).Msg("Failed to query matches")
		WriteError(w, http.StatusInternalServerError, "Failed to query matches")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"company_id": companyID,
		"matches":    results,
		"count":      len(results),
	})
}

// CompanyReportHandler renders the company's top matches as a PDF document
// GET /api/companies/{id}/report.pdf?limit=10
func (h *CompanyHandler) CompanyReportHandler(w http.ResponseWriter, r *http.Request) {
	companyID := pathSegment(r.URL.Path, 2)
	if companyID == "" {
		WriteError(w, http.StatusBadRequest, "Company ID is required")
		return
	}

	limit, _ := GetListParams(r, 0) // 0 lets the report service apply its default

	pdfBytes, err := h.reportService.CompanyMatchReport(r.Context(), companyID, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("company_id", companyID).Msg("Failed to render match report")
		WriteError(w, http.StatusNotFound, "Failed to render match report: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", companyID+"-matches.pdf"))
	w.WriteHeader(http.StatusOK)
	w.Write(pdfBytes)
}

// CompanyBriefsHandler lists a company's generated capture briefs
// GET /api/companies/{id}/briefs?limit=20
func (h *CompanyHandler) CompanyBriefsHandler(w http.ResponseWriter, r *http.Request) {
	companyID := pathSegment(r.URL.Path, 2)
	if companyID == "" {
		WriteError(w, http.StatusBadRequest, "Company ID is required")
		return
	}

	limit, _ := GetListParams(r, 20)

	briefs, err := h.briefService.ListBriefs(r.Context(), companyID, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("company_id", companyID).Msg("Failed to list briefs")
		WriteError(w, http.StatusInternalServerError, "Failed to list briefs")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"company_id": companyID,
		"briefs":     briefs,
		"count":      len(briefs),
	})
}

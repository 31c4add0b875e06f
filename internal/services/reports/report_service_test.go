package reports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
	"github.com/ternarybob/congruo/internal/services/pdf"
)

type fakeCompanyStorage struct {
	companies map[string]*models.CompanyProfile
}

func (f *fakeCompanyStorage) StoreCompany(ctx context.Context, profile *models.CompanyProfile) error {
	f.companies[profile.CompanyID] = profile
	return nil
}

func (f *fakeCompanyStorage) GetCompany(ctx context.Context, companyID string) (*models.CompanyProfile, error) {
	profile, ok := f.companies[companyID]
	if !ok {
		return nil, fmt.Errorf("company not found: %s", companyID)
	}
	return profile, nil
}

func (f *fakeCompanyStorage) ListCompanies(ctx context.Context, tenantID string, limit, offset int) ([]*models.CompanyProfile, error) {
	return nil, nil
}

func (f *fakeCompanyStorage) DeleteCompany(ctx context.Context, companyID string) error {
	return nil
}

func (f *fakeCompanyStorage) CountCompanies(ctx context.Context) (int, error) {
	return len(f.companies), nil
}

type fakeMatchStorage struct {
	results   []*models.MatchResult
	lastLimit int
}

func (f *fakeMatchStorage) PutMatch(ctx context.Context, result *models.MatchResult) error {
	f.results = append(f.results, result)
	return nil
}

func (f *fakeMatchStorage) GetMatch(ctx context.Context, companyID, opportunityID string) (*models.MatchResult, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeMatchStorage) QueryMatches(ctx context.Context, companyID string, limit int, order interfaces.MatchOrder) ([]*models.MatchResult, error) {
	f.lastLimit = limit
	if limit > len(f.results) {
		limit = len(f.results)
	}
	return f.results[:limit], nil
}

func (f *fakeMatchStorage) DeleteMatches(ctx context.Context, companyID string) (int, error) {
	return 0, nil
}

func (f *fakeMatchStorage) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

func (f *fakeMatchStorage) CountMatches(ctx context.Context) (int, error) {
	return len(f.results), nil
}

type fakeOpportunityStorage struct {
	opportunities map[string]*models.Opportunity
}

func (f *fakeOpportunityStorage) StoreOpportunity(ctx context.Context, opp *models.Opportunity) error {
	f.opportunities[opp.NoticeID] = opp
	return nil
}

func (f *fakeOpportunityStorage) StoreOpportunities(ctx context.Context, opps []*models.Opportunity) error {
	for _, opp := range opps {
		f.opportunities[opp.NoticeID] = opp
	}
	return nil
}

func (f *fakeOpportunityStorage) GetOpportunity(ctx context.Context, noticeID string) (*models.Opportunity, error) {
	opp, ok := f.opportunities[noticeID]
	if !ok {
		return nil, fmt.Errorf("opportunity not found: %s", noticeID)
	}
	return opp, nil
}

func (f *fakeOpportunityStorage) DeleteOpportunity(ctx context.Context, noticeID string) error {
	return nil
}

func (f *fakeOpportunityStorage) Scan(ctx context.Context, filters models.OpportunityFilters, fn func(*models.Opportunity) bool) error {
	return nil
}

func (f *fakeOpportunityStorage) CountOpportunities(ctx context.Context) (int, error) {
	return len(f.opportunities), nil
}

func (f *fakeOpportunityStorage) ClearAll(ctx context.Context) error {
	return nil
}

func newTestService() (*Service, *fakeCompanyStorage, *fakeMatchStorage, *fakeOpportunityStorage) {
	logger := arbor.NewLogger()
	companies := &fakeCompanyStorage{companies: make(map[string]*models.CompanyProfile)}
	matches := &fakeMatchStorage{}
	opportunities := &fakeOpportunityStorage{opportunities: make(map[string]*models.Opportunity)}

	svc := NewService(matches, companies, opportunities, pdf.NewService(logger), logger).(*Service)
	return svc, companies, matches, opportunities
}

func seedReportData(companies *fakeCompanyStorage, matches *fakeMatchStorage, opportunities *fakeOpportunityStorage) {
	companies.companies["acme-federal"] = &models.CompanyProfile{
		CompanyID:      "acme-federal",
		TenantID:       "tenant-1",
		Name:           "Acme Federal",
		NAICSCodes:     []string{"541512"},
		Certifications: []string{"SDVOSB"},
		EmployeeCount:  "11-50",
	}
	opportunities.opportunities["FA8750-26-R-0001"] = &models.Opportunity{
		NoticeID:   "FA8750-26-R-0001",
		Title:      "Cybersecurity Support Services",
		NAICSCode:  "541512",
		SetAside:   "SDVOSB",
		PostedDate: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
	}
	matches.results = []*models.MatchResult{
		{
			ID:              models.MatchKey("acme-federal", "FA8750-26-R-0001"),
			CompanyID:       "acme-federal",
			OpportunityID:   "FA8750-26-R-0001",
			TotalScore:      0.82,
			ConfidenceLevel: models.ConfidenceHigh,
			Status:          models.MatchStatusOK,
			ComponentScores: map[string]float64{"naics_alignment": 1.0, "keyword_matching": 0.7},
			ComponentStatus: map[string]string{"naics_alignment": "ok", "keyword_matching": "ok"},
			MatchReasons:    []string{"Exact NAICS match on 541512"},
			Recommendations: []string{"Request the draft PWS"},
		},
		{
			ID:              models.MatchKey("acme-federal", "GONE-001"),
			CompanyID:       "acme-federal",
			OpportunityID:   "GONE-001",
			TotalScore:      0.44,
			ConfidenceLevel: models.ConfidenceLow,
			Status:          models.MatchStatusOK,
		},
	}
}

func TestCompanyMatchReportProducesPDF(t *testing.T) {
	svc, companies, matches, opportunities := newTestService()
	seedReportData(companies, matches, opportunities)

	pdfBytes, err := svc.CompanyMatchReport(context.Background(), "acme-federal", 5)
	require.NoError(t, err)
	require.NotEmpty(t, pdfBytes)
	require.Equal(t, "%PDF", string(pdfBytes[:4]))
	require.Equal(t, 5, matches.lastLimit)
}

func TestCompanyMatchReportUnknownCompany(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.CompanyMatchReport(context.Background(), "ghost-corp", 5)
	require.ErrorContains(t, err, "ghost-corp")
}

func TestCompanyMatchReportDefaultsLimit(t *testing.T) {
	svc, companies, matches, opportunities := newTestService()
	seedReportData(companies, matches, opportunities)

	_, err := svc.CompanyMatchReport(context.Background(), "acme-federal", 0)
	require.NoError(t, err)
	require.Equal(t, defaultReportMatches, matches.lastLimit)
}

func TestBuildMarkdownLaysOutReport(t *testing.T) {
	svc, companies, matches, opportunities := newTestService()
	seedReportData(companies, matches, opportunities)

	profile := companies.companies["acme-federal"]
	markdown := svc.buildMarkdown(context.Background(), profile, matches.results)

	require.Contains(t, markdown, "# Match Report: Acme Federal")
	require.Contains(t, markdown, "- Primary NAICS: 541512")
	require.Contains(t, markdown, "| 1 | FA8750-26-R-0001 | Cybersecurity Support Services | 0.82 | HIGH | ok |")
	require.Contains(t, markdown, "## 1. Cybersecurity Support Services")
	require.Contains(t, markdown, "| naics_alignment | 1.00 | ok |")
	require.Contains(t, markdown, "- Exact NAICS match on 541512")
	require.Contains(t, markdown, "### Recommendations")
}

func TestBuildMarkdownFlagsPrunedOpportunity(t *testing.T) {
	svc, companies, matches, opportunities := newTestService()
	seedReportData(companies, matches, opportunities)

	profile := companies.companies["acme-federal"]
	markdown := svc.buildMarkdown(context.Background(), profile, matches.results)

	require.Contains(t, markdown, "(no longer in catalog)")
	require.Contains(t, markdown, "## 2. (no longer in catalog)")
}

func TestBuildMarkdownEmptyMatches(t *testing.T) {
	svc, companies, _, _ := newTestService()
	companies.companies["acme-federal"] = &models.CompanyProfile{
		CompanyID: "acme-federal",
		Name:      "Acme Federal",
	}

	markdown := svc.buildMarkdown(context.Background(), companies.companies["acme-federal"], nil)
	require.Contains(t, markdown, "No scored matches on file")
}

func TestTableCellNeutralizesPipes(t *testing.T) {
	require.Equal(t, "A/B testing", tableCell("A|B testing"))
}

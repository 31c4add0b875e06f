package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
)

// fakeCompanyStore is an in-memory CompanyStorage
type fakeCompanyStore struct {
	mu       sync.Mutex
	profiles map[string]*models.CompanyProfile
}

func newFakeCompanyStore() *fakeCompanyStore {
	return &fakeCompanyStore{profiles: make(map[string]*models.CompanyProfile)}
}

func (f *fakeCompanyStore) StoreCompany(_ context.Context, profile *models.CompanyProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *profile
	f.profiles[profile.CompanyID] = &copied
	return nil
}

func (f *fakeCompanyStore) GetCompany(_ context.Context, companyID string) (*models.CompanyProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	profile, ok := f.profiles[companyID]
	if !ok {
		return nil, fmt.Errorf("company not found: %s", companyID)
	}
	copied := *profile
	return &copied, nil
}

func (f *fakeCompanyStore) ListCompanies(_ context.Context, tenantID string, limit, offset int) ([]*models.CompanyProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.CompanyProfile, 0, len(f.profiles))
	for _, p := range f.profiles {
		if tenantID != "" && p.TenantID != tenantID {
			continue
		}
		copied := *p
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompanyID < out[j].CompanyID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCompanyStore) DeleteCompany(_ context.Context, companyID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.profiles, companyID)
	return nil
}

func (f *fakeCompanyStore) CountCompanies(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.profiles), nil
}

// fakeMatchStore serves canned match results for query tests
type fakeMatchStore struct {
	results      []*models.MatchResult
	deletedFor   string
	deletedCount int
}

func (f *fakeMatchStore) PutMatch(_ context.Context, _ *models.MatchResult) error { return nil }

func (f *fakeMatchStore) GetMatch(_ context.Context, companyID, oppID string) (*models.MatchResult, error) {
	for _, r := range f.results {
		if r.CompanyID == companyID && r.OpportunityID == oppID {
			return r, nil
		}
	}
	return nil, fmt.Errorf("match not found")
}

func (f *fakeMatchStore) QueryMatches(_ context.Context, companyID string, limit int, _ interfaces.MatchOrder) ([]*models.MatchResult, error) {
	out := []*models.MatchResult{}
	for _, r := range f.results {
		if r.CompanyID == companyID {
			out = append(out, r)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeMatchStore) DeleteMatches(_ context.Context, companyID string) (int, error) {
	f.deletedFor = companyID
	return f.deletedCount, nil
}

func (f *fakeMatchStore) DeleteExpired(_ context.Context, _ time.Time) (int, error) { return 0, nil }

func (f *fakeMatchStore) CountMatches(_ context.Context) (int, error) { return len(f.results), nil }

// fakeCacheService records invalidations
type fakeCacheService struct {
	invalidated []string
}

func (f *fakeCacheService) Get(_ context.Context, _ string) (*models.MatchResult, bool) {
	return nil, false
}

func (f *fakeCacheService) Put(_ context.Context, _ string, _ *models.MatchResult) {}

func (f *fakeCacheService) InvalidateCompany(_ context.Context, companyID string) {
	f.invalidated = append(f.invalidated, companyID)
}

func (f *fakeCacheService) DeleteExpired(_ context.Context) (int, error) { return 0, nil }

func newCompanyHandler(companies *fakeCompanyStore, matches *fakeMatchStore, cache *fakeCacheService) *CompanyHandler {
	return NewCompanyHandler(companies, matches, cache, nil, nil, nil, arbor.NewLogger())
}

func TestUpsertCompanyHandler(t *testing.T) {
	companies := newFakeCompanyStore()
	cache := &fakeCacheService{}
	handler := newCompanyHandler(companies, &fakeMatchStore{}, cache)

	profile := testProfile()
	data, err := json.Marshal(profile)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/api/companies", bytes.NewBuffer(data))
	rec := httptest.NewRecorder()

	handler.UpsertCompanyHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := companies.GetCompany(context.Background(), profile.CompanyID)
	require.NoError(t, err)
	assert.Equal(t, profile.Name, stored.Name)
	assert.False(t, stored.UpdatedAt.IsZero())

	// Re-upserting must invalidate the company's cached verdicts
	assert.Equal(t, []string{profile.CompanyID}, cache.invalidated)
}

func TestUpsertCompanyHandlerRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", "{oops"},
		{"missing company_id", `{"tenant_id":"tenant-a","name":"Acme"}`},
		{"missing tenant_id", `{"company_id":"comp-1","name":"Acme"}`},
		{"too many naics codes", `{"company_id":"comp-1","tenant_id":"t","naics_codes":["1","2","3","4","5","6","7","8","9","10","11"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newCompanyHandler(newFakeCompanyStore(), &fakeMatchStore{}, &fakeCacheService{})

			req := httptest.NewRequest(http.MethodPut, "/api/companies", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()

			handler.UpsertCompanyHandler(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGetCompanyHandlerNotFound(t *testing.T) {
	handler := newCompanyHandler(newFakeCompanyStore(), &fakeMatchStore{}, &fakeCacheService{})

	req := httptest.NewRequest(http.MethodGet, "/api/companies/comp-missing", nil)
	rec := httptest.NewRecorder()

	handler.GetCompanyHandler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteCompanyHandlerCascades(t *testing.T) {
	companies := newFakeCompanyStore()
	require.NoError(t, companies.StoreCompany(context.Background(), testProfile()))

	matches := &fakeMatchStore{deletedCount: 7}
	cache := &fakeCacheService{}
	handler := newCompanyHandler(companies, matches, cache)

	req := httptest.NewRequest(http.MethodDelete, "/api/companies/comp-100", nil)
	rec := httptest.NewRecorder()

	handler.DeleteCompanyHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, float64(7), resp["matches_deleted"])

	// Cached verdicts and persisted results go with the profile
	assert.Equal(t, []string{"comp-100"}, cache.invalidated)
	assert.Equal(t, "comp-100", matches.deletedFor)

	count, _ := companies.CountCompanies(context.Background())
	assert.Equal(t, 0, count)
}

func TestCompanyMatchesHandler(t *testing.T) {
	matches := &fakeMatchStore{
		results: []*models.MatchResult{
			{ID: "comp-100:n-1", CompanyID: "comp-100", OpportunityID: "n-1", TotalScore: 0.9},
			{ID: "comp-100:n-2", CompanyID: "comp-100", OpportunityID: "n-2", TotalScore: 0.7},
			{ID: "comp-other:n-1", CompanyID: "comp-other", OpportunityID: "n-1", TotalScore: 0.8},
		},
	}
	handler := newCompanyHandler(newFakeCompanyStore(), matches, &fakeCacheService{})

	req := httptest.NewRequest(http.MethodGet, "/api/companies/comp-100/matches?order=score", nil)
	rec := httptest.NewRecorder()

	handler.CompanyMatchesHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		CompanyID string                `json:"company_id"`
		Matches   []*models.MatchResult `json:"matches"`
		Count     int                   `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "comp-100", resp.CompanyID)
	assert.Equal(t, 2, resp.Count)
}

func TestCompanyMatchesHandlerRejectsUnknownOrder(t *testing.T) {
	handler := newCompanyHandler(newFakeCompanyStore(), &fakeMatchStore{}, &fakeCacheService{})

	req := httptest.NewRequest(http.MethodGet, "/api/companies/comp-100/matches?order=alphabetical", nil)
	rec := httptest.NewRecorder()

	handler.CompanyMatchesHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

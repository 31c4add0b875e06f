package matcher

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/common"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
	"github.com/ternarybob/congruo/internal/services/filter"
	"github.com/ternarybob/congruo/internal/services/scorers"
)

// ---- fakes ----

type fakeWeightService struct{ set models.WeightSet }

func (f *fakeWeightService) Resolve(_ context.Context, _ string) (models.WeightSet, error) {
	return f.set.Clone(), nil
}
func (f *fakeWeightService) SetTenantWeights(_ context.Context, _ string, _ models.WeightSet) error {
	return nil
}
func (f *fakeWeightService) DeleteTenantWeights(_ context.Context, _ string) error { return nil }
func (f *fakeWeightService) Flush()                                                {}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]models.MatchResult
	hits    int
	puts    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]models.MatchResult)}
}

func (f *fakeCache) Get(_ context.Context, fingerprint string) (*models.MatchResult, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[fingerprint]
	if !ok {
		return nil, false
	}
	f.hits++
	result := entry
	result.Cached = true
	return &result, true
}

func (f *fakeCache) Put(_ context.Context, fingerprint string, result *models.MatchResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	f.entries[fingerprint] = *result
}

func (f *fakeCache) InvalidateCompany(_ context.Context, companyID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for fp, entry := range f.entries {
		if entry.CompanyID == companyID {
			delete(f.entries, fp)
		}
	}
}

func (f *fakeCache) DeleteExpired(_ context.Context) (int, error) { return 0, nil }

type fakeVectors struct {
	mu      sync.Mutex
	records map[string]*models.VectorRecord
}

func newFakeVectors() *fakeVectors {
	return &fakeVectors{records: make(map[string]*models.VectorRecord)}
}

func (f *fakeVectors) PutVector(_ context.Context, record *models.VectorRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[record.Key] = record
	return nil
}

func (f *fakeVectors) GetVector(_ context.Context, key string) (*models.VectorRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[key], nil
}

func (f *fakeVectors) DeleteVector(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, key)
	return nil
}

func (f *fakeVectors) CountVectors(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records), nil
}

type fakeMatches struct {
	mu   sync.Mutex
	rows map[string]*models.MatchResult
}

func newFakeMatches() *fakeMatches {
	return &fakeMatches{rows: make(map[string]*models.MatchResult)}
}

func (f *fakeMatches) PutMatch(_ context.Context, result *models.MatchResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[result.ID] = result
	return nil
}

func (f *fakeMatches) GetMatch(_ context.Context, companyID, opportunityID string) (*models.MatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[models.MatchKey(companyID, opportunityID)], nil
}

func (f *fakeMatches) QueryMatches(_ context.Context, companyID string, limit int, _ interfaces.MatchOrder) ([]*models.MatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.MatchResult, 0)
	for _, row := range f.rows {
		if row.CompanyID == companyID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalScore > out[j].TotalScore })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeMatches) DeleteMatches(_ context.Context, companyID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for id, row := range f.rows {
		if row.CompanyID == companyID {
			delete(f.rows, id)
			count++
		}
	}
	return count, nil
}

func (f *fakeMatches) DeleteExpired(_ context.Context, _ time.Time) (int, error) { return 0, nil }

func (f *fakeMatches) CountMatches(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows), nil
}

// countingScorer counts invocations of the wrapped scorer
type countingScorer struct {
	inner interfaces.Scorer
	calls *int32
}

func (c *countingScorer) Name() string           { return c.inner.Name() }
func (c *countingScorer) DefaultWeight() float64 { return c.inner.DefaultWeight() }
func (c *countingScorer) Score(ctx context.Context, opp *models.Opportunity, profile *models.CompanyProfile, sctx *models.ScoringContext) models.ComponentResult {
	atomic.AddInt32(c.calls, 1)
	return c.inner.Score(ctx, opp, profile, sctx)
}

func countingRegistry(calls *int32) []interfaces.Scorer {
	base := scorers.Default()
	out := make([]interfaces.Scorer, len(base))
	for i, sc := range base {
		out[i] = &countingScorer{inner: sc, calls: calls}
	}
	return out
}

// stubScorer is a controllable scorer for timeout and panic scenarios
type stubScorer struct {
	name   string
	weight float64
	delay  time.Duration
	score  float64
	panics bool
}

func (s *stubScorer) Name() string           { return s.name }
func (s *stubScorer) DefaultWeight() float64 { return s.weight }
func (s *stubScorer) Score(_ context.Context, _ *models.Opportunity, _ *models.CompanyProfile, _ *models.ScoringContext) models.ComponentResult {
	if s.panics {
		panic("scorer logic error")
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return models.ComponentResult{Score: s.score, Status: models.ScoreStatusOK}
}

// ---- fixtures ----

type harness struct {
	service interfaces.MatcherService
	cache   *fakeCache
	vectors *fakeVectors
	matches *fakeMatches
	calls   int32
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := common.NewDefaultConfig()
	h := &harness{
		cache:   newFakeCache(),
		vectors: newFakeVectors(),
		matches: newFakeMatches(),
	}

	logger := arbor.NewLogger()
	h.service = NewService(
		cfg,
		countingRegistry(&h.calls),
		filter.NewService(&cfg.Filter, logger),
		&fakeWeightService{set: models.DefaultWeightSet()},
		h.cache,
		h.vectors,
		h.matches,
		logger,
	)
	return h
}

func unitVector(dim int) []float32 {
	v := make([]float32, dim)
	v[0] = 1
	return v
}

// seedPair builds a strongly aligned opportunity/profile pair
func seedPair() (*models.Opportunity, *models.CompanyProfile) {
	value := 500_000.0
	opp := &models.Opportunity{
		NoticeID:           "FA8750-26-R-0001",
		Title:              "Custom software development and cloud migration services",
		Description:        "The agency requires custom software development, cloud migration, and cybersecurity engineering support services.",
		NAICSCode:          "541511",
		SetAside:           "SDVOSB",
		PostedDate:         time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		ArchiveDate:        time.Now().UTC().Add(30 * 24 * time.Hour),
		PlaceOfPerformance: &models.Place{State: "VA", City: "Arlington"},
		ContractValue:      &value,
		Department:         "Department of Defense",
		Office:             "Air Force Research Laboratory",
		VectorURI:          "vec/opp/FA8750-26-R-0001",
	}

	profile := &models.CompanyProfile{
		CompanyID:           "acme-federal",
		TenantID:            "tenant-1",
		Name:                "Acme Federal Solutions",
		CapabilityStatement: "Acme delivers custom software development, cloud migration, and cybersecurity engineering for federal agencies.",
		NAICSCodes:          []string{"541511", "541512"},
		Certifications:      []string{"SDVOSB", "SMALL BUSINESS"},
		EmployeeCount:       "11-50",
		Locations:           []models.Place{{State: "VA", City: "Richmond"}},
		PastPerformance: []models.PastPerformanceRecord{
			{Agency: "Department of Defense", Description: "Software sustainment", Year: 2025},
			{Agency: "Department of Defense", Description: "Cloud migration", Year: 2024},
			{Agency: "General Services Administration", Description: "Analytics platform", Year: 2024},
			{Agency: "Department of Energy", Description: "Cyber assessment", Year: 2023},
			{Agency: "Department of the Treasury", Description: "Data pipeline", Year: 2022},
		},
		VectorURI: "vec/comp/acme-federal",
		Active:    true,
	}
	return opp, profile
}

func seedVectors(h *harness, opp *models.Opportunity, profile *models.CompanyProfile) {
	ctx := context.Background()
	_ = h.vectors.PutVector(ctx, &models.VectorRecord{Key: opp.VectorURI, Dimension: 8, Full: unitVector(8)})
	_ = h.vectors.PutVector(ctx, &models.VectorRecord{Key: profile.VectorURI, Dimension: 8, Full: unitVector(8)})
}

// ---- tests ----

func TestMatchAlignedPairScoresHigh(t *testing.T) {
	h := newHarness(t)
	opp, profile := seedPair()
	seedVectors(h, opp, profile)

	result, err := h.service.Match(context.Background(), &models.MatchRequest{
		Opportunity:    opp,
		CompanyProfile: profile,
		UseCache:       true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.MatchStatusOK, result.Status)
	assert.InDelta(t, 1.0, result.ComponentScores[scorers.NameNAICS], 1e-9, "exact NAICS should score 1.0")
	assert.InDelta(t, 1.0, result.ComponentScores[scorers.NameCertification], 1e-9)
	assert.GreaterOrEqual(t, result.TotalScore, 0.60)
	assert.Contains(t, []models.ConfidenceLevel{models.ConfidenceMedium, models.ConfidenceHigh}, result.ConfidenceLevel)
	assert.Len(t, result.ComponentScores, 8)
	assert.Equal(t, models.MatchKey(profile.CompanyID, opp.NoticeID), result.ID)
	assert.NotEmpty(t, result.MatchReasons)
	assert.Len(t, result.Fingerprint, 32)
}

func TestMatchTotalIsWeightedSum(t *testing.T) {
	h := newHarness(t)
	opp, profile := seedPair()
	seedVectors(h, opp, profile)

	result, err := h.service.Match(context.Background(), &models.MatchRequest{
		Opportunity:    opp,
		CompanyProfile: profile,
	})
	require.NoError(t, err)

	weights := models.DefaultWeightSet()
	sum := 0.0
	for name, score := range result.ComponentScores {
		sum += weights[name] * score
	}
	assert.InDelta(t, sum, result.TotalScore, 1e-9)

	// Confidence is a pure function of the total
	want := models.ConfidenceForScore(result.TotalScore, 0.75, 0.50)
	assert.Equal(t, want, result.ConfidenceLevel)
}

func TestMatchSetAsideMismatchShortCircuits(t *testing.T) {
	h := newHarness(t)
	opp, profile := seedPair()
	opp.SetAside = "8(A)"
	profile.Certifications = []string{"WOSB"}

	result, err := h.service.Match(context.Background(), &models.MatchRequest{
		Opportunity:    opp,
		CompanyProfile: profile,
		UseCache:       true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.MatchStatusFiltered, result.Status)
	assert.Equal(t, 0.0, result.TotalScore)
	assert.Equal(t, models.ConfidenceLow, result.ConfidenceLevel)
	assert.Empty(t, result.ComponentScores)
	assert.NotEmpty(t, result.MatchReasons, "fail reasons become match reasons")
	assert.Equal(t, int32(0), atomic.LoadInt32(&h.calls), "no scorer runs for a filtered pair")
}

func TestMatchArchivedOpportunityFiltered(t *testing.T) {
	h := newHarness(t)
	opp, profile := seedPair()
	opp.ArchiveDate = time.Now().UTC().Add(-24 * time.Hour)

	result, err := h.service.Match(context.Background(), &models.MatchRequest{
		Opportunity:    opp,
		CompanyProfile: profile,
	})
	require.NoError(t, err)

	assert.Equal(t, models.MatchStatusFiltered, result.Status)
	assert.Equal(t, int32(0), atomic.LoadInt32(&h.calls))
}

func TestMatchMissingEmbeddingsDegrade(t *testing.T) {
	h := newHarness(t)
	opp, profile := seedPair()
	// Vector URIs resolve to nothing: the store holds no records

	result, err := h.service.Match(context.Background(), &models.MatchRequest{
		Opportunity:    opp,
		CompanyProfile: profile,
	})
	require.NoError(t, err, "missing embeddings must not raise")

	assert.Equal(t, models.MatchStatusDegraded, result.Status)
	assert.Equal(t, 0.0, result.ComponentScores[scorers.NameSemantic])
	assert.Equal(t, models.ScoreStatusMissingEmbedding, result.ComponentStatus[scorers.NameSemantic])

	// Other scorers still contribute
	assert.InDelta(t, 1.0, result.ComponentScores[scorers.NameNAICS], 1e-9)
	assert.Greater(t, result.TotalScore, 0.0)
}

func TestMatchCacheHitSkipsScoring(t *testing.T) {
	h := newHarness(t)
	opp, profile := seedPair()
	seedVectors(h, opp, profile)

	req := &models.MatchRequest{Opportunity: opp, CompanyProfile: profile, UseCache: true}

	first, err := h.service.Match(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	callsAfterFirst := atomic.LoadInt32(&h.calls)
	assert.Equal(t, int32(8), callsAfterFirst)

	second, err := h.service.Match(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, callsAfterFirst, atomic.LoadInt32(&h.calls), "cache hit must not invoke scorers")

	// Identical verdict modulo the cached flag
	assert.Equal(t, first.TotalScore, second.TotalScore)
	assert.Equal(t, first.ComponentScores, second.ComponentScores)
	assert.Equal(t, first.ConfidenceLevel, second.ConfidenceLevel)
	assert.Equal(t, first.MatchReasons, second.MatchReasons)
}

func TestMatchIdempotentWithoutCache(t *testing.T) {
	h := newHarness(t)
	opp, profile := seedPair()
	seedVectors(h, opp, profile)

	req := &models.MatchRequest{Opportunity: opp, CompanyProfile: profile, UseCache: false}

	first, err := h.service.Match(context.Background(), req)
	require.NoError(t, err)
	second, err := h.service.Match(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.TotalScore, second.TotalScore)
	assert.Equal(t, first.ComponentScores, second.ComponentScores)
	assert.Equal(t, first.MatchReasons, second.MatchReasons)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
}

func TestMatchFingerprintTracksContent(t *testing.T) {
	h := newHarness(t)
	opp, profile := seedPair()
	seedVectors(h, opp, profile)

	first, err := h.service.Match(context.Background(), &models.MatchRequest{Opportunity: opp, CompanyProfile: profile})
	require.NoError(t, err)

	opp.Description += " Amendment 0001 extends the response deadline."
	second, err := h.service.Match(context.Background(), &models.MatchRequest{Opportunity: opp, CompanyProfile: profile})
	require.NoError(t, err)

	assert.NotEqual(t, first.Fingerprint, second.Fingerprint, "content edits must change the fingerprint")
}

func TestMatchScorerTimeout(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Matching.ScorerHardTimeoutMs = 30

	cache := newFakeCache()
	logger := arbor.NewLogger()
	service := NewService(
		cfg,
		[]interfaces.Scorer{
			&stubScorer{name: "slow_component", weight: 0.5, delay: 500 * time.Millisecond, score: 1.0},
			&stubScorer{name: "fast_component", weight: 0.5, score: 0.9},
		},
		filter.NewService(&cfg.Filter, logger),
		&fakeWeightService{set: models.WeightSet{"slow_component": 0.5, "fast_component": 0.5}},
		cache,
		newFakeVectors(),
		newFakeMatches(),
		logger,
	)

	opp, profile := seedPair()
	result, err := service.Match(context.Background(), &models.MatchRequest{Opportunity: opp, CompanyProfile: profile})
	require.NoError(t, err)

	assert.Equal(t, models.ScoreStatusTimeout, result.ComponentStatus["slow_component"])
	assert.Equal(t, 0.0, result.ComponentScores["slow_component"])
	assert.Equal(t, models.ScoreStatusOK, result.ComponentStatus["fast_component"])
	assert.Equal(t, models.MatchStatusDegraded, result.Status)
	assert.InDelta(t, 0.45, result.TotalScore, 1e-9)
}

func TestMatchScorerPanicRecovered(t *testing.T) {
	cfg := common.NewDefaultConfig()

	logger := arbor.NewLogger()
	service := NewService(
		cfg,
		[]interfaces.Scorer{
			&stubScorer{name: "broken_component", weight: 0.5, panics: true},
			&stubScorer{name: "fast_component", weight: 0.5, score: 1.0},
		},
		filter.NewService(&cfg.Filter, logger),
		&fakeWeightService{set: models.WeightSet{"broken_component": 0.5, "fast_component": 0.5}},
		newFakeCache(),
		newFakeVectors(),
		newFakeMatches(),
		logger,
	)

	opp, profile := seedPair()
	result, err := service.Match(context.Background(), &models.MatchRequest{Opportunity: opp, CompanyProfile: profile})
	require.NoError(t, err, "scorer panics must not escape the orchestrator")

	assert.Equal(t, "error:panic", result.ComponentStatus["broken_component"])
	assert.Equal(t, 0.0, result.ComponentScores["broken_component"])
	assert.InDelta(t, 0.5, result.TotalScore, 1e-9)
}

func TestMatchBudgetYieldsPartial(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Matching.OrchestratorBudgetMs = 50
	cfg.Matching.ScorerHardTimeoutMs = 5000

	logger := arbor.NewLogger()
	service := NewService(
		cfg,
		[]interfaces.Scorer{
			&stubScorer{name: "fast_component", weight: 0.5, score: 1.0},
			&stubScorer{name: "glacial_component", weight: 0.5, delay: 2 * time.Second, score: 1.0},
		},
		filter.NewService(&cfg.Filter, logger),
		&fakeWeightService{set: models.WeightSet{"fast_component": 0.5, "glacial_component": 0.5}},
		newFakeCache(),
		newFakeVectors(),
		newFakeMatches(),
		logger,
	)

	opp, profile := seedPair()
	result, err := service.Match(context.Background(), &models.MatchRequest{Opportunity: opp, CompanyProfile: profile})
	require.NoError(t, err)

	assert.Equal(t, models.MatchStatusPartial, result.Status)
	if score, ok := result.ComponentScores["fast_component"]; ok {
		assert.InDelta(t, 1.0, score, 1e-9)
	}
	_, glacialDone := result.ComponentScores["glacial_component"]
	assert.False(t, glacialDone, "unfinished scorer must be absent from a partial result")
}

func TestMatchPartialResultNotCached(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Matching.OrchestratorBudgetMs = 50
	cfg.Matching.ScorerHardTimeoutMs = 5000

	cache := newFakeCache()
	logger := arbor.NewLogger()
	service := NewService(
		cfg,
		[]interfaces.Scorer{
			&stubScorer{name: "glacial_component", weight: 1.0, delay: 2 * time.Second, score: 1.0},
		},
		filter.NewService(&cfg.Filter, logger),
		&fakeWeightService{set: models.WeightSet{"glacial_component": 1.0}},
		cache,
		newFakeVectors(),
		newFakeMatches(),
		logger,
	)

	opp, profile := seedPair()
	result, err := service.Match(context.Background(), &models.MatchRequest{Opportunity: opp, CompanyProfile: profile, UseCache: true})
	require.NoError(t, err)

	assert.Equal(t, models.MatchStatusPartial, result.Status)
	assert.Equal(t, 0, cache.puts, "partial verdicts must not be memoized")
}

func TestMatchAndStorePersistsVerdicts(t *testing.T) {
	h := newHarness(t)
	opp, profile := seedPair()
	seedVectors(h, opp, profile)

	result, err := h.service.MatchAndStore(context.Background(), &models.MatchRequest{
		Opportunity:    opp,
		CompanyProfile: profile,
	})
	require.NoError(t, err)

	stored, err := h.matches.GetMatch(context.Background(), profile.CompanyID, opp.NoticeID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, result.TotalScore, stored.TotalScore)
}

func TestMatchAndStorePersistsFilteredVerdicts(t *testing.T) {
	h := newHarness(t)
	opp, profile := seedPair()
	opp.SetAside = "8(A)"
	profile.Certifications = nil

	_, err := h.service.MatchAndStore(context.Background(), &models.MatchRequest{
		Opportunity:    opp,
		CompanyProfile: profile,
	})
	require.NoError(t, err)

	stored, err := h.matches.GetMatch(context.Background(), profile.CompanyID, opp.NoticeID)
	require.NoError(t, err)
	require.NotNil(t, stored, "filtered pairs still get a terminal row")
	assert.Equal(t, models.MatchStatusFiltered, stored.Status)
}

func TestMatchInvalidInput(t *testing.T) {
	h := newHarness(t)
	opp, _ := seedPair()

	_, err := h.service.Match(context.Background(), &models.MatchRequest{Opportunity: opp})
	assert.Error(t, err)

	_, err = h.service.Match(context.Background(), nil)
	assert.Error(t, err)
}

func TestMatchScoresWithinBounds(t *testing.T) {
	h := newHarness(t)
	opp, profile := seedPair()
	seedVectors(h, opp, profile)

	result, err := h.service.Match(context.Background(), &models.MatchRequest{Opportunity: opp, CompanyProfile: profile})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.TotalScore, 0.0)
	assert.LessOrEqual(t, result.TotalScore, 1.0)
	for name, score := range result.ComponentScores {
		assert.GreaterOrEqual(t, score, 0.0, "component %s", name)
		assert.LessOrEqual(t, score, 1.0, "component %s", name)
	}
}

func TestWeightsOverrideChangesFingerprint(t *testing.T) {
	h := newHarness(t)
	opp, profile := seedPair()
	seedVectors(h, opp, profile)

	base, err := h.service.Match(context.Background(), &models.MatchRequest{Opportunity: opp, CompanyProfile: profile})
	require.NoError(t, err)

	overridden, err := h.service.Match(context.Background(), &models.MatchRequest{
		Opportunity:     opp,
		CompanyProfile:  profile,
		WeightsOverride: map[string]float64{scorers.NameSemantic: 0.9},
	})
	require.NoError(t, err)

	assert.NotEqual(t, base.Fingerprint, overridden.Fingerprint)
	assert.NotEqual(t, base.TotalScore, overridden.TotalScore)
}

func TestTopReasonsDeterministicOrder(t *testing.T) {
	weights := models.WeightSet{
		scorers.NameNAICS:     0.2,
		scorers.NamePastPerf:  0.2,
		scorers.NameKeyword:   0.2,
		scorers.NameGeography: 0.2,
	}
	scores := map[string]float64{
		scorers.NameNAICS:     0.5,
		scorers.NamePastPerf:  0.5,
		scorers.NameKeyword:   0.5,
		scorers.NameGeography: 0.5,
	}

	first := topReasons(scores, weights)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, topReasons(scores, weights), "equal contributions must order by name")
	}
	assert.Len(t, first, maxReasons)
}

func TestWeightedTotalDeterministic(t *testing.T) {
	weights := models.DefaultWeightSet()
	scores := map[string]float64{}
	for name := range weights {
		scores[name] = 0.333333333
	}

	first := weightedTotal(scores, weights)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, weightedTotal(scores, weights))
	}
	assert.False(t, math.IsNaN(first))
}

// Package matcher runs the scoring pipeline for one (opportunity, company)
// pair: fingerprint, cache lookup, quick filter, bounded scorer fan-out,
// weighted aggregation, explanation, cache write-back.
package matcher

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/common"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
	"github.com/ternarybob/congruo/internal/services/fingerprint"
)

// Service orchestrates the match pipeline. Scorers execute on a bounded
// local pool; every other step is serial.
type Service struct {
	registry    []interfaces.Scorer
	quickFilter interfaces.QuickFilterService
	weights     interfaces.WeightService
	cache       interfaces.MatchCacheService
	vectors     interfaces.VectorStorage
	matches     interfaces.MatchStorage
	logger      arbor.ILogger

	filterConfig common.FilterConfig

	parallelism      int
	scorerSoftBudget time.Duration
	scorerTimeout    time.Duration
	budget           time.Duration
	matchTTL         time.Duration
	confidenceHigh   float64
	confidenceMedium float64
}

// NewService creates a match orchestrator from the matching configuration.
func NewService(
	cfg *common.Config,
	registry []interfaces.Scorer,
	quickFilter interfaces.QuickFilterService,
	weightService interfaces.WeightService,
	cacheService interfaces.MatchCacheService,
	vectorStorage interfaces.VectorStorage,
	matchStorage interfaces.MatchStorage,
	logger arbor.ILogger,
) interfaces.MatcherService {
	return &Service{
		registry:         registry,
		quickFilter:      quickFilter,
		weights:          weightService,
		cache:            cacheService,
		vectors:          vectorStorage,
		matches:          matchStorage,
		logger:           logger,
		filterConfig:     cfg.Filter,
		parallelism:      cfg.Matching.ScorerParallelism,
		scorerSoftBudget: time.Duration(cfg.Matching.ScorerSoftBudgetMs) * time.Millisecond,
		scorerTimeout:    time.Duration(cfg.Matching.ScorerHardTimeoutMs) * time.Millisecond,
		budget:           time.Duration(cfg.Matching.OrchestratorBudgetMs) * time.Millisecond,
		matchTTL:         time.Duration(cfg.Matching.MatchResultTTLSeconds) * time.Second,
		confidenceHigh:   cfg.Matching.ConfidenceHigh,
		confidenceMedium: cfg.Matching.ConfidenceMedium,
	}
}

// Match produces one MatchResult. Only input errors return an error; all
// upstream degradation surfaces through component and result statuses.
func (s *Service) Match(ctx context.Context, req *models.MatchRequest) (*models.MatchResult, error) {
	started := time.Now()

	if req == nil {
		return nil, fmt.Errorf("match request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	opp := req.Opportunity
	profile := req.CompanyProfile

	weightSet := s.resolveWeights(ctx, profile.TenantID, req.WeightsOverride)

	fp, err := fingerprint.Compute(opp, profile, weightSet)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint match inputs: %w", err)
	}

	if req.UseCache {
		if cached, ok := s.cache.Get(ctx, fp); ok {
			s.logger.Debug().
				Str("fingerprint", fp).
				Str("company_id", profile.CompanyID).
				Str("opportunity_id", opp.NoticeID).
				Msg("Match served from cache")
			return cached, nil
		}
	}

	now := time.Now().UTC()

	filterResult := s.quickFilter.Apply(opp, profile, now)
	if !filterResult.IsPotentialMatch {
		result := s.filteredResult(opp, profile, filterResult, fp, now, started)
		return result, nil
	}

	sctx := s.buildScoringContext(ctx, opp, profile, now)

	budgetCtx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()

	components, partial := s.runScorers(budgetCtx, opp, profile, sctx)

	scores := make(map[string]float64, len(components))
	statuses := make(map[string]string, len(components))
	degraded := false
	for name, component := range components {
		scores[name] = component.Score
		statuses[name] = component.Status
		if component.Status != models.ScoreStatusOK {
			degraded = true
		}
	}

	total := weightedTotal(scores, weightSet)
	confidence := models.ConfidenceForScore(total, s.confidenceHigh, s.confidenceMedium)

	status := models.MatchStatusOK
	switch {
	case partial:
		status = models.MatchStatusPartial
	case degraded:
		status = models.MatchStatusDegraded
	}

	result := &models.MatchResult{
		CompanyID:        profile.CompanyID,
		OpportunityID:    opp.NoticeID,
		TenantID:         profile.TenantID,
		TotalScore:       total,
		ConfidenceLevel:  confidence,
		ComponentScores:  scores,
		ComponentStatus:  statuses,
		FilterScore:      filterResult.FilterScore,
		MatchReasons:     topReasons(scores, weightSet),
		Recommendations:  recommendations(opp, profile, confidence, statuses),
		ActionItems:      actionItems(confidence),
		Status:           status,
		Cached:           false,
		Fingerprint:      fp,
		ProcessingTimeMs: time.Since(started).Milliseconds(),
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.matchTTL),
	}
	result.SetKey()

	// Partial results are artifacts of the budget, not of the inputs;
	// memoizing one would serve a truncated verdict until TTL expiry.
	if !partial {
		s.cache.Put(ctx, fp, result)
	}

	return result, nil
}

// MatchAndStore runs Match and persists the result, including short-circuit
// verdicts from the quick filter, so downstream always sees a terminal row.
func (s *Service) MatchAndStore(ctx context.Context, req *models.MatchRequest) (*models.MatchResult, error) {
	result, err := s.Match(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.matches.PutMatch(ctx, result); err != nil {
		return result, fmt.Errorf("failed to persist match result: %w", err)
	}
	return result, nil
}

// resolveWeights merges an optional per-request override onto the tenant's
// resolved vector and normalizes. Resolution trouble falls back to defaults;
// a storage hiccup must not fail the match.
func (s *Service) resolveWeights(ctx context.Context, tenantID string, override map[string]float64) models.WeightSet {
	resolved, err := s.weights.Resolve(ctx, tenantID)
	if err != nil {
		s.logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("Weight resolution failed, using defaults")
		resolved = models.DefaultWeightSet()
	}

	if len(override) > 0 {
		merged := resolved.Clone()
		for name, weight := range override {
			merged[name] = weight
		}
		resolved = merged.Normalized()
	}
	return resolved
}

// buildScoringContext pre-fetches vectors and snapshots tunables. A vector
// that fails to resolve leaves its slot nil; the semantic scorer reports
// missing_embedding rather than the pipeline failing.
func (s *Service) buildScoringContext(ctx context.Context, opp *models.Opportunity, profile *models.CompanyProfile, now time.Time) *models.ScoringContext {
	sctx := &models.ScoringContext{
		Now:                now,
		HighValueThreshold: s.filterConfig.HighValueThreshold,
		LowValueThreshold:  s.filterConfig.LowValueThreshold,
		SmallTeamMax:       s.filterConfig.SmallTeamMax,
		LargeTeamMin:       s.filterConfig.LargeTeamMin,
		IndustryTokens:     s.filterConfig.IndustryTokens,
	}

	if opp.VectorURI != "" {
		record, err := s.vectors.GetVector(ctx, opp.VectorURI)
		if err != nil {
			s.logger.Warn().Err(err).Str("vector_uri", opp.VectorURI).Msg("Opportunity vector fetch failed")
		} else {
			sctx.OpportunityVector = record
		}
	}
	if profile.VectorURI != "" {
		record, err := s.vectors.GetVector(ctx, profile.VectorURI)
		if err != nil {
			s.logger.Warn().Err(err).Str("vector_uri", profile.VectorURI).Msg("Company vector fetch failed")
		} else {
			sctx.CompanyVector = record
		}
	}
	return sctx
}

type scorerOutcome struct {
	name   string
	result models.ComponentResult
}

// runScorers fans the registry out over a bounded pool and joins. Returns
// the component results keyed by name and whether the orchestrator budget
// expired before every scorer reported.
func (s *Service) runScorers(ctx context.Context, opp *models.Opportunity, profile *models.CompanyProfile, sctx *models.ScoringContext) (map[string]models.ComponentResult, bool) {
	outcomes := make(chan scorerOutcome, len(s.registry))
	slots := make(chan struct{}, s.parallelism)

	for _, scorer := range s.registry {
		go func(sc interfaces.Scorer) {
			select {
			case slots <- struct{}{}:
				defer func() { <-slots }()
			case <-ctx.Done():
				return
			}
			outcomes <- scorerOutcome{name: sc.Name(), result: s.runOne(ctx, sc, opp, profile, sctx)}
		}(scorer)
	}

	collected := make(map[string]models.ComponentResult, len(s.registry))
	for i := 0; i < len(s.registry); i++ {
		select {
		case outcome := <-outcomes:
			collected[outcome.name] = outcome.result
		case <-ctx.Done():
			// Drain whatever finished before the deadline
			for {
				select {
				case outcome := <-outcomes:
					collected[outcome.name] = outcome.result
				default:
					return collected, true
				}
			}
		}
	}
	return collected, false
}

// runOne executes a single scorer under the hard timeout. Panics and
// timeouts contribute score 0 with a descriptive status; the pipeline
// always continues.
func (s *Service) runOne(ctx context.Context, scorer interfaces.Scorer, opp *models.Opportunity, profile *models.CompanyProfile, sctx *models.ScoringContext) models.ComponentResult {
	done := make(chan models.ComponentResult, 1)
	start := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().
					Str("scorer", scorer.Name()).
					Str("panic", fmt.Sprintf("%v", r)).
					Msg("Scorer panicked")
				done <- models.ComponentResult{
					Score:            0,
					Status:           "error:panic",
					ProcessingTimeMs: time.Since(start).Milliseconds(),
				}
			}
		}()
		done <- scorer.Score(ctx, opp, profile, sctx)
	}()

	timer := time.NewTimer(s.scorerTimeout)
	defer timer.Stop()

	select {
	case result := <-done:
		if elapsed := time.Since(start); elapsed > s.scorerSoftBudget {
			s.logger.Warn().
				Str("scorer", scorer.Name()).
				Int64("elapsed_ms", elapsed.Milliseconds()).
				Msg("Scorer exceeded soft budget")
		}
		return result
	case <-timer.C:
		return models.ComponentResult{
			Score:            0,
			Status:           models.ScoreStatusTimeout,
			ProcessingTimeMs: s.scorerTimeout.Milliseconds(),
		}
	case <-ctx.Done():
		return models.ComponentResult{
			Score:            0,
			Status:           models.ScoreStatusTimeout,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		}
	}
}

// filteredResult is the short-circuit verdict for a rejected pair. It is
// still a terminal, persistable result: total 0.0, LOW confidence, the fail
// reasons as match reasons, no component scores.
func (s *Service) filteredResult(opp *models.Opportunity, profile *models.CompanyProfile, filterResult *models.FilterResult, fp string, now time.Time, started time.Time) *models.MatchResult {
	result := &models.MatchResult{
		CompanyID:        profile.CompanyID,
		OpportunityID:    opp.NoticeID,
		TenantID:         profile.TenantID,
		TotalScore:       0.0,
		ConfidenceLevel:  models.ConfidenceLow,
		ComponentScores:  map[string]float64{},
		ComponentStatus:  map[string]string{},
		FilterScore:      filterResult.FilterScore,
		MatchReasons:     append([]string{}, filterResult.FailReasons...),
		Recommendations:  []string{},
		ActionItems:      []string{},
		Status:           models.MatchStatusFiltered,
		Cached:           false,
		Fingerprint:      fp,
		ProcessingTimeMs: time.Since(started).Milliseconds(),
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.matchTTL),
	}
	result.SetKey()

	s.logger.Debug().
		Str("company_id", profile.CompanyID).
		Str("opportunity_id", opp.NoticeID).
		Strs("fail_reasons", filterResult.FailReasons).
		Msg("Pair rejected by quick filter")
	return result
}

// weightedTotal sums w_i * s_i in sorted component order, so equal inputs
// always produce the bit-identical total.
func weightedTotal(scores map[string]float64, weights models.WeightSet) float64 {
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)

	total := 0.0
	for _, name := range names {
		total += weights[name] * scores[name]
	}
	if total < 0 {
		return 0
	}
	if total > 1 {
		return 1
	}
	return total
}

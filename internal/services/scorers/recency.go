package scorers

import (
	"context"
	"time"

	"github.com/ternarybob/congruo/internal/models"
)

// recencyWindowYears is how far back delivery history counts as current
const recencyWindowYears = 3

// RecencyScorer grades how current the company's delivery history is.
type RecencyScorer struct{}

func (s *RecencyScorer) Name() string           { return NameRecency }
func (s *RecencyScorer) DefaultWeight() float64 { return 0.05 }

// Score counts past-performance records from the last three years: >=3 ->
// 1.0, >=1 -> 0.7, none -> 0.5. The floor is neutral rather than zero; an
// empty history already costs the pair through past_performance.
func (s *RecencyScorer) Score(_ context.Context, _ *models.Opportunity, profile *models.CompanyProfile, sctx *models.ScoringContext) models.ComponentResult {
	start := time.Now()

	cutoff := sctx.Now.Year() - recencyWindowYears
	recent := 0
	for _, record := range profile.PastPerformance {
		if record.Year >= cutoff {
			recent++
		}
	}

	var score float64
	switch {
	case recent >= 3:
		score = 1.0
	case recent >= 1:
		score = 0.7
	default:
		score = 0.5
	}

	return finish(models.ComponentResult{
		Score:  score,
		Status: models.ScoreStatusOK,
		Detail: map[string]interface{}{
			"recent_records": recent,
			"cutoff_year":    cutoff,
		},
	}, start)
}

package scorers

import (
	"context"
	"time"

	"github.com/ternarybob/congruo/internal/models"
)

// CapacityScorer sanity-checks contract value against company size. The
// thresholds arrive through the scoring context and are shared with the
// quick filter's value check.
type CapacityScorer struct{}

func (s *CapacityScorer) Name() string           { return NameCapacity }
func (s *CapacityScorer) DefaultWeight() float64 { return 0.05 }

// Score defaults to 0.8. A high-value award against a small team drops to
// 0.3; a low-value award against a large company drops to 0.6. Unknown
// value or employee bucket keeps the default.
func (s *CapacityScorer) Score(_ context.Context, opp *models.Opportunity, profile *models.CompanyProfile, sctx *models.ScoringContext) models.ComponentResult {
	start := time.Now()

	if opp.ContractValue == nil {
		return finish(models.ComponentResult{
			Score:  0.8,
			Status: models.ScoreStatusOK,
			Detail: map[string]interface{}{"fit": "value_unknown"},
		}, start)
	}
	if _, _, ok := profile.EmployeeBounds(); !ok {
		return finish(models.ComponentResult{
			Score:  0.8,
			Status: models.ScoreStatusOK,
			Detail: map[string]interface{}{"fit": "size_unknown"},
		}, start)
	}

	value := *opp.ContractValue
	switch {
	case value > sctx.HighValueThreshold && profile.MaxEmployeesAtMost(sctx.SmallTeamMax):
		return finish(models.ComponentResult{
			Score:  0.3,
			Status: models.ScoreStatusOK,
			Detail: map[string]interface{}{"fit": "undersized", "contract_value": value},
		}, start)
	case value < sctx.LowValueThreshold && profile.MinEmployeesAbove(sctx.LargeTeamMin):
		return finish(models.ComponentResult{
			Score:  0.6,
			Status: models.ScoreStatusOK,
			Detail: map[string]interface{}{"fit": "oversized", "contract_value": value},
		}, start)
	default:
		return finish(models.ComponentResult{
			Score:  0.8,
			Status: models.ScoreStatusOK,
			Detail: map[string]interface{}{"fit": "proportionate", "contract_value": value},
		}, start)
	}
}

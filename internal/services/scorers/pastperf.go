package scorers

import (
	"context"
	"strings"
	"time"

	"github.com/ternarybob/congruo/internal/models"
)

// agencyBonus rewards prior delivery for the issuing agency
const agencyBonus = 0.1

// PastPerformanceScorer grades the depth of a company's delivery history.
type PastPerformanceScorer struct{}

func (s *PastPerformanceScorer) Name() string           { return NamePastPerf }
func (s *PastPerformanceScorer) DefaultWeight() float64 { return 0.20 }

// Score tiers the record count (>=5 -> 0.9, >=3 -> 0.7, >=1 -> 0.5, none ->
// 0.0) and adds +0.1 when any record's agency appears in the opportunity's
// department or office string. Capped at 1.0.
func (s *PastPerformanceScorer) Score(_ context.Context, opp *models.Opportunity, profile *models.CompanyProfile, _ *models.ScoringContext) models.ComponentResult {
	start := time.Now()

	count := len(profile.PastPerformance)
	var base float64
	switch {
	case count >= 5:
		base = 0.9
	case count >= 3:
		base = 0.7
	case count >= 1:
		base = 0.5
	default:
		base = 0.0
	}

	issuer := strings.ToLower(opp.Department + " " + opp.Office)
	agencyMatch := false
	matchedAgency := ""
	for _, record := range profile.PastPerformance {
		agency := strings.ToLower(strings.TrimSpace(record.Agency))
		if agency == "" {
			continue
		}
		if strings.Contains(issuer, agency) {
			agencyMatch = true
			matchedAgency = record.Agency
			break
		}
	}

	score := base
	if agencyMatch {
		score += agencyBonus
	}

	detail := map[string]interface{}{
		"record_count": count,
		"agency_match": agencyMatch,
	}
	if agencyMatch {
		detail["matched_agency"] = matchedAgency
	}

	return finish(models.ComponentResult{
		Score:  score,
		Status: models.ScoreStatusOK,
		Detail: detail,
	}, start)
}

package scorers

import (
	"context"
	"strings"
	"time"

	"github.com/ternarybob/congruo/internal/models"
)

// primaryBonus rewards alignment on the company's primary (first) NAICS code
const primaryBonus = 0.05

// NAICSScorer grades hierarchical NAICS code alignment. NAICS codes nest:
// the first two digits name the sector, three the subsector, four the
// industry group, six the national industry.
type NAICSScorer struct{}

func (s *NAICSScorer) Name() string           { return NameNAICS }
func (s *NAICSScorer) DefaultWeight() float64 { return 0.15 }

// Score returns the best prefix-match tier across the company's codes:
// exact 1.0, 4-digit 0.7, 3-digit 0.4, 2-digit 0.2. When the primary code
// reaches the best tier a +0.05 bonus applies, capped at 1.0. Opportunities
// without a NAICS code fall back to industry-token inference over the two
// texts, capped at 0.5.
func (s *NAICSScorer) Score(_ context.Context, opp *models.Opportunity, profile *models.CompanyProfile, sctx *models.ScoringContext) models.ComponentResult {
	start := time.Now()

	if opp.NAICSCode == "" {
		score, matched := industryInference(opp, profile, sctx.IndustryTokens)
		return finish(models.ComponentResult{
			Score:  score,
			Status: models.ScoreStatusOK,
			Detail: map[string]interface{}{
				"fallback":       "industry_tokens",
				"matched_tokens": matched,
			},
		}, start)
	}

	if len(profile.NAICSCodes) == 0 {
		return finish(models.ComponentResult{
			Score:  0.0,
			Status: "degraded:no_company_naics",
			Detail: map[string]interface{}{"opportunity_naics": opp.NAICSCode},
		}, start)
	}

	best := 0.0
	bestCode := ""
	primaryTier := 0.0
	for i, code := range profile.NAICSCodes {
		tier := naicsTier(opp.NAICSCode, code)
		if tier > best {
			best = tier
			bestCode = code
		}
		if i == 0 {
			primaryTier = tier
		}
	}

	score := best
	primaryAligned := best > 0 && primaryTier == best
	if primaryAligned {
		score += primaryBonus
	}

	return finish(models.ComponentResult{
		Score:  score,
		Status: models.ScoreStatusOK,
		Detail: map[string]interface{}{
			"opportunity_naics": opp.NAICSCode,
			"best_company_code": bestCode,
			"match_tier":        best,
			"primary_aligned":   primaryAligned,
		},
	}, start)
}

// naicsTier grades the shared prefix length of two NAICS codes
func naicsTier(oppCode, companyCode string) float64 {
	switch {
	case oppCode == companyCode:
		return 1.0
	case sharedPrefix(oppCode, companyCode, 4):
		return 0.7
	case sharedPrefix(oppCode, companyCode, 3):
		return 0.4
	case sharedPrefix(oppCode, companyCode, 2):
		return 0.2
	default:
		return 0.0
	}
}

func sharedPrefix(a, b string, n int) bool {
	return len(a) >= n && len(b) >= n && a[:n] == b[:n]
}

// industryInference estimates alignment from shared industry tokens when
// the opportunity carries no NAICS code. The result is capped at 0.5; a
// text match is a much weaker signal than a code match.
func industryInference(opp *models.Opportunity, profile *models.CompanyProfile, industryTokens []string) (float64, int) {
	if len(industryTokens) == 0 {
		return 0.0, 0
	}

	oppText := strings.ToLower(opp.SearchText())
	profileText := strings.ToLower(profile.ProfileText())

	present := 0
	matched := 0
	for _, token := range industryTokens {
		t := strings.ToLower(token)
		if !strings.Contains(oppText, t) {
			continue
		}
		present++
		if strings.Contains(profileText, t) {
			matched++
		}
	}
	if present == 0 {
		return 0.0, 0
	}
	return 0.5 * float64(matched) / float64(present), matched
}

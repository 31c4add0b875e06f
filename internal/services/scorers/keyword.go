package scorers

import (
	"context"
	"time"

	"github.com/ternarybob/congruo/internal/models"
)

// KeywordScorer measures term overlap between the opportunity text and the
// company's capability statement plus past-performance descriptions.
type KeywordScorer struct{}

func (s *KeywordScorer) Name() string           { return NameKeyword }
func (s *KeywordScorer) DefaultWeight() float64 { return 0.15 }

// Score computes term-frequency overlap normalized by the shorter document,
// so a focused capability statement fully contained in a long solicitation
// still scores high. Stopwords and numeric codes are stripped before
// counting.
func (s *KeywordScorer) Score(_ context.Context, opp *models.Opportunity, profile *models.CompanyProfile, _ *models.ScoringContext) models.ComponentResult {
	start := time.Now()

	oppTokens := Tokenize(opp.SearchText())
	profileTokens := Tokenize(profile.ProfileText())

	if len(oppTokens) == 0 || len(profileTokens) == 0 {
		return finish(models.ComponentResult{
			Score:  0.0,
			Status: "degraded:no_text",
			Detail: map[string]interface{}{
				"opportunity_tokens": len(oppTokens),
				"company_tokens":     len(profileTokens),
			},
		}, start)
	}

	oppCounts := TokenCounts(oppTokens)
	profileCounts := TokenCounts(profileTokens)

	overlap := 0
	sharedTerms := 0
	for term, oppCount := range oppCounts {
		if profileCount, ok := profileCounts[term]; ok {
			sharedTerms++
			if profileCount < oppCount {
				overlap += profileCount
			} else {
				overlap += oppCount
			}
		}
	}

	shorter := len(oppTokens)
	if len(profileTokens) < shorter {
		shorter = len(profileTokens)
	}
	score := float64(overlap) / float64(shorter)

	return finish(models.ComponentResult{
		Score:  score,
		Status: models.ScoreStatusOK,
		Detail: map[string]interface{}{
			"shared_terms":       sharedTerms,
			"overlap_count":      overlap,
			"opportunity_tokens": len(oppTokens),
			"company_tokens":     len(profileTokens),
		},
	}, start)
}

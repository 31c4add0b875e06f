package scorers

import (
	"context"
	"time"

	"github.com/ternarybob/congruo/internal/models"
	"github.com/ternarybob/congruo/internal/services/filter"
)

// adjacentCerts maps a set-aside class to certifications that confer
// partial credit: close enough to signal a plausible teaming or
// recertification path, not eligibility.
var adjacentCerts = map[string][]string{
	"VOSB":   {"SDVOSB"},
	"SDVOSB": {"VOSB"},
	"WOSB":   {"EDWOSB"},
	"EDWOSB": {"WOSB"},
}

// CertificationScorer grades the competitive advantage a company's
// certifications confer on a set-aside solicitation.
type CertificationScorer struct{}

func (s *CertificationScorer) Name() string           { return NameCertification }
func (s *CertificationScorer) DefaultWeight() float64 { return 0.10 }

// Score returns 1.0 when the company's certifications satisfy the
// set-aside class, 0.5 for an adjacent certification, 0.0 otherwise. Open
// solicitations score 0.0: without a set-aside there is no advantage to
// grade, only eligibility, which every bidder has.
func (s *CertificationScorer) Score(_ context.Context, opp *models.Opportunity, profile *models.CompanyProfile, _ *models.ScoringContext) models.ComponentResult {
	start := time.Now()

	class := filter.NormalizeSetAside(opp.SetAside)
	if class == "" {
		return finish(models.ComponentResult{
			Score:  0.0,
			Status: models.ScoreStatusOK,
			Detail: map[string]interface{}{"set_aside": "open"},
		}, start)
	}

	if filter.CertificationSatisfies(profile, class) {
		return finish(models.ComponentResult{
			Score:  1.0,
			Status: models.ScoreStatusOK,
			Detail: map[string]interface{}{"set_aside": class, "advantage": "full"},
		}, start)
	}

	for _, cert := range adjacentCerts[class] {
		if profile.HasCertification(cert) {
			return finish(models.ComponentResult{
				Score:  0.5,
				Status: models.ScoreStatusOK,
				Detail: map[string]interface{}{"set_aside": class, "advantage": "adjacent", "held": cert},
			}, start)
		}
	}

	return finish(models.ComponentResult{
		Score:  0.0,
		Status: models.ScoreStatusOK,
		Detail: map[string]interface{}{"set_aside": class, "advantage": "none"},
	}, start)
}

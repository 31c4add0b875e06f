package scorers

import (
	"context"
	"testing"

	"github.com/ternarybob/congruo/internal/models"
)

func TestCertificationScorer(t *testing.T) {
	scorer := &CertificationScorer{}

	tests := []struct {
		name      string
		setAside  string
		certs     []string
		wantScore float64
	}{
		{
			name:      "exact certification",
			setAside:  "SDVOSB",
			certs:     []string{"SDVOSB", "SMALL BUSINESS"},
			wantScore: 1.0,
		},
		{
			name:      "open solicitation confers no advantage",
			setAside:  "",
			certs:     []string{"SDVOSB"},
			wantScore: 0.0,
		},
		{
			name:      "adjacent certification",
			setAside:  "VOSB",
			certs:     []string{"SDVOSB"},
			wantScore: 0.5,
		},
		{
			name:      "no matching certification",
			setAside:  "8(A)",
			certs:     []string{"WOSB"},
			wantScore: 0.0,
		},
		{
			name:      "small business set-aside with class cert",
			setAside:  "Total Small Business",
			certs:     []string{"WOSB"},
			wantScore: 1.0,
		},
		{
			name:      "alias folds to class",
			setAside:  "8A",
			certs:     []string{"8(A)"},
			wantScore: 1.0,
		},
		{
			name:      "no certifications",
			setAside:  "HUBZONE",
			certs:     nil,
			wantScore: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp := &models.Opportunity{NoticeID: "n-1", Title: "x", SetAside: tt.setAside}
			profile := &models.CompanyProfile{
				CompanyID:      "c-1",
				TenantID:       "t-1",
				Certifications: tt.certs,
			}

			result := scorer.Score(context.Background(), opp, profile, testContext())
			if result.Score != tt.wantScore {
				t.Errorf("Score() = %f, want %f", result.Score, tt.wantScore)
			}
			if result.Status != models.ScoreStatusOK {
				t.Errorf("Status = %q, want ok", result.Status)
			}
		})
	}
}

func TestCertificationScorerAdjacent(t *testing.T) {
	scorer := &CertificationScorer{}

	// Company holds only VOSB; the solicitation is set aside for SDVOSB.
	// Not eligible, but close enough for partial credit.
	opp := &models.Opportunity{NoticeID: "n-1", Title: "x", SetAside: "SDVOSB"}
	profile := &models.CompanyProfile{
		CompanyID:      "c-1",
		TenantID:       "t-1",
		Certifications: []string{"VOSB"},
	}

	result := scorer.Score(context.Background(), opp, profile, testContext())
	if result.Score != 0.5 {
		t.Errorf("Score() = %f, want 0.5 for adjacent certification", result.Score)
	}
}

func TestCertificationScorerEDWOSBAdjacency(t *testing.T) {
	scorer := &CertificationScorer{}

	opp := &models.Opportunity{NoticeID: "n-1", Title: "x", SetAside: "EDWOSB"}
	profile := &models.CompanyProfile{
		CompanyID:      "c-1",
		TenantID:       "t-1",
		Certifications: []string{"WOSB"},
	}

	result := scorer.Score(context.Background(), opp, profile, testContext())
	if result.Score != 0.5 {
		t.Errorf("Score() = %f, want 0.5", result.Score)
	}
}

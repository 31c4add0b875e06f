package scorers

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/ternarybob/congruo/internal/models"
)

func TestKeywordScorer(t *testing.T) {
	scorer := &KeywordScorer{}

	tests := []struct {
		name       string
		oppText    string
		capability string
		wantScore  float64
		wantStatus string
	}{
		{
			name:       "full containment",
			oppText:    "cloud migration security engineering data center consolidation",
			capability: "cloud migration security",
			wantScore:  1.0,
			wantStatus: models.ScoreStatusOK,
		},
		{
			name:       "no overlap",
			oppText:    "janitorial cleaning facilities",
			capability: "satellite telemetry software",
			wantScore:  0.0,
			wantStatus: models.ScoreStatusOK,
		},
		{
			name:       "partial overlap",
			oppText:    "network security monitoring upgrade",
			capability: "network security consulting practice",
			wantScore:  0.5,
			wantStatus: models.ScoreStatusOK,
		},
		{
			name:       "empty capability",
			oppText:    "cloud migration",
			capability: "",
			wantScore:  0.0,
			wantStatus: "degraded:no_text",
		},
		{
			name:       "stopwords only",
			oppText:    "the and of shall must",
			capability: "cloud migration",
			wantScore:  0.0,
			wantStatus: "degraded:no_text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp := &models.Opportunity{NoticeID: "n-1", Title: tt.oppText}
			profile := &models.CompanyProfile{
				CompanyID:           "c-1",
				TenantID:            "t-1",
				CapabilityStatement: tt.capability,
			}

			result := scorer.Score(context.Background(), opp, profile, testContext())
			if math.Abs(result.Score-tt.wantScore) > 1e-6 {
				t.Errorf("Score() = %f, want %f", result.Score, tt.wantScore)
			}
			if result.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", result.Status, tt.wantStatus)
			}
		})
	}
}

func TestKeywordScorerUsesPastPerformanceText(t *testing.T) {
	scorer := &KeywordScorer{}
	opp := &models.Opportunity{NoticeID: "n-1", Title: "helpdesk modernization"}
	profile := &models.CompanyProfile{
		CompanyID:           "c-1",
		TenantID:            "t-1",
		CapabilityStatement: "unrelated words entirely",
		PastPerformance: []models.PastPerformanceRecord{
			{Agency: "GSA", Description: "helpdesk modernization delivery", Year: 2024},
		},
	}

	result := scorer.Score(context.Background(), opp, profile, testContext())
	if result.Score <= 0 {
		t.Errorf("Score() = %f, want > 0 when past performance text overlaps", result.Score)
	}
}

func TestKeywordScorerRepeatedTerms(t *testing.T) {
	scorer := &KeywordScorer{}

	// Opportunity mentions "security" three times, profile twice: the
	// overlap counts min(3,2)=2 of the shorter document's 2 tokens
	opp := &models.Opportunity{NoticeID: "n-1", Title: strings.Repeat("security ", 3)}
	profile := &models.CompanyProfile{
		CompanyID:           "c-1",
		TenantID:            "t-1",
		CapabilityStatement: "security security",
	}

	result := scorer.Score(context.Background(), opp, profile, testContext())
	if math.Abs(result.Score-1.0) > 1e-6 {
		t.Errorf("Score() = %f, want 1.0", result.Score)
	}
}

package scorers

import (
	"context"
	"testing"

	"github.com/ternarybob/congruo/internal/models"
)

func TestGeographyScorer(t *testing.T) {
	scorer := &GeographyScorer{}

	tests := []struct {
		name      string
		place     *models.Place
		locations []models.Place
		wantScore float64
	}{
		{
			name:      "no place of performance",
			place:     nil,
			locations: []models.Place{{State: "VA"}},
			wantScore: 1.0,
		},
		{
			name:      "empty state",
			place:     &models.Place{City: "Remote"},
			locations: []models.Place{{State: "VA"}},
			wantScore: 1.0,
		},
		{
			name:      "same state",
			place:     &models.Place{State: "VA", City: "Richmond"},
			locations: []models.Place{{State: "TX"}, {State: "va"}},
			wantScore: 1.0,
		},
		{
			name:      "adjacent state",
			place:     &models.Place{State: "VA"},
			locations: []models.Place{{State: "MD"}},
			wantScore: 0.7,
		},
		{
			name:      "distant state",
			place:     &models.Place{State: "VA"},
			locations: []models.Place{{State: "CA"}},
			wantScore: 0.4,
		},
		{
			name:      "no company locations",
			place:     &models.Place{State: "VA"},
			locations: nil,
			wantScore: 0.4,
		},
		{
			name:      "dc to virginia counts as adjacent",
			place:     &models.Place{State: "DC"},
			locations: []models.Place{{State: "VA"}},
			wantScore: 0.7,
		},
		{
			name:      "alaska has no neighbors",
			place:     &models.Place{State: "AK"},
			locations: []models.Place{{State: "WA"}},
			wantScore: 0.4,
		},
		{
			name:      "same state beats adjacent",
			place:     &models.Place{State: "VA"},
			locations: []models.Place{{State: "MD"}, {State: "VA"}},
			wantScore: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp := &models.Opportunity{NoticeID: "n-1", Title: "x", PlaceOfPerformance: tt.place}
			profile := &models.CompanyProfile{CompanyID: "c-1", TenantID: "t-1", Locations: tt.locations}

			result := scorer.Score(context.Background(), opp, profile, testContext())
			if result.Score != tt.wantScore {
				t.Errorf("Score() = %f, want %f", result.Score, tt.wantScore)
			}
		})
	}
}

// Every adjacency must be symmetric: if A borders B then B borders A
func TestStateAdjacencySymmetric(t *testing.T) {
	for state, neighbors := range stateAdjacency {
		for _, neighbor := range neighbors {
			back, ok := stateAdjacency[neighbor]
			if !ok {
				t.Errorf("state %s lists neighbor %s, which has no entry", state, neighbor)
				continue
			}
			found := false
			for _, b := range back {
				if b == state {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("adjacency not symmetric: %s -> %s but not %s -> %s", state, neighbor, neighbor, state)
			}
		}
	}
}

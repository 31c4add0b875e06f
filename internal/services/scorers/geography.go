package scorers

import (
	"context"
	"strings"
	"time"

	"github.com/ternarybob/congruo/internal/models"
)

// stateAdjacency maps each US state to its land-border neighbors. Four
// Corners pairs (AZ-CO, NM-UT) are included; AK and HI have no neighbors.
var stateAdjacency = map[string][]string{
	"AL": {"FL", "GA", "MS", "TN"},
	"AR": {"LA", "MO", "MS", "OK", "TN", "TX"},
	"AZ": {"CA", "CO", "NM", "NV", "UT"},
	"CA": {"AZ", "NV", "OR"},
	"CO": {"AZ", "KS", "NE", "NM", "OK", "UT", "WY"},
	"CT": {"MA", "NY", "RI"},
	"DC": {"MD", "VA"},
	"DE": {"MD", "NJ", "PA"},
	"FL": {"AL", "GA"},
	"GA": {"AL", "FL", "NC", "SC", "TN"},
	"IA": {"IL", "MN", "MO", "NE", "SD", "WI"},
	"ID": {"MT", "NV", "OR", "UT", "WA", "WY"},
	"IL": {"IA", "IN", "KY", "MO", "WI"},
	"IN": {"IL", "KY", "MI", "OH"},
	"KS": {"CO", "MO", "NE", "OK"},
	"KY": {"IL", "IN", "MO", "OH", "TN", "VA", "WV"},
	"LA": {"AR", "MS", "TX"},
	"MA": {"CT", "NH", "NY", "RI", "VT"},
	"MD": {"DC", "DE", "PA", "VA", "WV"},
	"ME": {"NH"},
	"MI": {"IN", "OH", "WI"},
	"MN": {"IA", "ND", "SD", "WI"},
	"MO": {"AR", "IA", "IL", "KS", "KY", "NE", "OK", "TN"},
	"MS": {"AL", "AR", "LA", "TN"},
	"MT": {"ID", "ND", "SD", "WY"},
	"NC": {"GA", "SC", "TN", "VA"},
	"ND": {"MN", "MT", "SD"},
	"NE": {"CO", "IA", "KS", "MO", "SD", "WY"},
	"NH": {"MA", "ME", "VT"},
	"NJ": {"DE", "NY", "PA"},
	"NM": {"AZ", "CO", "OK", "TX", "UT"},
	"NV": {"AZ", "CA", "ID", "OR", "UT"},
	"NY": {"CT", "MA", "NJ", "PA", "VT"},
	"OH": {"IN", "KY", "MI", "PA", "WV"},
	"OK": {"AR", "CO", "KS", "MO", "NM", "TX"},
	"OR": {"CA", "ID", "NV", "WA"},
	"PA": {"DE", "MD", "NJ", "NY", "OH", "WV"},
	"RI": {"CT", "MA"},
	"SC": {"GA", "NC"},
	"SD": {"IA", "MN", "MT", "ND", "NE", "WY"},
	"TN": {"AL", "AR", "GA", "KY", "MO", "MS", "NC", "VA"},
	"TX": {"AR", "LA", "NM", "OK"},
	"UT": {"AZ", "CO", "ID", "NM", "NV", "WY"},
	"VA": {"DC", "KY", "MD", "NC", "TN", "WV"},
	"VT": {"MA", "NH", "NY"},
	"WA": {"ID", "OR"},
	"WI": {"IA", "IL", "MI", "MN"},
	"WV": {"KY", "MD", "OH", "PA", "VA"},
	"WY": {"CO", "ID", "MT", "NE", "SD", "UT"},
}

// GeographyScorer grades proximity between the place of performance and the
// company's locations. It never zeroes out: remote delivery keeps distant
// pairs viable, so the floor is 0.4.
type GeographyScorer struct{}

func (s *GeographyScorer) Name() string           { return NameGeography }
func (s *GeographyScorer) DefaultWeight() float64 { return 0.05 }

// Score returns 1.0 with no place of performance or a same-state location,
// 0.7 for an adjacent state, 0.4 otherwise.
func (s *GeographyScorer) Score(_ context.Context, opp *models.Opportunity, profile *models.CompanyProfile, _ *models.ScoringContext) models.ComponentResult {
	start := time.Now()

	if opp.PlaceOfPerformance == nil || opp.PlaceOfPerformance.State == "" {
		return finish(models.ComponentResult{
			Score:  1.0,
			Status: models.ScoreStatusOK,
			Detail: map[string]interface{}{"proximity": "unconstrained"},
		}, start)
	}

	state := strings.ToUpper(strings.TrimSpace(opp.PlaceOfPerformance.State))
	neighbors := stateAdjacency[state]

	adjacentState := ""
	for _, loc := range profile.Locations {
		locState := strings.ToUpper(strings.TrimSpace(loc.State))
		if locState == state {
			return finish(models.ComponentResult{
				Score:  1.0,
				Status: models.ScoreStatusOK,
				Detail: map[string]interface{}{"proximity": "same_state", "state": state},
			}, start)
		}
		if adjacentState == "" {
			for _, n := range neighbors {
				if locState == n {
					adjacentState = locState
					break
				}
			}
		}
	}

	if adjacentState != "" {
		return finish(models.ComponentResult{
			Score:  0.7,
			Status: models.ScoreStatusOK,
			Detail: map[string]interface{}{"proximity": "adjacent_state", "state": state, "company_state": adjacentState},
		}, start)
	}

	return finish(models.ComponentResult{
		Score:  0.4,
		Status: models.ScoreStatusOK,
		Detail: map[string]interface{}{"proximity": "distant", "state": state},
	}, start)
}

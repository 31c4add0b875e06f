package scorers

import (
	"math"
	"testing"
	"time"

	"github.com/ternarybob/congruo/internal/models"
)

// testContext builds a scoring context with the stock thresholds
func testContext() *models.ScoringContext {
	return &models.ScoringContext{
		Now:                time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		HighValueThreshold: 10_000_000,
		LowValueThreshold:  100_000,
		SmallTeamMax:       20,
		LargeTeamMin:       100,
		IndustryTokens:     []string{"software", "cybersecurity", "construction", "logistics"},
	}
}

func TestDefaultRegistry(t *testing.T) {
	registry := Default()
	if len(registry) != 8 {
		t.Fatalf("Default() returned %d scorers, want 8", len(registry))
	}

	seen := make(map[string]bool)
	weightSum := 0.0
	for _, scorer := range registry {
		name := scorer.Name()
		if seen[name] {
			t.Errorf("duplicate scorer name %q", name)
		}
		seen[name] = true
		weightSum += scorer.DefaultWeight()
	}

	if math.Abs(weightSum-1.0) > 1e-9 {
		t.Errorf("default weights sum = %f, want 1.0", weightSum)
	}

	// Registry names must agree with the stock weight set
	defaults := models.DefaultWeightSet()
	for _, scorer := range registry {
		want, ok := defaults[scorer.Name()]
		if !ok {
			t.Errorf("scorer %q missing from default weight set", scorer.Name())
			continue
		}
		if math.Abs(want-scorer.DefaultWeight()) > 1e-9 {
			t.Errorf("scorer %q weight = %f, want %f", scorer.Name(), scorer.DefaultWeight(), want)
		}
	}
}

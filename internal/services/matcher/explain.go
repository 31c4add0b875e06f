package matcher

import (
	"sort"

	"github.com/ternarybob/congruo/internal/models"
	"github.com/ternarybob/congruo/internal/services/scorers"
)

// maxReasons caps the match_reasons list to the strongest contributors
const maxReasons = 3

type contribution struct {
	name  string
	value float64
	score float64
}

// topReasons names the top components by weighted contribution. Ties break
// on component name ascending so identical inputs never reorder reasons.
func topReasons(scores map[string]float64, weights models.WeightSet) []string {
	contributions := make([]contribution, 0, len(scores))
	for name, score := range scores {
		value := weights[name] * score
		if value <= 0 {
			continue
		}
		contributions = append(contributions, contribution{name: name, value: value, score: score})
	}

	sort.Slice(contributions, func(i, j int) bool {
		if contributions[i].value != contributions[j].value {
			return contributions[i].value > contributions[j].value
		}
		return contributions[i].name < contributions[j].name
	})

	if len(contributions) > maxReasons {
		contributions = contributions[:maxReasons]
	}

	reasons := make([]string, 0, len(contributions))
	for _, c := range contributions {
		reasons = append(reasons, reasonPhrase(c.name, c.score))
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "No strong match signals")
	}
	return reasons
}

// reasonPhrase renders a short human phrase for one component
func reasonPhrase(name string, score float64) string {
	switch name {
	case scorers.NameSemantic:
		if score >= 0.75 {
			return "Strong capability alignment"
		}
		return "Moderate capability alignment"
	case scorers.NameKeyword:
		if score >= 0.5 {
			return "Substantial shared terminology"
		}
		return "Some shared terminology"
	case scorers.NameNAICS:
		if score >= 0.95 {
			return "Exact NAICS alignment"
		}
		return "Related NAICS industry"
	case scorers.NamePastPerf:
		if score >= 0.8 {
			return "Strong past performance"
		}
		return "Relevant past performance"
	case scorers.NameCertification:
		if score >= 0.95 {
			return "Set-aside certification advantage"
		}
		return "Adjacent certification held"
	case scorers.NameGeography:
		if score >= 0.95 {
			return "Local presence"
		}
		return "Regional presence"
	case scorers.NameCapacity:
		return "Capacity matches contract size"
	case scorers.NameRecency:
		return "Recent delivery history"
	default:
		return name
	}
}

// recommendations derives profile-improvement and triage hints from the
// confidence tier and missing-data flags.
func recommendations(opp *models.Opportunity, profile *models.CompanyProfile, confidence models.ConfidenceLevel, statuses map[string]string) []string {
	out := make([]string, 0, 4)

	if statuses[scorers.NameSemantic] == models.ScoreStatusMissingEmbedding {
		out = append(out, "Generate embeddings for the opportunity and capability statement to enable semantic scoring")
	}
	if opp.SetAside != "" && len(profile.Certifications) == 0 {
		out = append(out, "Add certifications to the company profile")
	}
	if len(profile.PastPerformance) == 0 {
		out = append(out, "Add past performance records to strengthen the profile")
	}

	switch confidence {
	case models.ConfidenceHigh:
		out = append(out, "Prioritize this opportunity for bid decision")
	case models.ConfidenceMedium:
		out = append(out, "Review the lower-scoring components before committing bid resources")
	default:
		out = append(out, "Deprioritize unless strategically important")
	}
	return out
}

// actionItems is the fixed follow-up list per confidence tier
func actionItems(confidence models.ConfidenceLevel) []string {
	switch confidence {
	case models.ConfidenceHigh:
		return []string{
			"Review the full solicitation",
			"Verify SAM registration and eligibility",
			"Begin capture planning",
		}
	case models.ConfidenceMedium:
		return []string{
			"Review the full solicitation",
			"Evaluate teaming options to close gaps",
		}
	default:
		return []string{
			"Monitor for amendments",
		}
	}
}

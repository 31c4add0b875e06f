// Package filter implements the pre-scoring screen that rejects obvious
// non-matches before any scorer runs. Checks are pure functions over the
// two entities; the whole screen stays well under the scoring budget.
package filter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/common"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
)

// Check names, also the keys of FilterResult.Checks
const (
	CheckIndustry  = "industry"
	CheckSetAside  = "set_aside"
	CheckGeography = "geography"
	CheckActive    = "active"
	CheckValue     = "value_capacity"
)

// restrictedClasses are the set-aside classes that legally require an
// equivalent company certification. Anything else passes as open or
// unrecognized.
var restrictedClasses = map[string]bool{
	"SDVOSB":         true,
	"WOSB":           true,
	"8(A)":           true,
	"HUBZONE":        true,
	"SMALL BUSINESS": true,
}

// setAsideAliases folds the long-form solicitation strings onto class tokens
var setAsideAliases = map[string]string{
	"8A":                             "8(A)",
	"8(A) SET-ASIDE":                 "8(A)",
	"HUBZONE SET-ASIDE":              "HUBZONE",
	"SERVICE-DISABLED VETERAN":       "SDVOSB",
	"WOMEN-OWNED SMALL BUSINESS":     "WOSB",
	"TOTAL SMALL BUSINESS":           "SMALL BUSINESS",
	"SMALL BUSINESS SET-ASIDE":       "SMALL BUSINESS",
	"TOTAL SMALL BUSINESS SET-ASIDE": "SMALL BUSINESS",
}

// Service implements the quick filter
type Service struct {
	config *common.FilterConfig
	logger arbor.ILogger
}

// NewService creates a quick filter with the given tunables
func NewService(config *common.FilterConfig, logger arbor.ILogger) interfaces.QuickFilterService {
	return &Service{
		config: config,
		logger: logger,
	}
}

// Apply runs all five checks. Every check must pass for a potential match;
// the filter score is the mean of the check scores, informational only.
func (s *Service) Apply(opp *models.Opportunity, profile *models.CompanyProfile, now time.Time) *models.FilterResult {
	result := &models.FilterResult{
		PassReasons: []string{},
		FailReasons: []string{},
		Checks:      make(map[string]models.FilterCheck, 5),
	}

	checks := []struct {
		name string
		run  func(*models.Opportunity, *models.CompanyProfile, time.Time) models.FilterCheck
	}{
		{CheckIndustry, s.checkIndustry},
		{CheckSetAside, s.checkSetAside},
		{CheckGeography, s.checkGeography},
		{CheckActive, s.checkActive},
		{CheckValue, s.checkValueCapacity},
	}

	allPassed := true
	sum := 0.0
	for _, c := range checks {
		check := c.run(opp, profile, now)
		result.Checks[c.name] = check
		sum += check.Score
		if check.Passed {
			result.PassReasons = append(result.PassReasons, fmt.Sprintf("%s: %s", c.name, check.Detail))
		} else {
			allPassed = false
			result.FailReasons = append(result.FailReasons, fmt.Sprintf("%s: %s", c.name, check.Detail))
		}
	}

	result.IsPotentialMatch = allPassed
	result.FilterScore = sum / float64(len(checks))
	return result
}

// checkIndustry passes on a shared 2-digit NAICS prefix or an industry
// token present in both texts. Missing data on either side passes at 0.5;
// industry alone never justifies rejecting a pair with unknown codes.
func (s *Service) checkIndustry(opp *models.Opportunity, profile *models.CompanyProfile, _ time.Time) models.FilterCheck {
	if opp.NAICSCode == "" || len(profile.NAICSCodes) == 0 {
		return models.FilterCheck{Passed: true, Score: 0.5, Detail: "industry data incomplete"}
	}

	oppPrefix := opp.NAICSPrefix(2)
	for _, code := range profile.NAICSCodes {
		if len(code) >= 2 && strings.HasPrefix(code, oppPrefix) {
			return models.FilterCheck{Passed: true, Score: 1.0, Detail: fmt.Sprintf("NAICS sector %s shared", oppPrefix)}
		}
	}

	oppTokens := tokenSet(opp.SearchText())
	profileTokens := tokenSet(profile.ProfileText())
	for _, token := range s.config.IndustryTokens {
		t := strings.ToLower(token)
		if oppTokens[t] && profileTokens[t] {
			return models.FilterCheck{Passed: true, Score: 1.0, Detail: fmt.Sprintf("industry token %q shared", t)}
		}
	}

	return models.FilterCheck{Passed: false, Score: 0.0, Detail: fmt.Sprintf("NAICS sector %s not served and no industry overlap", oppPrefix)}
}

// checkSetAside hard-fails when a restricted solicitation meets a company
// without the equivalent certification. Set-aside mismatches are legally
// disqualifying, which is why this check alone may reject on its own.
func (s *Service) checkSetAside(opp *models.Opportunity, profile *models.CompanyProfile, _ time.Time) models.FilterCheck {
	class := NormalizeSetAside(opp.SetAside)
	if class == "" {
		return models.FilterCheck{Passed: true, Score: 1.0, Detail: "open solicitation"}
	}
	if !restrictedClasses[class] {
		return models.FilterCheck{Passed: true, Score: 0.5, Detail: fmt.Sprintf("unrecognized set-aside %q", opp.SetAside)}
	}

	if CertificationSatisfies(profile, class) {
		return models.FilterCheck{Passed: true, Score: 1.0, Detail: fmt.Sprintf("certified for %s", class)}
	}
	return models.FilterCheck{Passed: false, Score: 0.0, Detail: fmt.Sprintf("set-aside %s requires missing certification", class)}
}

// checkGeography never rejects on its own; out-of-state pairs pass reduced
func (s *Service) checkGeography(opp *models.Opportunity, profile *models.CompanyProfile, _ time.Time) models.FilterCheck {
	if opp.PlaceOfPerformance == nil || opp.PlaceOfPerformance.State == "" || len(profile.Locations) == 0 {
		return models.FilterCheck{Passed: true, Score: 1.0, Detail: "no geographic constraint"}
	}

	state := strings.ToUpper(opp.PlaceOfPerformance.State)
	for _, loc := range profile.Locations {
		if strings.EqualFold(loc.State, state) {
			return models.FilterCheck{Passed: true, Score: 1.0, Detail: fmt.Sprintf("location in %s", state)}
		}
	}

	desc := strings.ToLower(opp.Description)
	if strings.Contains(desc, "remote") || strings.Contains(desc, "nationwide") {
		return models.FilterCheck{Passed: true, Score: 1.0, Detail: "remote or nationwide work"}
	}

	return models.FilterCheck{Passed: true, Score: 0.4, Detail: fmt.Sprintf("no presence in %s", state)}
}

// checkActive hard-fails archived opportunities
func (s *Service) checkActive(opp *models.Opportunity, _ *models.CompanyProfile, now time.Time) models.FilterCheck {
	if opp.IsArchived(now) {
		return models.FilterCheck{Passed: false, Score: 0.0, Detail: "opportunity archived"}
	}
	return models.FilterCheck{Passed: true, Score: 1.0, Detail: "opportunity active"}
}

// checkValueCapacity flags extreme value/size mismatches. Both signals must
// be present; a large award with a small team fails unless the solicitation
// invites partnering.
func (s *Service) checkValueCapacity(opp *models.Opportunity, profile *models.CompanyProfile, _ time.Time) models.FilterCheck {
	if opp.ContractValue == nil {
		return models.FilterCheck{Passed: true, Score: 1.0, Detail: "contract value unknown"}
	}
	minEmployees, _, ok := profile.EmployeeBounds()
	if !ok {
		return models.FilterCheck{Passed: true, Score: 1.0, Detail: "employee count unknown"}
	}

	value := *opp.ContractValue
	if value > s.config.HighValueThreshold && profile.MaxEmployeesAtMost(s.config.SmallTeamMax) {
		desc := strings.ToLower(opp.Description)
		for _, kw := range s.config.PartneringKeywords {
			if strings.Contains(desc, strings.ToLower(kw)) {
				return models.FilterCheck{Passed: true, Score: 0.7, Detail: "high value but partnering invited"}
			}
		}
		return models.FilterCheck{Passed: false, Score: 0.0, Detail: fmt.Sprintf("value $%.0f exceeds capacity of a <=%d person team", value, s.config.SmallTeamMax)}
	}

	if value < s.config.LowValueThreshold && minEmployees > s.config.LargeTeamMin {
		return models.FilterCheck{Passed: true, Score: 0.6, Detail: "low value for company size"}
	}

	return models.FilterCheck{Passed: true, Score: 1.0, Detail: "value within capacity"}
}

// NormalizeSetAside folds an opportunity's set-aside string onto a class
// token: uppercased, trimmed, aliases applied.
func NormalizeSetAside(raw string) string {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if v == "" || v == "NONE" || v == "OPEN" {
		return ""
	}
	if alias, ok := setAsideAliases[v]; ok {
		return alias
	}
	return v
}

// CertificationSatisfies reports whether the profile's certifications cover
// the set-aside class. Every restricted class implies SMALL BUSINESS, so a
// class certification also satisfies a total small business set-aside.
func CertificationSatisfies(profile *models.CompanyProfile, class string) bool {
	if profile.HasCertification(class) {
		return true
	}
	if class == "SMALL BUSINESS" {
		for candidate := range restrictedClasses {
			if candidate != "SMALL BUSINESS" && profile.HasCertification(candidate) {
				return true
			}
		}
	}
	return false
}

// tokenSet lowercases and splits text into a token membership set
func tokenSet(text string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

// SortedCheckNames returns check names in stable order for deterministic logs
func SortedCheckNames(checks map[string]models.FilterCheck) []string {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

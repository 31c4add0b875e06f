// Package briefs generates Claude capture briefs for scored matches. A brief
// narrates one (company, opportunity) pairing: summary, win themes, risks,
// and next steps, parsed from a fenced YAML block in the model response.
// Briefs are a reporting surface; the matching pipeline never reads them.
package briefs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/common"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
	"gopkg.in/yaml.v3"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 2048
	defaultTimeout   = 60 * time.Second

	// Description and capability text are truncated before prompting so a
	// pathological catalog entry cannot blow the token budget
	promptTextLimit = 4000
)

const systemPrompt = `You are a federal capture analyst. Given a contracting opportunity, a company profile, and the engine's match assessment, write a concise capture brief.

Respond with exactly one fenced YAML block and nothing else:

` + "```yaml" + `
summary: one paragraph on fit and positioning
win_themes:
  - short bullet
risks:
  - short bullet
next_steps:
  - short actionable bullet
` + "```" + `

Keep every bullet under 20 words. Do not invent facts that are not in the inputs.`

// Service implements BriefService over the Anthropic API
type Service struct {
	config      common.BriefsConfig
	model       string
	maxTokens   int64
	temperature float32
	timeout     time.Duration
	client      anthropic.Client
	available   bool

	matches       interfaces.MatchStorage
	opportunities interfaces.OpportunityStorage
	companies     interfaces.CompanyStorage
	briefs        interfaces.BriefStorage
	logger        arbor.ILogger
}

// NewService builds the brief generator. Without an Anthropic API key, or
// with briefs disabled in config, the service constructs in an unavailable
// state: reads still work, generation returns an error.
func NewService(
	ctx context.Context,
	config *common.Config,
	kvStorage interfaces.KeyValueStorage,
	matches interfaces.MatchStorage,
	opportunities interfaces.OpportunityStorage,
	companies interfaces.CompanyStorage,
	briefs interfaces.BriefStorage,
	logger arbor.ILogger,
) interfaces.BriefService {
	model := config.Claude.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := int64(config.Claude.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	timeout, err := time.ParseDuration(config.Claude.Timeout)
	if err != nil || timeout <= 0 {
		timeout = defaultTimeout
	}

	service := &Service{
		config:        config.Briefs,
		model:         model,
		maxTokens:     maxTokens,
		temperature:   config.Claude.Temperature,
		timeout:       timeout,
		matches:       matches,
		opportunities: opportunities,
		companies:     companies,
		briefs:        briefs,
		logger:        logger,
	}

	if !config.Briefs.Enabled {
		logger.Info().Msg("Brief generation disabled by config")
		return service
	}

	apiKey, err := common.ResolveAPIKey(ctx, kvStorage, "anthropic_api_key", config.Claude.APIKey)
	if err != nil || apiKey == "" {
		logger.Warn().Msg("No Anthropic API key configured, brief generation unavailable")
		return service
	}

	service.client = anthropic.NewClient(option.WithAPIKey(apiKey))
	service.available = true
	logger.Info().
		Str("model", model).
		Int64("max_tokens", maxTokens).
		Msg("Brief service initialized")

	return service
}

// GenerateBrief produces and persists a brief for one scored match. The pair
// must already have a match result; briefs describe scores, they never
// create them.
func (s *Service) GenerateBrief(ctx context.Context, companyID, opportunityID string) (*models.CaptureBrief, error) {
	if !s.available {
		return nil, fmt.Errorf("brief generation is not available: anthropic provider not configured")
	}

	match, err := s.matches.GetMatch(ctx, companyID, opportunityID)
	if err != nil {
		return nil, fmt.Errorf("no scored match for %s/%s, score the pair first: %w", companyID, opportunityID, err)
	}
	opp, err := s.opportunities.GetOpportunity(ctx, opportunityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load opportunity %s: %w", opportunityID, err)
	}
	profile, err := s.companies.GetCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load company %s: %w", companyID, err)
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: s.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(opp, profile, match))),
		},
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
	}
	if s.temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.temperature))
	}

	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("claude API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	content, err := parseBriefContent(text.String())
	if err != nil {
		return nil, fmt.Errorf("failed to parse brief response: %w", err)
	}

	brief := &models.CaptureBrief{
		BriefID:       common.NewBriefID(),
		CompanyID:     companyID,
		OpportunityID: opportunityID,
		TenantID:      match.TenantID,
		Summary:       content.Summary,
		WinThemes:     content.WinThemes,
		Risks:         content.Risks,
		NextSteps:     content.NextSteps,
		Model:         s.model,
		TotalScore:    match.TotalScore,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.briefs.StoreBrief(ctx, brief); err != nil {
		return nil, fmt.Errorf("failed to persist brief: %w", err)
	}

	s.logger.Info().
		Str("brief_id", brief.BriefID).
		Str("company_id", companyID).
		Str("opportunity_id", opportunityID).
		Float64("total_score", match.TotalScore).
		Dur("duration", time.Since(start)).
		Msg("Capture brief generated")

	return brief, nil
}

// GetBrief returns a persisted brief by id
func (s *Service) GetBrief(ctx context.Context, briefID string) (*models.CaptureBrief, error) {
	return s.briefs.GetBrief(ctx, briefID)
}

// ListBriefs returns a company's briefs, newest first
func (s *Service) ListBriefs(ctx context.Context, companyID string, limit int) ([]*models.CaptureBrief, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.briefs.ListBriefs(ctx, companyID, limit)
}

// IsAvailable reports whether the Anthropic provider is configured
func (s *Service) IsAvailable() bool {
	return s.available
}

// buildPrompt lays out the three inputs as labeled sections. Long free-text
// fields are truncated; scores are printed with the component statuses so
// the model can call out degraded evidence.
func buildPrompt(opp *models.Opportunity, profile *models.CompanyProfile, match *models.MatchResult) string {
	var sb strings.Builder

	sb.WriteString("Opportunity:\n")
	fmt.Fprintf(&sb, "  Notice ID: %s\n", opp.NoticeID)
	fmt.Fprintf(&sb, "  Title: %s\n", opp.Title)
	if opp.NAICSCode != "" {
		fmt.Fprintf(&sb, "  NAICS: %s\n", opp.NAICSCode)
	}
	if opp.SetAside != "" {
		fmt.Fprintf(&sb, "  Set-aside: %s\n", opp.SetAside)
	}
	if opp.ContractValue != nil {
		fmt.Fprintf(&sb, "  Estimated value: $%.0f\n", *opp.ContractValue)
	}
	if opp.PlaceOfPerformance != nil {
		fmt.Fprintf(&sb, "  Place of performance: %s %s\n", opp.PlaceOfPerformance.City, opp.PlaceOfPerformance.State)
	}
	if opp.Department != "" {
		fmt.Fprintf(&sb, "  Department: %s\n", opp.Department)
	}
	fmt.Fprintf(&sb, "  Description: %s\n", truncate(opp.Description, promptTextLimit))

	sb.WriteString("\nCompany:\n")
	fmt.Fprintf(&sb, "  Name: %s (%s)\n", profile.Name, profile.CompanyID)
	if len(profile.NAICSCodes) > 0 {
		fmt.Fprintf(&sb, "  NAICS codes: %s\n", strings.Join(profile.NAICSCodes, ", "))
	}
	if len(profile.Certifications) > 0 {
		fmt.Fprintf(&sb, "  Certifications: %s\n", strings.Join(profile.Certifications, ", "))
	}
	if profile.EmployeeCount != "" {
		fmt.Fprintf(&sb, "  Employees: %s\n", profile.EmployeeCount)
	}
	fmt.Fprintf(&sb, "  Capability statement: %s\n", truncate(profile.CapabilityStatement, promptTextLimit))
	for _, pp := range profile.PastPerformance {
		fmt.Fprintf(&sb, "  Past performance: %s (%d) %s\n", pp.Agency, pp.Year, truncate(pp.Description, 300))
	}

	sb.WriteString("\nMatch assessment:\n")
	fmt.Fprintf(&sb, "  Total score: %.2f (%s confidence, status %s)\n", match.TotalScore, match.ConfidenceLevel, match.Status)
	for name, score := range match.ComponentScores {
		status := match.ComponentStatus[name]
		if status == "" {
			status = models.ScoreStatusOK
		}
		fmt.Fprintf(&sb, "  Component %s: %.2f (%s)\n", name, score, status)
	}
	for _, reason := range match.MatchReasons {
		fmt.Fprintf(&sb, "  Reason: %s\n", reason)
	}

	return sb.String()
}

// parseBriefContent extracts the fenced YAML block from a model response
// and unmarshals it. Responses without a fence are tried as raw YAML.
func parseBriefContent(raw string) (*models.BriefContent, error) {
	block := extractYAMLBlock(raw)
	if block == "" {
		return nil, fmt.Errorf("response contains no content")
	}

	var content models.BriefContent
	if err := yaml.Unmarshal([]byte(block), &content); err != nil {
		return nil, fmt.Errorf("response is not valid YAML: %w", err)
	}
	if strings.TrimSpace(content.Summary) == "" {
		return nil, fmt.Errorf("response is missing the summary field")
	}
	return &content, nil
}

// extractYAMLBlock returns the body of the first ```yaml fence, or the
// trimmed input when no fence is present
func extractYAMLBlock(raw string) string {
	lower := strings.ToLower(raw)
	start := strings.Index(lower, "```yaml")
	if start < 0 {
		start = strings.Index(lower, "```yml")
	}
	if start < 0 {
		return strings.TrimSpace(raw)
	}

	body := raw[start:]
	newline := strings.Index(body, "\n")
	if newline < 0 {
		return ""
	}
	body = body[newline+1:]
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

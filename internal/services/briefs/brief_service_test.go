package briefs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/common"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
)

type fakeMatchStorage struct {
	match *models.MatchResult
	err   error
}

func (f *fakeMatchStorage) PutMatch(ctx context.Context, result *models.MatchResult) error {
	return nil
}

func (f *fakeMatchStorage) GetMatch(ctx context.Context, companyID, opportunityID string) (*models.MatchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.match, nil
}

func (f *fakeMatchStorage) QueryMatches(ctx context.Context, companyID string, limit int, order interfaces.MatchOrder) ([]*models.MatchResult, error) {
	return nil, nil
}

func (f *fakeMatchStorage) DeleteMatches(ctx context.Context, companyID string) (int, error) {
	return 0, nil
}

func (f *fakeMatchStorage) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

func (f *fakeMatchStorage) CountMatches(ctx context.Context) (int, error) {
	return 0, nil
}

type fakeBriefStorage struct {
	briefs    map[string]*models.CaptureBrief
	lastLimit int
}

func newFakeBriefStorage() *fakeBriefStorage {
	return &fakeBriefStorage{briefs: make(map[string]*models.CaptureBrief)}
}

func (f *fakeBriefStorage) StoreBrief(ctx context.Context, brief *models.CaptureBrief) error {
	f.briefs[brief.BriefID] = brief
	return nil
}

func (f *fakeBriefStorage) GetBrief(ctx context.Context, briefID string) (*models.CaptureBrief, error) {
	brief, ok := f.briefs[briefID]
	if !ok {
		return nil, fmt.Errorf("brief not found: %s", briefID)
	}
	return brief, nil
}

func (f *fakeBriefStorage) GetBriefForMatch(ctx context.Context, companyID, opportunityID string) (*models.CaptureBrief, error) {
	return nil, nil
}

func (f *fakeBriefStorage) ListBriefs(ctx context.Context, companyID string, limit int) ([]*models.CaptureBrief, error) {
	f.lastLimit = limit
	var result []*models.CaptureBrief
	for _, brief := range f.briefs {
		if brief.CompanyID == companyID {
			result = append(result, brief)
		}
	}
	return result, nil
}

func (f *fakeBriefStorage) DeleteBriefs(ctx context.Context, companyID string) (int, error) {
	return 0, nil
}

const fencedResponse = "Here is the capture brief you asked for.\n\n" +
	"```yaml\n" +
	"summary: Strong NAICS and certification alignment for the cyber support recompete.\n" +
	"win_themes:\n" +
	"  - Incumbent-adjacent past performance at DISA\n" +
	"  - SDVOSB set-aside eligibility\n" +
	"risks:\n" +
	"  - No stated FedRAMP experience\n" +
	"next_steps:\n" +
	"  - Request the draft PWS\n" +
	"  - Identify a FedRAMP teaming partner\n" +
	"```\n\n" +
	"Let me know if you need anything else."

func TestParseBriefContentFencedYAML(t *testing.T) {
	content, err := parseBriefContent(fencedResponse)
	require.NoError(t, err)

	require.Contains(t, content.Summary, "cyber support recompete")
	require.Len(t, content.WinThemes, 2)
	require.Len(t, content.Risks, 1)
	require.Equal(t, []string{"Request the draft PWS", "Identify a FedRAMP teaming partner"}, content.NextSteps)
}

func TestParseBriefContentYmlFence(t *testing.T) {
	raw := "```yml\nsummary: short fit statement\n```"
	content, err := parseBriefContent(raw)
	require.NoError(t, err)
	require.Equal(t, "short fit statement", content.Summary)
}

func TestParseBriefContentBareYAML(t *testing.T) {
	raw := "summary: the model skipped the fence\nwin_themes:\n  - still parses\n"
	content, err := parseBriefContent(raw)
	require.NoError(t, err)
	require.Equal(t, "the model skipped the fence", content.Summary)
	require.Equal(t, []string{"still parses"}, content.WinThemes)
}

func TestParseBriefContentInvalidYAML(t *testing.T) {
	_, err := parseBriefContent("```yaml\nsummary: [unclosed\n```")
	require.ErrorContains(t, err, "not valid YAML")
}

func TestParseBriefContentMissingSummary(t *testing.T) {
	_, err := parseBriefContent("```yaml\nwin_themes:\n  - no summary here\n```")
	require.ErrorContains(t, err, "missing the summary")
}

func TestExtractYAMLBlockUnterminatedFence(t *testing.T) {
	raw := "```yaml\nsummary: fence never closes"
	require.Equal(t, "summary: fence never closes", extractYAMLBlock(raw))
}

func TestBuildPromptIncludesCoreFields(t *testing.T) {
	value := 2500000.0
	opp := &models.Opportunity{
		NoticeID:      "FA8750-26-R-0001",
		Title:         "Cybersecurity Support Services",
		Description:   "Provide continuous monitoring support.",
		NAICSCode:     "541512",
		SetAside:      "SDVOSB",
		ContractValue: &value,
	}
	profile := &models.CompanyProfile{
		CompanyID:           "acme-federal",
		Name:                "Acme Federal",
		NAICSCodes:          []string{"541512", "541511"},
		Certifications:      []string{"SDVOSB"},
		EmployeeCount:       "11-50",
		CapabilityStatement: "Security operations and monitoring.",
	}
	match := &models.MatchResult{
		TotalScore:      0.82,
		ConfidenceLevel: models.ConfidenceHigh,
		Status:          models.MatchStatusOK,
		ComponentScores: map[string]float64{"naics_alignment": 1.0},
		ComponentStatus: map[string]string{"naics_alignment": models.ScoreStatusOK},
		MatchReasons:    []string{"Exact NAICS match on 541512"},
	}

	prompt := buildPrompt(opp, profile, match)

	require.Contains(t, prompt, "Cybersecurity Support Services")
	require.Contains(t, prompt, "Acme Federal")
	require.Contains(t, prompt, "Estimated value: $2500000")
	require.Contains(t, prompt, "Total score: 0.82 (HIGH confidence, status ok)")
	require.Contains(t, prompt, "Component naics_alignment: 1.00 (ok)")
	require.Contains(t, prompt, "Reason: Exact NAICS match on 541512")
}

func TestBuildPromptTruncatesLongDescription(t *testing.T) {
	opp := &models.Opportunity{
		NoticeID:    "N-1",
		Title:       "Long One",
		Description: strings.Repeat("x", promptTextLimit*2),
	}
	prompt := buildPrompt(opp, &models.CompanyProfile{}, &models.MatchResult{})
	require.Less(t, len(prompt), promptTextLimit+1000)
}

func TestGenerateBriefUnavailableWhenDisabled(t *testing.T) {
	config := common.NewDefaultConfig()
	config.Briefs.Enabled = false

	svc := NewService(context.Background(), config, nil, nil, nil, nil, nil, arbor.NewLogger())
	require.False(t, svc.IsAvailable())

	_, err := svc.GenerateBrief(context.Background(), "acme-federal", "FA8750-26-R-0001")
	require.ErrorContains(t, err, "not available")
}

func TestGenerateBriefUnavailableWithoutKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("CONGRUO_CLAUDE_API_KEY", "")

	config := common.NewDefaultConfig()
	config.Briefs.Enabled = true
	config.Claude.APIKey = ""

	svc := NewService(context.Background(), config, nil, nil, nil, nil, nil, arbor.NewLogger())
	require.False(t, svc.IsAvailable())
}

func TestGenerateBriefRequiresScoredMatch(t *testing.T) {
	svc := &Service{
		available: true,
		matches:   &fakeMatchStorage{err: errors.New("match not found")},
		logger:    arbor.NewLogger(),
	}

	_, err := svc.GenerateBrief(context.Background(), "acme-federal", "FA8750-26-R-0001")
	require.ErrorContains(t, err, "score the pair first")
}

func TestListBriefsDefaultsLimit(t *testing.T) {
	store := newFakeBriefStorage()
	svc := &Service{briefs: store, logger: arbor.NewLogger()}

	_, err := svc.ListBriefs(context.Background(), "acme-federal", 0)
	require.NoError(t, err)
	require.Equal(t, 20, store.lastLimit)

	_, err = svc.ListBriefs(context.Background(), "acme-federal", 5)
	require.NoError(t, err)
	require.Equal(t, 5, store.lastLimit)
}

func TestGetBriefPassthrough(t *testing.T) {
	store := newFakeBriefStorage()
	store.briefs["b-1"] = &models.CaptureBrief{BriefID: "b-1", CompanyID: "acme-federal", Summary: "fit"}
	svc := &Service{briefs: store, logger: arbor.NewLogger()}

	brief, err := svc.GetBrief(context.Background(), "b-1")
	require.NoError(t, err)
	require.Equal(t, "fit", brief.Summary)

	_, err = svc.GetBrief(context.Background(), "missing")
	require.Error(t, err)
}

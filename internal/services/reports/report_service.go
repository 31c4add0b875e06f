// Package reports renders a company's top matches as a PDF document. The
// report is markdown first, then handed to the pdf service for layout.
package reports

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
)

// defaultReportMatches caps the report when the caller does not pass a limit
const defaultReportMatches = 10

// Service implements ReportService
type Service struct {
	matches       interfaces.MatchStorage
	companies     interfaces.CompanyStorage
	opportunities interfaces.OpportunityStorage
	pdf           interfaces.PDFService
	logger        arbor.ILogger
}

// NewService creates a report service
func NewService(
	matches interfaces.MatchStorage,
	companies interfaces.CompanyStorage,
	opportunities interfaces.OpportunityStorage,
	pdfService interfaces.PDFService,
	logger arbor.ILogger,
) interfaces.ReportService {
	return &Service{
		matches:       matches,
		companies:     companies,
		opportunities: opportunities,
		pdf:           pdfService,
		logger:        logger,
	}
}

// CompanyMatchReport renders the top matches for a company as a PDF
func (s *Service) CompanyMatchReport(ctx context.Context, companyID string, limit int) ([]byte, error) {
	if limit <= 0 {
		limit = defaultReportMatches
	}

	profile, err := s.companies.GetCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load company %s: %w", companyID, err)
	}

	results, err := s.matches.QueryMatches(ctx, companyID, limit, interfaces.MatchOrderScoreDesc)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for %s: %w", companyID, err)
	}

	start := time.Now()
	markdown := s.buildMarkdown(ctx, profile, results)
	title := fmt.Sprintf("Match Report: %s", profile.Name)

	pdfBytes, err := s.pdf.ConvertMarkdownToPDF(markdown, title)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("company_id", companyID).
		Int("matches", len(results)).
		Int("pdf_size", len(pdfBytes)).
		Dur("duration", time.Since(start)).
		Msg("Match report generated")

	return pdfBytes, nil
}

// buildMarkdown lays the report out as a summary table followed by one
// detail section per match. Opportunities pruned from the catalog since
// scoring still appear, flagged instead of dropped.
func (s *Service) buildMarkdown(ctx context.Context, profile *models.CompanyProfile, results []*models.MatchResult) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Match Report: %s\n\n", profile.Name)
	fmt.Fprintf(&sb, "Generated %s.\n\n", time.Now().UTC().Format("2006-01-02 15:04 MST"))

	sb.WriteString("## Company\n\n")
	fmt.Fprintf(&sb, "- Company ID: %s\n", profile.CompanyID)
	if naics := profile.PrimaryNAICS(); naics != "" {
		fmt.Fprintf(&sb, "- Primary NAICS: %s\n", naics)
	}
	if len(profile.Certifications) > 0 {
		fmt.Fprintf(&sb, "- Certifications: %s\n", strings.Join(profile.Certifications, ", "))
	}
	if profile.EmployeeCount != "" {
		fmt.Fprintf(&sb, "- Employees: %s\n", profile.EmployeeCount)
	}
	sb.WriteString("\n")

	if len(results) == 0 {
		sb.WriteString("No scored matches on file. Run a match or submit a batch job first.\n")
		return sb.String()
	}

	type reportRow struct {
		result *models.MatchResult
		opp    *models.Opportunity
		title  string
	}
	rows := make([]reportRow, 0, len(results))
	for _, result := range results {
		row := reportRow{result: result, title: "(no longer in catalog)"}
		opp, err := s.opportunities.GetOpportunity(ctx, result.OpportunityID)
		if err == nil {
			row.opp = opp
			row.title = opp.Title
		}
		rows = append(rows, row)
	}

	sb.WriteString("## Top Matches\n\n")
	sb.WriteString("| Rank | Notice ID | Title | Score | Confidence | Status |\n")
	sb.WriteString("|------|-----------|-------|-------|------------|--------|\n")
	for i, row := range rows {
		fmt.Fprintf(&sb, "| %d | %s | %s | %.2f | %s | %s |\n",
			i+1,
			tableCell(row.result.OpportunityID),
			tableCell(row.title),
			row.result.TotalScore,
			row.result.ConfidenceLevel,
			row.result.Status)
	}
	sb.WriteString("\n")

	for i, row := range rows {
		fmt.Fprintf(&sb, "## %d. %s\n\n", i+1, row.title)
		fmt.Fprintf(&sb, "- Notice ID: %s\n", row.result.OpportunityID)
		if row.opp != nil {
			if row.opp.NAICSCode != "" {
				fmt.Fprintf(&sb, "- NAICS: %s\n", row.opp.NAICSCode)
			}
			if row.opp.SetAside != "" {
				fmt.Fprintf(&sb, "- Set-aside: %s\n", row.opp.SetAside)
			}
			if row.opp.ContractValue != nil {
				fmt.Fprintf(&sb, "- Estimated value: $%.0f\n", *row.opp.ContractValue)
			}
			if !row.opp.PostedDate.IsZero() {
				fmt.Fprintf(&sb, "- Posted: %s\n", row.opp.PostedDate.Format("2006-01-02"))
			}
		}
		fmt.Fprintf(&sb, "- Total score: %.2f (%s)\n", row.result.TotalScore, row.result.ConfidenceLevel)

		if len(row.result.ComponentScores) > 0 {
			sb.WriteString("\n### Component Scores\n\n")
			sb.WriteString("| Component | Score | Status |\n")
			sb.WriteString("|-----------|-------|--------|\n")
			for _, name := range sortedComponentNames(row.result.ComponentScores) {
				status := row.result.ComponentStatus[name]
				if status == "" {
					status = models.ScoreStatusOK
				}
				fmt.Fprintf(&sb, "| %s | %.2f | %s |\n", name, row.result.ComponentScores[name], tableCell(status))
			}
			sb.WriteString("\n")
		}

		writeBullets(&sb, "Match Reasons", row.result.MatchReasons)
		writeBullets(&sb, "Recommendations", row.result.Recommendations)
		writeBullets(&sb, "Action Items", row.result.ActionItems)
	}

	return sb.String()
}

func writeBullets(sb *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "### %s\n\n", heading)
	for _, item := range items {
		fmt.Fprintf(sb, "- %s\n", item)
	}
	sb.WriteString("\n")
}

// sortedComponentNames keeps component ordering stable across renders
func sortedComponentNames(scores map[string]float64) []string {
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// tableCell neutralizes pipes so free text cannot break the table row
func tableCell(s string) string {
	return strings.ReplaceAll(s, "|", "/")
}

package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/congruo/internal/models"
)

// formatMatchResult formats a match verdict as markdown. Opportunity and
// profile are optional context for score_match output.
func formatMatchResult(result *models.MatchResult, opp *models.Opportunity, profile *models.CompanyProfile) string {
	var sb strings.Builder

	if opp != nil && profile != nil {
		sb.WriteString(fmt.Sprintf("## Match: %s × %s\n\n", profile.Name, opp.Title))
	} else {
		sb.WriteString(fmt.Sprintf("## Match: %s × %s\n\n", result.CompanyID, result.OpportunityID))
	}

	sb.WriteString(fmt.Sprintf("**Total Score:** %.3f (%s confidence)\n", result.TotalScore, result.ConfidenceLevel))
	sb.WriteString(fmt.Sprintf("**Status:** %s", result.Status))
	if result.Cached {
		sb.WriteString(" (cached)")
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("**Scored:** %s\n\n", result.CreatedAt.Format(time.RFC3339)))

	if len(result.ComponentScores) > 0 {
		sb.WriteString("### Component Scores\n\n")
		names := make([]string, 0, len(result.ComponentScores))
		for name := range result.ComponentScores {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			sb.WriteString(fmt.Sprintf("- %s: %.3f", name, result.ComponentScores[name]))
			if status, ok := result.ComponentStatus[name]; ok && status != "ok" {
				sb.WriteString(fmt.Sprintf(" (%s)", status))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if len(result.MatchReasons) > 0 {
		sb.WriteString("### Why\n\n")
		for _, reason := range result.MatchReasons {
			sb.WriteString(fmt.Sprintf("- %s\n", reason))
		}
		sb.WriteString("\n")
	}

	if len(result.Recommendations) > 0 {
		sb.WriteString("### Recommendations\n\n")
		for _, rec := range result.Recommendations {
			sb.WriteString(fmt.Sprintf("- %s\n", rec))
		}
		sb.WriteString("\n")
	}

	if len(result.ActionItems) > 0 {
		sb.WriteString("### Action Items\n\n")
		for _, item := range result.ActionItems {
			sb.WriteString(fmt.Sprintf("- %s\n", item))
		}
	}

	return sb.String()
}

// formatTopMatches formats a company's ranked matches as markdown
func formatTopMatches(companyID string, results []*models.MatchResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Top Matches for %s (%d results)\n\n", companyID, len(results)))

	if len(results) == 0 {
		sb.WriteString("No persisted matches. Run submit_batch to score this company against the corpus.\n")
		return sb.String()
	}

	for i, result := range results {
		sb.WriteString(fmt.Sprintf("%d. **%s** — score %.3f (%s confidence, %s)\n",
			i+1, result.OpportunityID, result.TotalScore, result.ConfidenceLevel, result.Status))
		if len(result.MatchReasons) > 0 {
			sb.WriteString(fmt.Sprintf("   %s\n", result.MatchReasons[0]))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatSubmission formats a batch submission acknowledgement as markdown
func formatSubmission(jobID string, req *models.BatchRequest) string {
	var sb strings.Builder
	sb.WriteString("## Batch Submitted\n\n")
	sb.WriteString(fmt.Sprintf("**Job ID:** %s\n", jobID))
	sb.WriteString(fmt.Sprintf("**Company:** %s\n", req.CompanyID))

	if len(req.Filters.NAICSPrefixes) > 0 {
		sb.WriteString(fmt.Sprintf("**NAICS prefixes:** %s\n", strings.Join(req.Filters.NAICSPrefixes, ", ")))
	}
	if len(req.Filters.SetAsideIn) > 0 {
		sb.WriteString(fmt.Sprintf("**Set-asides:** %s\n", strings.Join(req.Filters.SetAsideIn, ", ")))
	}
	if len(req.Filters.States) > 0 {
		sb.WriteString(fmt.Sprintf("**States:** %s\n", strings.Join(req.Filters.States, ", ")))
	}
	if req.ForceRefresh {
		sb.WriteString("**Force refresh:** cached verdicts will be rescored\n")
	}

	sb.WriteString("\nUse batch_status with the job ID to follow progress.\n")
	return sb.String()
}

// formatBatchStatus formats job state and progress as markdown
func formatBatchStatus(job *models.BatchJob, status *models.JobStatus) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Batch %s\n\n", job.JobID))
	sb.WriteString(fmt.Sprintf("**State:** %s\n", job.State))
	sb.WriteString(fmt.Sprintf("**Company:** %s\n", job.CompanyID))
	sb.WriteString(fmt.Sprintf("**Created:** %s\n", job.CreatedAt.Format(time.RFC3339)))
	if job.CompletedAt != nil {
		sb.WriteString(fmt.Sprintf("**Completed:** %s\n", job.CompletedAt.Format(time.RFC3339)))
	}
	if job.LastError != "" {
		sb.WriteString(fmt.Sprintf("**Last error:** %s\n", job.LastError))
	}

	counters := job.Counters
	if status != nil {
		counters = status.Counters
	}
	sb.WriteString("\n### Progress\n\n")
	sb.WriteString(fmt.Sprintf("- Total candidates: %d\n", counters.Total))
	sb.WriteString(fmt.Sprintf("- Submitted: %d\n", counters.Submitted))
	sb.WriteString(fmt.Sprintf("- Succeeded: %d\n", counters.Succeeded))
	sb.WriteString(fmt.Sprintf("- Failed: %d\n", counters.Failed))
	sb.WriteString(fmt.Sprintf("- Skipped: %d\n", counters.Skipped))
	sb.WriteString(fmt.Sprintf("- In flight: %d\n", counters.InFlight))

	if status != nil && !job.State.IsTerminal() {
		sb.WriteString(fmt.Sprintf("\n**Throughput:** %.2f items/s\n", status.Throughput))
		if status.ETASeconds > 0 {
			sb.WriteString(fmt.Sprintf("**ETA:** %.0f seconds\n", status.ETASeconds))
		}
	}

	return sb.String()
}

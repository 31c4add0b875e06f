package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
)

// handleScoreMatch implements the score_match tool
func handleScoreMatch(storage interfaces.StorageManager, matcherService interfaces.MatcherService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		companyID, err := request.RequireString("company_id")
		if err != nil || companyID == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: company_id parameter is required"),
				},
			}, nil
		}

		noticeID, err := request.RequireString("notice_id")
		if err != nil || noticeID == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: notice_id parameter is required"),
				},
			}, nil
		}

		forceRefresh := request.GetBool("force_refresh", false)

		profile, err := storage.CompanyStorage().GetCompany(ctx, companyID)
		if err != nil {
			logger.Error().Err(err).Str("company_id", companyID).Msg("GetCompany failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Company not found: %v", err)),
				},
			}, nil
		}

		opp, err := storage.OpportunityStorage().GetOpportunity(ctx, noticeID)
		if err != nil {
			logger.Error().Err(err).Str("notice_id", noticeID).Msg("GetOpportunity failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Opportunity not found: %v", err)),
				},
			}, nil
		}

		result, err := matcherService.MatchAndStore(ctx, &models.MatchRequest{
			Opportunity:    opp,
			CompanyProfile: profile,
			UseCache:       !forceRefresh,
		})
		if err != nil {
			logger.Error().Err(err).Msg("Match failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Match error: %v", err)),
				},
			}, nil
		}

		markdown := formatMatchResult(result, opp, profile)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(markdown),
			},
		}, nil
	}
}

// handleGetMatch implements the get_match tool
func handleGetMatch(storage interfaces.StorageManager, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		companyID, err := request.RequireString("company_id")
		if err != nil || companyID == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: company_id parameter is required"),
				},
			}, nil
		}

		noticeID, err := request.RequireString("notice_id")
		if err != nil || noticeID == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: notice_id parameter is required"),
				},
			}, nil
		}

		result, err := storage.MatchStorage().GetMatch(ctx, companyID, noticeID)
		if err != nil {
			logger.Error().Err(err).Str("company_id", companyID).Str("notice_id", noticeID).Msg("GetMatch failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Match not found: %v", err)),
				},
			}, nil
		}

		markdown := formatMatchResult(result, nil, nil)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(markdown),
			},
		}, nil
	}
}

// handleTopMatches implements the top_matches tool
func handleTopMatches(storage interfaces.StorageManager, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		companyID, err := request.RequireString("company_id")
		if err != nil || companyID == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: company_id parameter is required"),
				},
			}, nil
		}

		// Parse limit (default: 10, max: 100)
		limit := request.GetInt("limit", 10)
		if limit > 100 {
			limit = 100
		}

		results, err := storage.MatchStorage().QueryMatches(ctx, companyID, limit, interfaces.MatchOrderScoreDesc)
		if err != nil {
			logger.Error().Err(err).Str("company_id", companyID).Msg("QueryMatches failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Query error: %v", err)),
				},
			}, nil
		}

		markdown := formatTopMatches(companyID, results)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(markdown),
			},
		}, nil
	}
}

// handleSubmitBatch implements the submit_batch tool
func handleSubmitBatch(batchService interfaces.BatchService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		companyID, err := request.RequireString("company_id")
		if err != nil || companyID == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: company_id parameter is required"),
				},
			}, nil
		}

		req := &models.BatchRequest{
			CompanyID: companyID,
			Filters: models.OpportunityFilters{
				NAICSPrefixes: request.GetStringSlice("naics_prefixes", nil),
				SetAsideIn:    request.GetStringSlice("set_asides", nil),
				States:        request.GetStringSlice("states", nil),
			},
			ForceRefresh: request.GetBool("force_refresh", false),
		}

		jobID, err := batchService.Submit(ctx, "", req)
		if err != nil {
			logger.Error().Err(err).Str("company_id", companyID).Msg("Submit failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Submit error: %v", err)),
				},
			}, nil
		}

		markdown := formatSubmission(jobID, req)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(markdown),
			},
		}, nil
	}
}

// handleBatchStatus implements the batch_status tool
func handleBatchStatus(batchService interfaces.BatchService, trackerService interfaces.TrackerService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := request.RequireString("job_id")
		if err != nil || jobID == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: job_id parameter is required"),
				},
			}, nil
		}

		job, err := batchService.GetJob(ctx, jobID)
		if err != nil {
			logger.Error().Err(err).Str("job_id", jobID).Msg("GetJob failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Job not found: %v", err)),
				},
			}, nil
		}

		// Tracker status carries throughput and ETA for running jobs; fall
		// back to the persisted record when tracking state is gone.
		status, err := trackerService.Status(ctx, jobID)
		if err != nil {
			status = nil
		}

		markdown := formatBatchStatus(job, status)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(markdown),
			},
		}, nil
	}
}

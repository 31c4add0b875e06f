package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createScoreMatchTool returns the score_match tool definition
func createScoreMatchTool() mcp.Tool {
	return mcp.NewTool("score_match",
		mcp.WithDescription("Score one company against one opportunity and explain the verdict"),
		mcp.WithString("company_id",
			mcp.Required(),
			mcp.Description("Company profile ID"),
		),
		mcp.WithString("notice_id",
			mcp.Required(),
			mcp.Description("Opportunity notice ID"),
		),
		mcp.WithBoolean("force_refresh",
			mcp.Description("Bypass the cached verdict and rescore (default: false)"),
		),
	)
}

// createGetMatchTool returns the get_match tool definition
func createGetMatchTool() mcp.Tool {
	return mcp.NewTool("get_match",
		mcp.WithDescription("Retrieve a persisted match verdict with scores, reasons, and action items"),
		mcp.WithString("company_id",
			mcp.Required(),
			mcp.Description("Company profile ID"),
		),
		mcp.WithString("notice_id",
			mcp.Required(),
			mcp.Description("Opportunity notice ID"),
		),
	)
}

// createTopMatchesTool returns the top_matches tool definition
func createTopMatchesTool() mcp.Tool {
	return mcp.NewTool("top_matches",
		mcp.WithDescription("List a company's best persisted matches, highest score first"),
		mcp.WithString("company_id",
			mcp.Required(),
			mcp.Description("Company profile ID"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return (default: 10, max: 100)"),
		),
	)
}

// createSubmitBatchTool returns the submit_batch tool definition
func createSubmitBatchTool() mcp.Tool {
	return mcp.NewTool("submit_batch",
		mcp.WithDescription("Submit a batch scoring run for a company across the opportunity corpus"),
		mcp.WithString("company_id",
			mcp.Required(),
			mcp.Description("Company profile ID"),
		),
		mcp.WithArray("naics_prefixes",
			mcp.WithStringItems(),
			mcp.Description("Restrict candidates to these NAICS code prefixes"),
		),
		mcp.WithArray("set_asides",
			mcp.WithStringItems(),
			mcp.Description("Restrict candidates to these set-aside tokens, e.g. SDVOSB, 8(A)"),
		),
		mcp.WithArray("states",
			mcp.WithStringItems(),
			mcp.Description("Restrict candidates to these place-of-performance state codes"),
		),
		mcp.WithBoolean("force_refresh",
			mcp.Description("Rescore pairs even when a cached verdict exists (default: false)"),
		),
	)
}

// createBatchStatusTool returns the batch_status tool definition
func createBatchStatusTool() mcp.Tool {
	return mcp.NewTool("batch_status",
		mcp.WithDescription("Report a batch job's state, counters, throughput, and ETA"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Batch job ID returned by submit_batch"),
		),
	)
}

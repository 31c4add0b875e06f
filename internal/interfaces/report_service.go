package interfaces

import (
	"context"
)

// ReportService renders match reports as PDF documents
type ReportService interface {
	// CompanyMatchReport renders the top matches for a company as a PDF
	CompanyMatchReport(ctx context.Context, companyID string, limit int) ([]byte, error)
}

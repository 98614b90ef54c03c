package http

import (
	"context"

	"mpxreport/internal/files"
	"mpxreport/internal/services"
	"mpxreport/pkg/contracts/domain"
)

// ReportServiceInterface defines the report operations the handlers need
type ReportServiceInterface interface {
	Generate(ctx context.Context, req services.ReportRequest) (*domain.ReportResult, error)
	ListReports(ctx context.Context) ([]files.FileInfo, error)
	LookupReport(ctx context.Context, name string) (files.FileInfo, error)
}

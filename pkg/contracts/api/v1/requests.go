// Package api contains the HTTP API contract of the report service.
// Version v1 represents the current stable API version.
package api

import (
	"time"

	"mpxreport/pkg/contracts/domain"
)

// GenerateReportRequest asks for one report run. Both fields are optional;
// the server falls back to its configured source and formats. A source must
// be an http(s) URL on a host the server allows.
type GenerateReportRequest struct {
	Source  string   `json:"source,omitempty" validate:"omitempty,max=2048,http_url"`
	Formats []string `json:"formats,omitempty" validate:"omitempty,max=2,dive,oneof=xlsx csv XLSX CSV"`
}

// GenerateReportResponse wraps the result of a report run
type GenerateReportResponse struct {
	Success bool                 `json:"success"`
	Report  *domain.ReportResult `json:"report"`
}

// ReportFile describes one generated report file
type ReportFile struct {
	Name        string    `json:"name"`
	Format      string    `json:"format"`
	Size        int64     `json:"size"`
	Modified    time.Time `json:"modified"`
	DownloadURL string    `json:"download_url"`
}

// ListReportsResponse lists generated report files, newest first
type ListReportsResponse struct {
	Reports []ReportFile `json:"reports"`
	Count   int          `json:"count"`
}

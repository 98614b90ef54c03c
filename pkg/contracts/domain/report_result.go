package domain

import (
	"time"
)

// ReportFormat defines the output format of a report
type ReportFormat string

const (
	ReportFormatExcel ReportFormat = "xlsx"
	ReportFormatCSV   ReportFormat = "csv"
)

// ReportResult describes a finished report run
type ReportResult struct {
	OperationID      string         `json:"operation_id"`
	Source           string         `json:"source"`
	Files            []string       `json:"files"`
	GeneratedAt      time.Time      `json:"generated_at"`
	LoadedRecords    int            `json:"loaded_records"`
	ConfirmedRecords int            `json:"confirmed_records"`
	SheetRows        map[string]int `json:"sheet_rows"`
	Duration         time.Duration  `json:"duration"`
}

package config

import (
	"time"

	"mpxreport/pkg/contracts"
)

// Application constants
const (
	AppName    = "mpxreport"
	AppVersion = contracts.Version

	// DefaultSourceURL is the published line-list of the global.health outbreak dataset
	DefaultSourceURL = "https://raw.githubusercontent.com/globaldothealth/monkeypox/main/latest.csv"

	// Report file naming: <prefix><YYYY-MM-DD><extension>
	ReportFilePrefix    = "MonkeypoxReportOfGlobalHealth_"
	ReportFileExtension = ".xlsx"
	ReportDateLayout    = "2006-01-02"

	DefaultReportsDir = "reports"

	DefaultFetchTimeout     = 2 * time.Minute
	DefaultOperationTimeout = 10 * time.Minute
)

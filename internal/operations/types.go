package operations

import (
	"time"

	"mpxreport/pkg/contracts/domain"
)

// Step identifiers of the report pipeline
const (
	StepIDFetch      = "fetch"
	StepIDLoad       = "load"
	StepIDNormalize  = "normalize"
	StepIDCategorize = "categorize"
	StepIDAggregate  = "aggregate"
	StepIDExport     = "export"
)

// ReportStepIDs returns the report pipeline step IDs in execution order
func ReportStepIDs() []string {
	return []string{StepIDFetch, StepIDLoad, StepIDNormalize, StepIDCategorize, StepIDAggregate, StepIDExport}
}

// Step names
const (
	StepNameFetch      = "Line-list Retrieval"
	StepNameLoad       = "Line-list Parsing"
	StepNameNormalize  = "Field Normalization"
	StepNameCategorize = "Age Categorization"
	StepNameAggregate  = "Summary Computation"
	StepNameExport     = "Report Export"
)

// Context keys for operation state
const (
	ContextKeySource      = "source"
	ContextKeyFormats     = "formats"
	ContextKeyRunDate     = "run_date"
	ContextKeyStream      = "stream"
	ContextKeyRecords     = "records"
	ContextKeyLoadStats   = "load_stats"
	ContextKeyConfirmed   = "confirmed_records"
	ContextKeyNormalized  = "normalize_stats"
	ContextKeyCategorized = "categorize_stats"
	ContextKeySummarySet  = "summary_set"
	ContextKeyFiles       = "files"
)

// Default timeouts
const (
	DefaultStepTimeout   = 5 * time.Minute
	DefaultFetchTimeout  = 3 * time.Minute
	DefaultExportTimeout = 2 * time.Minute
)

// RetryConfig defines retry behavior for steps
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
}

// NewRetryConfig returns the default retry configuration
func NewRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// OperationRequest represents a request to generate one report
type OperationRequest struct {
	ID      string                `json:"id"`
	Source  string                `json:"source"`
	Formats []domain.ReportFormat `json:"formats,omitempty"`
	RunDate time.Time             `json:"run_date"`
}

// OperationResponse represents the outcome of a pipeline run
type OperationResponse struct {
	ID       string                `json:"id"`
	Status   OperationStatusValue  `json:"status"`
	Duration time.Duration         `json:"duration"`
	Steps    map[string]*StepState `json:"steps"`
	Error    string                `json:"error,omitempty"`

	// State is the final operation state; steps' outputs live in its context
	State *OperationState `json:"-"`
}

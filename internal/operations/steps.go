package operations

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"mpxreport/internal/dataprocessing"
	apperrors "mpxreport/internal/errors"
	"mpxreport/internal/infrastructure"
	"mpxreport/pkg/contracts/domain"
)

// Fetcher opens the line-list at a location
type Fetcher interface {
	Fetch(ctx context.Context, location string) (io.ReadCloser, error)
}

// Exporter writes a summary set to report files
type Exporter interface {
	Export(ctx context.Context, set *domain.SummarySet, now time.Time, formats []domain.ReportFormat) ([]string, error)
}

// ReportDeps holds the collaborators of the report steps
type ReportDeps struct {
	Fetcher     Fetcher
	Loader      *dataprocessing.Loader
	Normalizer  *dataprocessing.Normalizer
	Categorizer *dataprocessing.Categorizer
	Aggregator  *dataprocessing.Aggregator
	Exporter    Exporter

	// DefaultSource is used when a request names no source
	DefaultSource string
	Metrics       *infrastructure.PipelineMetrics
	Logger        *slog.Logger
}

// NewReportSteps returns the report pipeline steps in execution order
func NewReportSteps(deps ReportDeps) []Step {
	logger := infrastructure.WithComponent(deps.Logger, "pipeline")
	if deps.Loader == nil {
		deps.Loader = dataprocessing.NewLoader(logger)
	}
	if deps.Normalizer == nil {
		deps.Normalizer = dataprocessing.NewNormalizer(dataprocessing.DefaultNormalizationRules(), logger)
	}
	if deps.Categorizer == nil {
		deps.Categorizer = dataprocessing.NewCategorizer(dataprocessing.AgeTableV1(), logger)
	}
	if deps.Aggregator == nil {
		deps.Aggregator = dataprocessing.NewAggregator(true, logger)
	}

	return []Step{
		&FetchStep{BaseStage: NewBaseStage(StepIDFetch, StepNameFetch), fetcher: deps.Fetcher, defaultSource: deps.DefaultSource, logger: logger},
		&LoadStep{BaseStage: NewBaseStage(StepIDLoad, StepNameLoad), loader: deps.Loader, metrics: deps.Metrics},
		&NormalizeStep{BaseStage: NewBaseStage(StepIDNormalize, StepNameNormalize), normalizer: deps.Normalizer, metrics: deps.Metrics},
		&CategorizeStep{BaseStage: NewBaseStage(StepIDCategorize, StepNameCategorize), categorizer: deps.Categorizer},
		&AggregateStep{BaseStage: NewBaseStage(StepIDAggregate, StepNameAggregate), aggregator: deps.Aggregator},
		&ExportStep{BaseStage: NewBaseStage(StepIDExport, StepNameExport), exporter: deps.Exporter, metrics: deps.Metrics},
	}
}

// FetchStep opens the line-list stream
type FetchStep struct {
	BaseStage
	fetcher       Fetcher
	defaultSource string
	logger        *slog.Logger
}

// Validate checks that a source is known and a fetcher is configured
func (s *FetchStep) Validate(state *OperationState) error {
	if s.fetcher == nil {
		return fmt.Errorf("no fetcher configured")
	}
	if s.source(state) == "" {
		return fmt.Errorf("no source location given")
	}
	return nil
}

// Execute downloads the whole source and leaves it in memory for the load
// step. The body is drained here because ctx ends with this step.
func (s *FetchStep) Execute(ctx context.Context, state *OperationState) error {
	location := s.source(state)
	stream, err := s.fetcher.Fetch(ctx, location)
	if err != nil {
		return NewExecutionError(s.ID(), err, isTransient(err))
	}
	data, err := io.ReadAll(stream)
	stream.Close()
	if err != nil {
		readErr := apperrors.NewNetworkError("failed to read source", err).
			WithContext("location", location)
		return NewExecutionError(s.ID(), readErr, true)
	}

	state.SetContext(ContextKeyStream, io.NopCloser(bytes.NewReader(data)))
	setStepMetadata(state, s.ID(), "source", location)
	setStepMetadata(state, s.ID(), "bytes", len(data))
	s.logger.InfoContext(ctx, "Line-list source downloaded",
		slog.String("source", location),
		slog.Int("bytes", len(data)))
	return nil
}

func (s *FetchStep) source(state *OperationState) string {
	if v, ok := state.GetConfig(ContextKeySource); ok {
		if location, _ := v.(string); location != "" {
			return location
		}
	}
	return s.defaultSource
}

// isTransient reports whether a fetch failure may succeed on retry:
// transport failures, 429 and 5xx responses.
func isTransient(err error) bool {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Type != apperrors.ErrTypeNetwork {
		return false
	}
	status, ok := appErr.Context["status"].(int)
	if !ok {
		return true
	}
	return status == http.StatusTooManyRequests || status >= 500
}

// LoadStep parses the stream into case records
type LoadStep struct {
	BaseStage
	loader  *dataprocessing.Loader
	metrics *infrastructure.PipelineMetrics
}

// Validate checks that the fetch step produced a stream
func (s *LoadStep) Validate(state *OperationState) error {
	_, err := contextValue[io.ReadCloser](state, ContextKeyStream)
	return err
}

// Execute reads every row of the stream and closes it
func (s *LoadStep) Execute(ctx context.Context, state *OperationState) error {
	stream, err := contextValue[io.ReadCloser](state, ContextKeyStream)
	if err != nil {
		return NewFatalError("line-list stream missing", err)
	}
	defer func() {
		stream.Close()
		state.DeleteContext(ContextKeyStream)
	}()

	records, stats, err := s.loader.Load(ctx, stream)
	if err != nil {
		return err
	}

	state.SetContext(ContextKeyRecords, records)
	state.SetContext(ContextKeyLoadStats, stats)
	setStepMetadata(state, s.ID(), "rows", stats.Rows)
	setStepMetadata(state, s.ID(), "loaded", stats.Loaded)
	setStepMetadata(state, s.ID(), "blank_rows", stats.BlankRows)
	s.metrics.RecordRecords(ctx, stats.Loaded, 0, stats.BlankRows)
	return nil
}

// NormalizeStep filters confirmed cases and cleans their fields
type NormalizeStep struct {
	BaseStage
	normalizer *dataprocessing.Normalizer
	metrics    *infrastructure.PipelineMetrics
}

// Execute normalizes the loaded records
func (s *NormalizeStep) Execute(ctx context.Context, state *OperationState) error {
	records, err := contextValue[[]domain.CaseRecord](state, ContextKeyRecords)
	if err != nil {
		return NewFatalError("loaded records missing", err)
	}

	confirmed, stats := s.normalizer.Normalize(ctx, records)
	state.SetContext(ContextKeyConfirmed, confirmed)
	state.SetContext(ContextKeyNormalized, stats)
	setStepMetadata(state, s.ID(), "confirmed", stats.Confirmed)
	s.metrics.RecordRecords(ctx, 0, stats.Confirmed, 0)
	return nil
}

// CategorizeStep attaches age buckets
type CategorizeStep struct {
	BaseStage
	categorizer *dataprocessing.Categorizer
}

// Execute assigns every confirmed record an age bucket
func (s *CategorizeStep) Execute(ctx context.Context, state *OperationState) error {
	records, err := contextValue[[]domain.CaseRecord](state, ContextKeyConfirmed)
	if err != nil {
		return NewFatalError("confirmed records missing", err)
	}

	categorized, stats := s.categorizer.Categorize(ctx, records)
	state.SetContext(ContextKeyConfirmed, categorized)
	state.SetContext(ContextKeyCategorized, stats)
	setStepMetadata(state, s.ID(), "unmapped_labels", stats.Unmapped)
	return nil
}

// AggregateStep computes the summary tables
type AggregateStep struct {
	BaseStage
	aggregator *dataprocessing.Aggregator
}

// Execute summarizes the categorized records
func (s *AggregateStep) Execute(ctx context.Context, state *OperationState) error {
	records, err := contextValue[[]domain.CaseRecord](state, ContextKeyConfirmed)
	if err != nil {
		return NewFatalError("confirmed records missing", err)
	}

	set, err := s.aggregator.Summarize(ctx, records)
	if err != nil {
		return err
	}

	state.SetContext(ContextKeySummarySet, set)
	setStepMetadata(state, s.ID(), "tables", len(set.Tables))
	return nil
}

// ExportStep writes the report files
type ExportStep struct {
	BaseStage
	exporter Exporter
	metrics  *infrastructure.PipelineMetrics
}

// Validate checks that an exporter is configured
func (s *ExportStep) Validate(state *OperationState) error {
	if s.exporter == nil {
		return fmt.Errorf("no exporter configured")
	}
	return nil
}

// Execute exports the summary set for the run date
func (s *ExportStep) Execute(ctx context.Context, state *OperationState) error {
	set, err := contextValue[*domain.SummarySet](state, ContextKeySummarySet)
	if err != nil {
		return NewFatalError("summary set missing", err)
	}

	var formats []domain.ReportFormat
	if v, ok := state.GetConfig(ContextKeyFormats); ok {
		formats, _ = v.([]domain.ReportFormat)
	}
	runDate := time.Now()
	if v, ok := state.GetConfig(ContextKeyRunDate); ok {
		if t, ok := v.(time.Time); ok && !t.IsZero() {
			runDate = t
		}
	}

	files, err := s.exporter.Export(ctx, set, runDate, formats)
	if err != nil {
		return err
	}

	state.SetContext(ContextKeyFiles, files)
	setStepMetadata(state, s.ID(), "files", len(files))

	perFormat := make(map[string]int)
	for _, f := range files {
		perFormat[strings.TrimPrefix(filepath.Ext(f), ".")]++
	}
	for format, count := range perFormat {
		s.metrics.RecordFiles(ctx, format, count)
	}
	return nil
}

// contextValue reads a typed value left by an earlier step
func contextValue[T any](state *OperationState, key string) (T, error) {
	var zero T
	v, ok := state.GetContext(key)
	if !ok {
		return zero, fmt.Errorf("%s not found in operation context", key)
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%s has unexpected type %T", key, v)
	}
	return typed, nil
}

func setStepMetadata(state *OperationState, stepID, key string, value interface{}) {
	if s := state.GetStep(stepID); s != nil {
		s.SetMetadata(key, value)
	}
}

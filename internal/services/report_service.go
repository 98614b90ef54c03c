package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"mpxreport/internal/config"
	"mpxreport/internal/dataprocessing"
	apperrors "mpxreport/internal/errors"
	"mpxreport/internal/files"
	"mpxreport/internal/infrastructure"
	"mpxreport/internal/operations"
	"mpxreport/pkg/contracts/domain"
)

// ReportRequest describes one report run. Empty fields fall back to the
// service defaults. A Source override must be an http(s) URL on an allowed
// host.
type ReportRequest struct {
	Source  string
	Formats []string
}

// ReportDefaults holds the values used when a request leaves them out
type ReportDefaults struct {
	Source  string
	Formats []domain.ReportFormat

	// AllowedHosts lists the hosts a request may name as its source, in
	// addition to the host of Source
	AllowedHosts []string
}

// ReportService generates outbreak reports and serves the generated files
type ReportService struct {
	manager   *operations.Manager
	discovery *files.Discovery
	defaults  ReportDefaults
	clock     config.Clock
	logger    *slog.Logger

	// running admits a single report run at a time
	running sync.Mutex
}

// NewReportService creates a report service. The manager must already hold
// the report pipeline steps.
func NewReportService(manager *operations.Manager, discovery *files.Discovery, defaults ReportDefaults, clock config.Clock, logger *slog.Logger) *ReportService {
	if clock == nil {
		clock = config.SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	if len(defaults.Formats) == 0 {
		defaults.Formats = []domain.ReportFormat{domain.ReportFormatExcel}
	}

	return &ReportService{
		manager:   manager,
		discovery: discovery,
		defaults:  defaults,
		clock:     clock,
		logger:    logger.With(slog.String("service", "report")),
	}
}

// ParseFormats converts format names into report formats. Names are
// case-insensitive and duplicates collapse; an empty list yields nil.
func ParseFormats(names []string) ([]domain.ReportFormat, error) {
	var formats []domain.ReportFormat
	seen := make(map[domain.ReportFormat]bool, len(names))

	for _, name := range names {
		format := domain.ReportFormat(strings.ToLower(strings.TrimSpace(name)))
		switch format {
		case "":
			continue
		case domain.ReportFormatExcel, domain.ReportFormatCSV:
		default:
			return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported report format %q", name)).
				WithContext("format", name)
		}
		if !seen[format] {
			seen[format] = true
			formats = append(formats, format)
		}
	}
	return formats, nil
}

// Generate runs the report pipeline once and describes the written files.
// A trace ID is attached to ctx when the caller did not set one.
func (s *ReportService) Generate(ctx context.Context, req ReportRequest) (*domain.ReportResult, error) {
	ctx = infrastructure.EnsureTraceID(ctx)

	formats, err := ParseFormats(req.Formats)
	if err != nil {
		return nil, err
	}
	if len(formats) == 0 {
		formats = s.defaults.Formats
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = s.defaults.Source
	} else if err := s.checkSourceOverride(source); err != nil {
		infrastructure.WithError(s.logger, err).WarnContext(ctx, "Report source rejected",
			slog.String("source", source))
		return nil, err
	}

	if !s.running.TryLock() {
		s.logger.WarnContext(ctx, "Report generation rejected, another run is active",
			slog.String("source", source))
		return nil, ErrOperationRunning
	}
	defer s.running.Unlock()

	now := s.clock()
	s.logger.InfoContext(ctx, "Generating report",
		slog.String("source", source),
		slog.Any("formats", formats),
		slog.Time("run_date", now))

	resp, err := s.manager.Execute(ctx, operations.OperationRequest{
		Source:  source,
		Formats: formats,
		RunDate: now,
	})
	if err != nil {
		var attrs []any
		if resp != nil {
			attrs = append(attrs, slog.String("operation_id", resp.ID), slog.String("status", string(resp.Status)))
		}
		infrastructure.WithError(s.logger, err).ErrorContext(ctx, "Report generation failed", attrs...)
		return nil, err
	}

	result := newReportResult(resp, source, now)
	s.logger.InfoContext(ctx, "Report generated",
		slog.String("operation_id", result.OperationID),
		slog.Any("files", result.Files),
		slog.Int("loaded_records", result.LoadedRecords),
		slog.Int("confirmed_records", result.ConfirmedRecords),
		slog.Duration("duration", result.Duration))

	return result, nil
}

// checkSourceOverride admits only http(s) URLs whose host is the default
// source host or listed in AllowedHosts.
func (s *ReportService) checkSourceOverride(source string) error {
	u, err := url.Parse(source)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return apperrors.NewValidationError("source must be an http(s) URL").
			WithContext("source", source)
	}

	host := strings.ToLower(u.Hostname())
	allowed := s.defaults.AllowedHosts
	if d, err := url.Parse(s.defaults.Source); err == nil && d.Hostname() != "" {
		allowed = append([]string{d.Hostname()}, allowed...)
	}
	for _, h := range allowed {
		if strings.EqualFold(strings.TrimSpace(h), host) {
			return nil
		}
	}
	return apperrors.NewValidationError(fmt.Sprintf("source host %q is not allowed", host)).
		WithContext("source", source)
}

// newReportResult reads the step outputs left in the final operation state
func newReportResult(resp *operations.OperationResponse, source string, generatedAt time.Time) *domain.ReportResult {
	result := &domain.ReportResult{
		OperationID: resp.ID,
		Source:      source,
		Files:       []string{},
		GeneratedAt: generatedAt,
		SheetRows:   make(map[string]int),
		Duration:    resp.Duration,
	}
	if resp.State == nil {
		return result
	}

	if v, ok := resp.State.GetContext(operations.ContextKeyFiles); ok {
		if paths, ok := v.([]string); ok {
			result.Files = paths
		}
	}
	if v, ok := resp.State.GetContext(operations.ContextKeyLoadStats); ok {
		if stats, ok := v.(dataprocessing.LoadStats); ok {
			result.LoadedRecords = stats.Loaded
		}
	}
	if v, ok := resp.State.GetContext(operations.ContextKeyConfirmed); ok {
		if records, ok := v.([]domain.CaseRecord); ok {
			result.ConfirmedRecords = len(records)
		}
	}
	if v, ok := resp.State.GetContext(operations.ContextKeySummarySet); ok {
		if set, ok := v.(*domain.SummarySet); ok {
			for _, table := range set.Tables {
				result.SheetRows[table.Name] = len(table.Rows)
			}
		}
	}
	return result
}

// ListReports returns the generated report files, newest first
func (s *ReportService) ListReports(ctx context.Context) ([]files.FileInfo, error) {
	reports, err := s.discovery.FindReports()
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list reports", slog.String("error", err.Error()))
		return nil, err
	}
	return reports, nil
}

// LookupReport resolves one generated report by file name
func (s *ReportService) LookupReport(ctx context.Context, name string) (files.FileInfo, error) {
	info, err := s.discovery.Lookup(name)
	if err != nil {
		s.logger.DebugContext(ctx, "Report lookup failed",
			slog.String("name", name),
			slog.String("error", err.Error()))
		return files.FileInfo{}, err
	}
	return info, nil
}

// LatestReport returns the newest generated workbook
func (s *ReportService) LatestReport(ctx context.Context) (files.FileInfo, error) {
	reports, err := s.ListReports(ctx)
	if err != nil {
		return files.FileInfo{}, err
	}
	for _, r := range reports {
		if r.Format == string(domain.ReportFormatExcel) {
			return r, nil
		}
	}
	return files.FileInfo{}, ErrNoReportsFound
}

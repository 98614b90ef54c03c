package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mpxreport/internal/config"
	apperrors "mpxreport/internal/errors"
	"mpxreport/pkg/contracts/domain"
)

// Reporter writes a summary set in every requested format under the
// report directory, naming files after the run date.
type Reporter struct {
	paths    *config.Paths
	workbook *WorkbookWriter
	csv      *CSVWriter
	logger   *slog.Logger
}

// NewReporter creates a reporter writing below paths.ReportsDir
func NewReporter(paths *config.Paths, clock config.Clock, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		paths:    paths,
		workbook: NewWorkbookWriter(clock, logger),
		csv:      NewCSVWriter(true, logger),
		logger:   logger,
	}
}

// Export writes set for the run at now and returns the written file paths.
// Formats are written in the order given; duplicates are ignored.
func (r *Reporter) Export(ctx context.Context, set *domain.SummarySet, now time.Time, formats []domain.ReportFormat) ([]string, error) {
	if len(formats) == 0 {
		formats = []domain.ReportFormat{domain.ReportFormatExcel}
	}
	if err := r.paths.EnsureDirectories(); err != nil {
		return nil, apperrors.NewStorageError("report directory is not writable", err)
	}

	var files []string
	seen := make(map[domain.ReportFormat]bool, len(formats))
	for _, format := range formats {
		if seen[format] {
			continue
		}
		seen[format] = true

		switch format {
		case domain.ReportFormatExcel:
			path := r.paths.GetReportPath(now)
			if err := r.workbook.Write(ctx, path, set); err != nil {
				removeAll(files)
				return nil, err
			}
			files = append(files, path)
		case domain.ReportFormatCSV:
			written, err := r.csv.WriteSet(ctx, set, func(sheet string) string {
				return r.paths.GetSheetCSVPath(now, sheet)
			})
			if err != nil {
				removeAll(files)
				return nil, err
			}
			files = append(files, written...)
		default:
			removeAll(files)
			return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported report format %q", format))
		}
	}

	r.logger.InfoContext(ctx, "Report exported",
		slog.String("dir", r.paths.ReportsDir),
		slog.Int("files", len(files)))
	return files, nil
}

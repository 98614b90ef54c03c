package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Clock returns the current time. It is injected wherever the run date matters.
type Clock func() time.Time

// SystemClock is the host clock
func SystemClock() time.Time {
	return time.Now()
}

// reportNamePattern matches the file names this application generates
var reportNamePattern = regexp.MustCompile(`^` + regexp.QuoteMeta(ReportFilePrefix) + `\d{4}-\d{2}-\d{2}(\.xlsx|_[A-Za-z]+\.csv)$`)

// Paths resolves the locations of generated reports
type Paths struct {
	ReportsDir string
}

// NewPaths creates Paths rooted at the given output directory.
// A relative directory is resolved against the working directory.
func NewPaths(outputDir string) (*Paths, error) {
	if strings.TrimSpace(outputDir) == "" {
		outputDir = DefaultReportsDir
	}
	abs, err := filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory %s: %w", outputDir, err)
	}
	return &Paths{ReportsDir: abs}, nil
}

// EnsureDirectories creates the reports directory if it doesn't exist
func (p *Paths) EnsureDirectories() error {
	if err := os.MkdirAll(p.ReportsDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", p.ReportsDir, err)
	}
	return nil
}

// ReportFileName returns the workbook name for the given run time
func ReportFileName(now time.Time) string {
	return ReportFilePrefix + now.Format(ReportDateLayout) + ReportFileExtension
}

// SheetCSVFileName returns the per-sheet CSV name for the given run time
func SheetCSVFileName(now time.Time, sheet string) string {
	return ReportFilePrefix + now.Format(ReportDateLayout) + "_" + sheet + ".csv"
}

// GetReportPath returns the absolute path of the workbook for the given run time
func (p *Paths) GetReportPath(now time.Time) string {
	return filepath.Join(p.ReportsDir, ReportFileName(now))
}

// GetSheetCSVPath returns the absolute path of one sheet's CSV export
func (p *Paths) GetSheetCSVPath(now time.Time, sheet string) string {
	return filepath.Join(p.ReportsDir, SheetCSVFileName(now, sheet))
}

// ResolveReport returns the path of a previously generated report file.
// Only bare names produced by this application are accepted.
func (p *Paths) ResolveReport(name string) (string, error) {
	if name != filepath.Base(name) || !IsReportFileName(name) {
		return "", fmt.Errorf("invalid report name: %q", name)
	}
	return filepath.Join(p.ReportsDir, name), nil
}

// IsReportFileName reports whether name looks like a generated report file
func IsReportFileName(name string) bool {
	return reportNamePattern.MatchString(name)
}

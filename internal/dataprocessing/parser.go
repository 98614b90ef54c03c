package dataprocessing

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	apperrors "mpxreport/internal/errors"
	"mpxreport/pkg/contracts/domain"
)

// Line-list column headers read by the Loader
const (
	HeaderID                 = "ID"
	HeaderStatus             = "Status"
	HeaderCountry            = "Country"
	HeaderGender             = "Gender"
	HeaderAge                = "Age"
	HeaderConfirmationMethod = "Confirmation_method"
	HeaderSymptoms           = "Symptoms"
	HeaderDateConfirmation   = "Date_confirmation"
	HeaderDateDeath          = "Date_death"
)

// RequiredHeaders lists the columns the line-list must contain
var RequiredHeaders = []string{
	HeaderID,
	HeaderStatus,
	HeaderCountry,
	HeaderGender,
	HeaderAge,
	HeaderConfirmationMethod,
	HeaderSymptoms,
	HeaderDateConfirmation,
	HeaderDateDeath,
}

// LoadStats summarizes one load
type LoadStats struct {
	Rows                 int `json:"rows"`
	Loaded               int `json:"loaded"`
	BlankRows            int `json:"blank_rows"`
	UnparsedConfirmDates int `json:"unparsed_confirmation_dates"`
	UnparsedDeathDates   int `json:"unparsed_death_dates"`
}

// Loader parses a CSV line-list into case records
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load reads every row of r. Only a missing header, a missing required
// column or an unreadable stream fail the load; unparseable dates become
// zero times.
func (l *Loader) Load(ctx context.Context, r io.Reader) ([]domain.CaseRecord, LoadStats, error) {
	var stats LoadStats

	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, stats, apperrors.NewParsingError("line-list is empty", nil)
	}
	if err != nil {
		return nil, stats, apperrors.NewParsingError("failed to read line-list header", err)
	}

	columns, err := mapColumns(header)
	if err != nil {
		return nil, stats, err
	}

	var records []domain.CaseRecord
	for {
		if stats.Rows%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, stats, err
			}
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return nil, stats, apperrors.NewParsingError(
					fmt.Sprintf("malformed line-list at line %d", parseErr.Line), err)
			}
			return nil, stats, apperrors.NewParsingError("failed to read line-list", err)
		}
		stats.Rows++

		if isBlankRow(row) {
			stats.BlankRows++
			continue
		}

		record := columns.record(row)
		if raw := columns.field(row, HeaderDateConfirmation); strings.TrimSpace(raw) != "" && record.DateConfirmation.IsZero() {
			stats.UnparsedConfirmDates++
		}
		if raw := columns.field(row, HeaderDateDeath); strings.TrimSpace(raw) != "" && record.DateDeath.IsZero() {
			stats.UnparsedDeathDates++
		}
		records = append(records, record)
	}
	stats.Loaded = len(records)

	l.logger.InfoContext(ctx, "Line-list loaded",
		slog.Int("rows", stats.Rows),
		slog.Int("records", stats.Loaded),
		slog.Int("blank_rows", stats.BlankRows),
		slog.Int("unparsed_confirmation_dates", stats.UnparsedConfirmDates),
		slog.Int("unparsed_death_dates", stats.UnparsedDeathDates))

	return records, stats, nil
}

// columnMap maps header names to field positions
type columnMap map[string]int

func mapColumns(header []string) (columnMap, error) {
	columns := make(columnMap, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}

	var missing []string
	for _, required := range RequiredHeaders {
		if _, ok := columns[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewParsingError(
			fmt.Sprintf("line-list is missing required columns: %s", strings.Join(missing, ", ")), nil).
			WithContext("missing", missing)
	}
	return columns, nil
}

// field returns the raw value or "" for short rows
func (c columnMap) field(row []string, name string) string {
	idx := c[name]
	if idx >= len(row) {
		return ""
	}
	return row[idx]
}

func (c columnMap) record(row []string) domain.CaseRecord {
	dateConfirmation, _ := ParseDate(c.field(row, HeaderDateConfirmation))
	dateDeath, _ := ParseDate(c.field(row, HeaderDateDeath))

	return domain.CaseRecord{
		ID:                 c.field(row, HeaderID),
		Status:             c.field(row, HeaderStatus),
		Country:            c.field(row, HeaderCountry),
		Gender:             c.field(row, HeaderGender),
		AgeRange:           c.field(row, HeaderAge),
		ConfirmationMethod: c.field(row, HeaderConfirmationMethod),
		Symptoms:           c.field(row, HeaderSymptoms),
		DateConfirmation:   dateConfirmation,
		DateDeath:          dateDeath,
	}
}

func isBlankRow(row []string) bool {
	for _, field := range row {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

var dottedDate = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{2,4})$`)

// ParseDate parses a calendar date, reading ambiguous numeric dates day
// first. The result is truncated to midnight UTC. Blank input yields the
// zero time and no error.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}

	candidates := []string{value}
	// dateparse reads dotted dates month first regardless of preference
	if m := dottedDate.FindStringSubmatch(value); m != nil {
		candidates = []string{m[2] + "." + m[1] + "." + m[3], value}
	}

	var (
		t   time.Time
		err error
	)
	for _, candidate := range candidates {
		t, err = dateparse.ParseIn(candidate, time.UTC,
			dateparse.PreferMonthFirst(false),
			dateparse.RetryAmbiguousDateWithSwap(true))
		if err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable date %q: %w", value, err)
	}

	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

package dataprocessing

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"mpxreport/internal/config"
	"mpxreport/pkg/contracts/domain"
)

// SummaryFunc computes one summary table from normalized, categorized records
type SummaryFunc func(records []domain.CaseRecord) domain.SummaryTable

// Summaries lists the report's summary computations keyed by sheet name,
// in SheetOrder.
var Summaries = []struct {
	Sheet string
	Build SummaryFunc
}{
	{domain.SheetDaysCases, DailyConfirmed},
	{domain.SheetCountriesCases, CountryConfirmed},
	{domain.SheetCountriesOnDays, CountryDateCrossTab},
	{domain.SheetGender, CountByGender},
	{domain.SheetAge, CountByAgeBucket},
	{domain.SheetGenderAge, CrossTabGenderAge},
	{domain.SheetSymptoms, SymptomFrequency},
	{domain.SheetMethodics, CountByConfirmationMethod},
	{domain.SheetDeathDays, DailyDeaths},
	{domain.SheetDeathCountries, CountryDeaths},
}

// Aggregator runs every summary over the same record set
type Aggregator struct {
	parallel bool
	logger   *slog.Logger
}

// NewAggregator creates an aggregator. With parallel set the summaries run
// concurrently; they share the record slice read-only.
func NewAggregator(parallel bool, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{parallel: parallel, logger: logger}
}

// Summarize computes all report tables
func (a *Aggregator) Summarize(ctx context.Context, records []domain.CaseRecord) (*domain.SummarySet, error) {
	start := time.Now()
	tables := make([]domain.SummaryTable, len(Summaries))

	g, gctx := errgroup.WithContext(ctx)
	if !a.parallel {
		g.SetLimit(1)
	}
	for i, s := range Summaries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			table := s.Build(records)
			table.Name = s.Sheet
			tables[i] = table
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	set := &domain.SummarySet{Tables: tables}
	if err := set.Validate(); err != nil {
		return nil, err
	}

	a.logger.InfoContext(ctx, "Summaries computed",
		slog.Int("records", len(records)),
		slog.Int("tables", len(tables)),
		slog.Bool("parallel", a.parallel),
		slog.Duration("elapsed", time.Since(start)))

	return set, nil
}

// keyCount is one group of a group-by count
type keyCount struct {
	key   string
	count int
}

// countBy groups records by key, skipping records for which key reports
// false. Groups come out by count descending, ties by key ascending.
func countBy(records []domain.CaseRecord, key func(domain.CaseRecord) (string, bool)) []keyCount {
	counts := make(map[string]int)
	for _, r := range records {
		if k, ok := key(r); ok {
			counts[k]++
		}
	}
	return sortedCounts(counts)
}

func sortedCounts(counts map[string]int) []keyCount {
	groups := make([]keyCount, 0, len(counts))
	for k, c := range counts {
		groups = append(groups, keyCount{key: k, count: c})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].key < groups[j].key
	})
	return groups
}

// countTable renders groups as a two-column key/count table
func countTable(keyColumn, countColumn string, indexed bool, groups []keyCount) domain.SummaryTable {
	rows := make([][]interface{}, len(groups))
	for i, g := range groups {
		rows[i] = []interface{}{g.key, g.count}
	}
	return domain.SummaryTable{
		Columns: []string{keyColumn, countColumn},
		Rows:    rows,
		Indexed: indexed,
	}
}

func nonEmpty(value string) (string, bool) {
	return value, value != ""
}

func formatDate(t time.Time) string {
	return t.Format(config.ReportDateLayout)
}

// calendarDay drops the time of day, keeping the date as written
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CountByGender counts confirmed cases per gender
func CountByGender(records []domain.CaseRecord) domain.SummaryTable {
	groups := countBy(records, func(r domain.CaseRecord) (string, bool) {
		return r.Gender, true
	})
	return countTable(domain.ColumnGender, domain.ColumnIDCount, true, groups)
}

// CountByAgeBucket counts confirmed cases per age bucket
func CountByAgeBucket(records []domain.CaseRecord) domain.SummaryTable {
	groups := countBy(records, func(r domain.CaseRecord) (string, bool) {
		return bucketOf(r).String(), true
	})
	return countTable(domain.ColumnAgeCategory, domain.ColumnIDCount, true, groups)
}

func bucketOf(r domain.CaseRecord) domain.AgeBucket {
	if r.AgeBucket == "" {
		return domain.AgeNone
	}
	return r.AgeBucket
}

// CrossTabGenderAge counts cases per gender and age bucket. Rows are
// genders ascending, columns the buckets present ascending; absent
// combinations are 0.
func CrossTabGenderAge(records []domain.CaseRecord) domain.SummaryTable {
	cells := make(map[string]map[string]int)
	bucketSet := make(map[string]bool)
	for _, r := range records {
		bucket := bucketOf(r).String()
		if cells[r.Gender] == nil {
			cells[r.Gender] = make(map[string]int)
		}
		cells[r.Gender][bucket]++
		bucketSet[bucket] = true
	}

	buckets := sortedKeys(bucketSet)
	genders := make([]string, 0, len(cells))
	for g := range cells {
		genders = append(genders, g)
	}
	sort.Strings(genders)

	rows := make([][]interface{}, len(genders))
	for i, g := range genders {
		row := make([]interface{}, 0, len(buckets)+1)
		row = append(row, g)
		for _, b := range buckets {
			row = append(row, cells[g][b])
		}
		rows[i] = row
	}

	return domain.SummaryTable{
		Columns: append([]string{domain.ColumnGender}, buckets...),
		Rows:    rows,
		Indexed: true,
	}
}

// CountByConfirmationMethod counts cases per confirmation method
func CountByConfirmationMethod(records []domain.CaseRecord) domain.SummaryTable {
	groups := countBy(records, func(r domain.CaseRecord) (string, bool) {
		return nonEmpty(r.ConfirmationMethod)
	})
	return countTable(domain.ColumnConfirmationMethod, domain.ColumnIDCount, true, groups)
}

// SymptomFrequency counts every symptom phrase across all cases. A phrase
// listed twice by one case counts twice.
func SymptomFrequency(records []domain.CaseRecord) domain.SummaryTable {
	counts := make(map[string]int)
	for _, r := range records {
		for _, phrase := range SplitSymptoms(r.SymptomsNormalized) {
			counts[phrase]++
		}
	}
	return countTable(domain.ColumnSymptom, domain.ColumnFrequency, false, sortedCounts(counts))
}

// DailyConfirmed counts cases per confirmation day, newest first. Days
// without cases are not listed.
func DailyConfirmed(records []domain.CaseRecord) domain.SummaryTable {
	return dailyTable(domain.ColumnDateConfirmation, records, func(r domain.CaseRecord) time.Time {
		return r.DateConfirmation
	})
}

// DailyDeaths counts deaths per day, newest first
func DailyDeaths(records []domain.CaseRecord) domain.SummaryTable {
	return dailyTable(domain.ColumnDateDeath, records, func(r domain.CaseRecord) time.Time {
		return r.DateDeath
	})
}

func dailyTable(column string, records []domain.CaseRecord, date func(domain.CaseRecord) time.Time) domain.SummaryTable {
	counts := make(map[string]int)
	for _, r := range records {
		if d := date(r); !d.IsZero() {
			counts[formatDate(d)]++
		}
	}

	days := make([]string, 0, len(counts))
	for d := range counts {
		days = append(days, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))

	rows := make([][]interface{}, len(days))
	for i, d := range days {
		rows[i] = []interface{}{d, counts[d]}
	}
	return domain.SummaryTable{
		Columns: []string{column, domain.ColumnIDCount},
		Rows:    rows,
		Indexed: true,
	}
}

// CountryConfirmed counts cases per country
func CountryConfirmed(records []domain.CaseRecord) domain.SummaryTable {
	groups := countBy(records, func(r domain.CaseRecord) (string, bool) {
		return nonEmpty(r.Country)
	})
	return countTable(domain.ColumnCountry, domain.ColumnIDCount, true, groups)
}

// CountryDeaths counts cases with a death date per country
func CountryDeaths(records []domain.CaseRecord) domain.SummaryTable {
	groups := countBy(records, func(r domain.CaseRecord) (string, bool) {
		if !r.HasDeathDate() {
			return "", false
		}
		return nonEmpty(r.Country)
	})
	return countTable(domain.ColumnCountry, domain.ColumnIDCount, true, groups)
}

// CountryDateCrossTab builds per-country daily and cumulative confirmation
// series over every day between the first and last confirmation. Columns
// are {country}_cumulative and {country}_on_day sorted by name; rows are
// days, newest first.
func CountryDateCrossTab(records []domain.CaseRecord) domain.SummaryTable {
	countrySet := make(map[string]bool)
	perDay := make(map[string]map[string]int)
	var first, last time.Time

	for _, r := range records {
		if r.Country == "" {
			continue
		}
		countrySet[r.Country] = true
		if !r.HasConfirmationDate() {
			continue
		}
		d := calendarDay(r.DateConfirmation)
		key := formatDate(d)
		if perDay[key] == nil {
			perDay[key] = make(map[string]int)
		}
		perDay[key][r.Country]++
		if first.IsZero() || d.Before(first) {
			first = d
		}
		if last.IsZero() || d.After(last) {
			last = d
		}
	}

	countries := sortedKeys(countrySet)
	columns := make([]string, 0, 2*len(countries))
	for _, c := range countries {
		columns = append(columns, c+domain.SuffixCumulative, c+domain.SuffixOnDay)
	}
	sort.Strings(columns)

	position := make(map[string]int, len(columns))
	for i, name := range columns {
		position[name] = i + 1
	}

	table := domain.SummaryTable{
		Columns: append([]string{domain.ColumnDateConfirmation}, columns...),
		Indexed: true,
	}
	if first.IsZero() {
		table.Rows = [][]interface{}{}
		return table
	}

	running := make(map[string]int, len(countries))
	var ascending [][]interface{}
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		key := formatDate(d)
		row := make([]interface{}, len(table.Columns))
		row[0] = key
		for _, c := range countries {
			onDay := perDay[key][c]
			running[c] += onDay
			row[position[c+domain.SuffixOnDay]] = onDay
			row[position[c+domain.SuffixCumulative]] = running[c]
		}
		ascending = append(ascending, row)
	}

	table.Rows = make([][]interface{}, len(ascending))
	for i, row := range ascending {
		table.Rows[len(ascending)-1-i] = row
	}
	return table
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

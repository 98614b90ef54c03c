package dataprocessing

import (
	"context"
	"log/slog"

	"mpxreport/pkg/contracts/domain"
)

// AgeTableVersion identifies the age label lookup in use. Any change to
// ageTableV1 must ship as a new version.
const AgeTableVersion = "v1"

var ageTableV1 = map[string]domain.AgeBucket{
	// till_18
	"15-19": domain.AgeTill18,
	"10-14": domain.AgeTill18,
	"5-9":   domain.AgeTill18,
	"0-5":   domain.AgeTill18,

	// from_18_till_60
	"20-44": domain.AgeFrom18Till60,
	"30-59": domain.AgeFrom18Till60,
	"40-44": domain.AgeFrom18Till60,
	"25-29": domain.AgeFrom18Till60,
	"20-59": domain.AgeFrom18Till60,
	"30-34": domain.AgeFrom18Till60,
	"20-64": domain.AgeFrom18Till60,
	"40-49": domain.AgeFrom18Till60,
	"30-39": domain.AgeFrom18Till60,
	"15-74": domain.AgeFrom18Till60,
	"35-39": domain.AgeFrom18Till60,
	"50-59": domain.AgeFrom18Till60,
	"<40":   domain.AgeFrom18Till60,
	"55-59": domain.AgeFrom18Till60,
	"45-49": domain.AgeFrom18Till60,
	"20-24": domain.AgeFrom18Till60,
	"30-50": domain.AgeFrom18Till60,
	"50-54": domain.AgeFrom18Till60,
	"15-64": domain.AgeFrom18Till60,
	"25-49": domain.AgeFrom18Till60,
	"40-45": domain.AgeFrom18Till60,
	"26-54": domain.AgeFrom18Till60,
	"22-55": domain.AgeFrom18Till60,
	"30-54": domain.AgeFrom18Till60,
	"30-49": domain.AgeFrom18Till60,
	"20-29": domain.AgeFrom18Till60,
	"40-42": domain.AgeFrom18Till60,
	"15-69": domain.AgeFrom18Till60,
	"20-50": domain.AgeFrom18Till60,
	"45-50": domain.AgeFrom18Till60,
	"35-40": domain.AgeFrom18Till60,
	"50-55": domain.AgeFrom18Till60,
	"20-69": domain.AgeFrom18Till60,
	"34-46": domain.AgeFrom18Till60,
	"20-62": domain.AgeFrom18Till60,

	// from_60
	"70-74": domain.AgeFrom60,
	"60-64": domain.AgeFrom60,
	"65-69": domain.AgeFrom60,
}

// AgeTable maps raw age-range labels to age buckets
type AgeTable struct {
	version string
	buckets map[string]domain.AgeBucket
}

// AgeTableV1 returns the v1 age label lookup
func AgeTableV1() AgeTable {
	return AgeTable{version: AgeTableVersion, buckets: ageTableV1}
}

// Version returns the table version
func (t AgeTable) Version() string {
	return t.version
}

// Len returns the number of known labels
func (t AgeTable) Len() int {
	return len(t.buckets)
}

// Lookup returns the bucket of an exact label
func (t AgeTable) Lookup(label string) (domain.AgeBucket, bool) {
	bucket, ok := t.buckets[label]
	return bucket, ok
}

// CategorizeStats counts records per resulting bucket
type CategorizeStats struct {
	Buckets  map[domain.AgeBucket]int `json:"buckets"`
	Unmapped int                      `json:"unmapped"`
}

// Categorizer assigns each record an age bucket
type Categorizer struct {
	table  AgeTable
	logger *slog.Logger
}

// NewCategorizer creates a categorizer using table
func NewCategorizer(table AgeTable, logger *slog.Logger) *Categorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Categorizer{table: table, logger: logger}
}

// Bucket maps a raw age label to its bucket; unknown and missing labels
// map to "none".
func (c *Categorizer) Bucket(label string) domain.AgeBucket {
	if bucket, ok := c.table.Lookup(label); ok {
		return bucket
	}
	return domain.AgeNone
}

// Categorize returns a copy of records with AgeBucket attached
func (c *Categorizer) Categorize(ctx context.Context, records []domain.CaseRecord) ([]domain.CaseRecord, CategorizeStats) {
	stats := CategorizeStats{Buckets: make(map[domain.AgeBucket]int, 4)}
	out := make([]domain.CaseRecord, len(records))

	for i, record := range records {
		record.AgeBucket = c.Bucket(record.AgeRange)
		if record.AgeBucket == domain.AgeNone && record.AgeRange != "" {
			stats.Unmapped++
		}
		stats.Buckets[record.AgeBucket]++
		out[i] = record
	}

	c.logger.InfoContext(ctx, "Age buckets assigned",
		slog.String("age_table", c.table.Version()),
		slog.Int("records", len(out)),
		slog.Int("unmapped_labels", stats.Unmapped),
		slog.Int("none", stats.Buckets[domain.AgeNone]))

	return out, stats
}

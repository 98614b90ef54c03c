package dataprocessing

import (
	"context"
	"log/slog"
	"strings"

	"mpxreport/pkg/contracts/domain"
)

// GreatBritain is the label UK constituent countries are collapsed into
const GreatBritain = "Great Britain"

// SymptomSeparator splits a normalized symptom list into phrases
const SymptomSeparator = ", "

// Substitution replaces every occurrence of From with To
type Substitution struct {
	From string
	To   string
}

// NormalizationRules holds the fixed cleanup tables applied by the Normalizer
type NormalizationRules struct {
	// CountryAlias replaces the matching labels below
	CountryAlias string
	// ExactCountries match the whole label
	ExactCountries []string
	// SuffixCountries match the end of the label
	SuffixCountries []string
	// SymptomSubstitutions apply in order to the lowercased symptom text
	SymptomSubstitutions []Substitution
}

// DefaultNormalizationRules returns the outbreak report cleanup rules
func DefaultNormalizationRules() NormalizationRules {
	return NormalizationRules{
		CountryAlias:    GreatBritain,
		ExactCountries:  []string{"England", "Scotland", "Wales", "Gibraltar"},
		SuffixCountries: []string{"Northern Ireland"},
		SymptomSubstitutions: []Substitution{
			{From: ";", To: ","},
			{From: "headaches", To: "headache"},
			{From: "itching", To: "itch"},
			{From: "muscle aches", To: "muscle pain"},
			{From: "rashes", To: "rash"},
			{From: "vasicular", To: "vesicular"},
			{From: "outbreak on the skin, hands, and chest", To: "outbreak on the skin and hands and chest"},
		},
	}
}

// NormalizeStats summarizes one normalization pass
type NormalizeStats struct {
	Input           int `json:"input"`
	Confirmed       int `json:"confirmed"`
	Aliased         int `json:"aliased"`
	MissingGender   int `json:"missing_gender"`
	MissingSymptoms int `json:"missing_symptoms"`
}

// Normalizer cleans categorical fields and keeps confirmed cases only
type Normalizer struct {
	rules  NormalizationRules
	logger *slog.Logger
}

// NewNormalizer creates a normalizer for the given rules
func NewNormalizer(rules NormalizationRules, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{rules: rules, logger: logger}
}

// Normalize returns a new record set holding only confirmed cases with
// gender, country and symptoms cleaned. The input slice is not modified.
func (n *Normalizer) Normalize(ctx context.Context, records []domain.CaseRecord) ([]domain.CaseRecord, NormalizeStats) {
	stats := NormalizeStats{Input: len(records)}
	out := make([]domain.CaseRecord, 0, len(records))

	for _, record := range records {
		record.Gender = n.NormalizeGender(record.Gender)

		country := n.AliasCountry(record.Country)
		if country != record.Country {
			stats.Aliased++
		}
		record.Country = country

		if !record.IsConfirmed() {
			continue
		}

		if record.Gender == domain.GenderNone {
			stats.MissingGender++
		}
		record.SymptomsNormalized = n.NormalizeSymptoms(record.Symptoms)
		if record.SymptomsNormalized == "" {
			stats.MissingSymptoms++
		}
		out = append(out, record)
	}
	stats.Confirmed = len(out)

	n.logger.InfoContext(ctx, "Records normalized",
		slog.Int("input", stats.Input),
		slog.Int("confirmed", stats.Confirmed),
		slog.Int("aliased_countries", stats.Aliased),
		slog.Int("missing_gender", stats.MissingGender),
		slog.Int("missing_symptoms", stats.MissingSymptoms))

	return out, stats
}

// NormalizeGender trims and lowercases gender, mapping a missing value to
// the "none" sentinel.
func (n *Normalizer) NormalizeGender(gender string) string {
	gender = strings.ToLower(strings.TrimSpace(gender))
	if gender == "" {
		return domain.GenderNone
	}
	return gender
}

// AliasCountry rewrites UK constituent country labels to the alias
func (n *Normalizer) AliasCountry(country string) string {
	for _, exact := range n.rules.ExactCountries {
		if country == exact {
			return n.rules.CountryAlias
		}
	}
	for _, suffix := range n.rules.SuffixCountries {
		if strings.HasSuffix(country, suffix) {
			return n.rules.CountryAlias
		}
	}
	return country
}

// NormalizeSymptoms lowercases the symptom text and applies the
// substitution table in order, then trims surrounding whitespace.
func (n *Normalizer) NormalizeSymptoms(symptoms string) string {
	text := strings.ToLower(symptoms)
	for _, sub := range n.rules.SymptomSubstitutions {
		text = strings.ReplaceAll(text, sub.From, sub.To)
	}
	return strings.TrimSpace(text)
}

// SplitSymptoms splits a normalized symptom list into phrases. Empty
// phrases are dropped.
func SplitSymptoms(normalized string) []string {
	if normalized == "" {
		return nil
	}
	parts := strings.Split(normalized, SymptomSeparator)
	phrases := parts[:0]
	for _, p := range parts {
		if p != "" {
			phrases = append(phrases, p)
		}
	}
	return phrases
}

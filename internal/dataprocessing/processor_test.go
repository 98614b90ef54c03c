package dataprocessing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpxreport/pkg/contracts/domain"
)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(DefaultNormalizationRules(), nil)
}

func TestNormalizer_NormalizeGender(t *testing.T) {
	n := newTestNormalizer()
	tests := map[string]string{
		"male":    "male",
		"Male ":   "male",
		" FEMALE": "female",
		"":        domain.GenderNone,
		"   ":     domain.GenderNone,
		"Other":   "other",
	}
	for input, want := range tests {
		assert.Equal(t, want, n.NormalizeGender(input), "input %q", input)
	}
}

func TestNormalizer_AliasCountry(t *testing.T) {
	n := newTestNormalizer()
	tests := []struct {
		input string
		want  string
	}{
		{"England", GreatBritain},
		{"Scotland", GreatBritain},
		{"Wales", GreatBritain},
		{"Gibraltar", GreatBritain},
		{"Northern Ireland", GreatBritain},
		{"United Kingdom of Great Britain and Northern Ireland", GreatBritain},
		{"New England", "New England"},
		{"england", "england"},
		{"Northern Ireland (UK)", "Northern Ireland (UK)"},
		{"Portugal", "Portugal"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, n.AliasCountry(tt.input))
		})
	}
}

func TestNormalizer_NormalizeSymptoms(t *testing.T) {
	n := newTestNormalizer()
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"semicolons and plurals", "Fever; Headaches, Rash", "fever, headache, rash"},
		{"itching", "Itching", "itch"},
		{"muscle aches", "Muscle aches, fatigue", "muscle pain, fatigue"},
		{"rashes", "Rashes", "rash"},
		{"misspelling", "Vasicular lesions", "vesicular lesions"},
		{"outbreak phrase", "Outbreak on the skin, hands, and chest", "outbreak on the skin and hands and chest"},
		{"outbreak phrase with semicolons", "outbreak on the skin; hands; and chest", "outbreak on the skin and hands and chest"},
		{"trimmed", "  fever  ", "fever"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.NormalizeSymptoms(tt.input))
		})
	}
}

func TestSplitSymptoms(t *testing.T) {
	assert.Equal(t, []string{"fever", "headache", "rash"}, SplitSymptoms("fever, headache, rash"))
	assert.Equal(t, []string{"fever", "fever"}, SplitSymptoms("fever, fever"))
	assert.Equal(t, []string{"fever,rash"}, SplitSymptoms("fever,rash"))
	assert.Equal(t, []string{"a", "b"}, SplitSymptoms("a, , b"))
	assert.Nil(t, SplitSymptoms(""))
}

func TestNormalizer_Normalize(t *testing.T) {
	input := []domain.CaseRecord{
		{ID: "1", Status: "confirmed", Country: "England", Gender: " Male", Symptoms: "Fever; Headaches, Rash"},
		{ID: "2", Status: "suspected", Country: "Wales", Gender: "female"},
		{ID: "3", Status: "Confirmed", Country: "France", Gender: "male"},
		{ID: "4", Status: "confirmed", Country: "Gibraltar", Gender: ""},
		{ID: "5", Status: "discarded", Country: "Spain"},
	}
	original := make([]domain.CaseRecord, len(input))
	copy(original, input)

	out, stats := newTestNormalizer().Normalize(context.Background(), input)

	require.Len(t, out, 2)
	assert.Equal(t, "1", out[0].ID)
	assert.Equal(t, "male", out[0].Gender)
	assert.Equal(t, GreatBritain, out[0].Country)
	assert.Equal(t, "fever, headache, rash", out[0].SymptomsNormalized)
	assert.Equal(t, "Fever; Headaches, Rash", out[0].Symptoms)

	assert.Equal(t, "4", out[1].ID)
	assert.Equal(t, domain.GenderNone, out[1].Gender)
	assert.Equal(t, GreatBritain, out[1].Country)

	assert.Equal(t, original, input, "input must not be modified")
	assert.Equal(t, NormalizeStats{Input: 5, Confirmed: 2, Aliased: 3, MissingGender: 1, MissingSymptoms: 1}, stats)
}

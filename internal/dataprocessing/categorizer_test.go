package dataprocessing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpxreport/pkg/contracts/domain"
)

func TestAgeTableV1(t *testing.T) {
	table := AgeTableV1()
	assert.Equal(t, AgeTableVersion, table.Version())
	assert.Equal(t, 42, table.Len())

	counts := make(map[domain.AgeBucket]int)
	for _, bucket := range ageTableV1 {
		counts[bucket]++
	}
	assert.Equal(t, 4, counts[domain.AgeTill18])
	assert.Equal(t, 35, counts[domain.AgeFrom18Till60])
	assert.Equal(t, 3, counts[domain.AgeFrom60])
	assert.Zero(t, counts[domain.AgeNone])
}

func TestCategorizer_Bucket(t *testing.T) {
	c := NewCategorizer(AgeTableV1(), nil)
	tests := []struct {
		label string
		want  domain.AgeBucket
	}{
		{"0-5", domain.AgeTill18},
		{"15-19", domain.AgeTill18},
		{"20-44", domain.AgeFrom18Till60},
		{"<40", domain.AgeFrom18Till60},
		{"15-74", domain.AgeFrom18Till60},
		{"20-62", domain.AgeFrom18Till60},
		{"60-64", domain.AgeFrom60},
		{"70-74", domain.AgeFrom60},
		{"99-150", domain.AgeNone},
		{"20-44 ", domain.AgeNone},
		{"", domain.AgeNone},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Bucket(tt.label))
		})
	}
}

func TestCategorizer_Categorize(t *testing.T) {
	input := []domain.CaseRecord{
		{ID: "1", AgeRange: "20-44"},
		{ID: "2", AgeRange: "99-150"},
		{ID: "3"},
		{ID: "4", AgeRange: "65-69"},
	}

	out, stats := NewCategorizer(AgeTableV1(), nil).Categorize(context.Background(), input)
	require.Len(t, out, 4)
	assert.Equal(t, domain.AgeFrom18Till60, out[0].AgeBucket)
	assert.Equal(t, domain.AgeNone, out[1].AgeBucket)
	assert.Equal(t, domain.AgeNone, out[2].AgeBucket)
	assert.Equal(t, domain.AgeFrom60, out[3].AgeBucket)

	for _, r := range input {
		assert.Empty(t, r.AgeBucket, "input must not be modified")
	}
	assert.Equal(t, 1, stats.Unmapped)
	assert.Equal(t, 2, stats.Buckets[domain.AgeNone])
}

package dataprocessing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpxreport/internal/shared/testutil"
	"mpxreport/pkg/contracts/domain"
)

// runPipeline takes a line-list through every stage
func runPipeline(t *testing.T, csv string, parallel bool) *domain.SummarySet {
	t.Helper()
	ctx := context.Background()

	records, _, err := NewLoader(nil).Load(ctx, strings.NewReader(csv))
	require.NoError(t, err)
	confirmed, _ := NewNormalizer(DefaultNormalizationRules(), nil).Normalize(ctx, records)
	categorized, _ := NewCategorizer(AgeTableV1(), nil).Categorize(ctx, confirmed)

	set, err := NewAggregator(parallel, nil).Summarize(ctx, categorized)
	require.NoError(t, err)
	return set
}

func mustTable(t *testing.T, set *domain.SummarySet, name string) domain.SummaryTable {
	t.Helper()
	table, ok := set.Table(name)
	require.True(t, ok, "missing table %s", name)
	return table
}

func rows(pairs ...interface{}) [][]interface{} {
	var out [][]interface{}
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, []interface{}{pairs[i], pairs[i+1]})
	}
	return out
}

func sumColumn(t *testing.T, table domain.SummaryTable, column string) int {
	t.Helper()
	idx := table.ColumnIndex(column)
	require.GreaterOrEqual(t, idx, 0)
	total := 0
	for _, row := range table.Rows {
		total += row[idx].(int)
	}
	return total
}

func TestSummarize_Fixture(t *testing.T) {
	set := runPipeline(t, testutil.LineListCSV, true)
	require.NoError(t, set.Validate())
	require.Len(t, set.Tables, len(domain.SheetOrder))

	tests := []struct {
		sheet   string
		columns []string
		rows    [][]interface{}
		indexed bool
	}{
		{
			sheet:   domain.SheetGender,
			columns: []string{"Gender", "ID_count"},
			rows:    rows("male", 3, "female", 2, "none", 1),
			indexed: true,
		},
		{
			sheet:   domain.SheetAge,
			columns: []string{"age_category", "ID_count"},
			rows:    rows("from_18_till_60", 2, "none", 2, "from_60", 1, "till_18", 1),
			indexed: true,
		},
		{
			sheet:   domain.SheetMethodics,
			columns: []string{"Confirmation_method", "ID_count"},
			rows:    rows("RT-PCR", 4, "Sequencing", 1),
			indexed: true,
		},
		{
			sheet:   domain.SheetSymptoms,
			columns: []string{"symptom", "freq"},
			rows: rows("rash", 3, "fever", 2, "headache", 1, "itch", 1,
				"muscle pain", 1, "vesicular rash", 1),
		},
		{
			sheet:   domain.SheetDaysCases,
			columns: []string{"Date_confirmation", "ID_count"},
			rows:    rows("2022-06-01", 1, "2022-05-20", 2, "2022-05-18", 2),
			indexed: true,
		},
		{
			sheet:   domain.SheetCountriesCases,
			columns: []string{"Country", "ID_count"},
			rows:    rows("Great Britain", 3, "Portugal", 2, "Spain", 1),
			indexed: true,
		},
		{
			sheet:   domain.SheetDeathDays,
			columns: []string{"Date_death", "ID_count"},
			rows:    rows("2022-06-02", 1, "2022-05-25", 1),
			indexed: true,
		},
		{
			sheet:   domain.SheetDeathCountries,
			columns: []string{"Country", "ID_count"},
			rows:    rows("Great Britain", 1, "Portugal", 1),
			indexed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.sheet, func(t *testing.T) {
			table := mustTable(t, set, tt.sheet)
			assert.Equal(t, tt.sheet, table.Name)
			assert.Equal(t, tt.columns, table.Columns)
			assert.Equal(t, tt.rows, table.Rows)
			assert.Equal(t, tt.indexed, table.Indexed)
		})
	}
}

func TestSummarize_GenderAgeCrossTab(t *testing.T) {
	set := runPipeline(t, testutil.LineListCSV, true)
	table := mustTable(t, set, domain.SheetGenderAge)

	assert.Equal(t, []string{"Gender", "from_18_till_60", "from_60", "none", "till_18"}, table.Columns)
	assert.Equal(t, [][]interface{}{
		{"female", 0, 0, 1, 1},
		{"male", 2, 1, 0, 0},
		{"none", 0, 0, 1, 0},
	}, table.Rows)
}

func TestSummarize_CountryDateCrossTab(t *testing.T) {
	set := runPipeline(t, testutil.LineListCSV, true)
	table := mustTable(t, set, domain.SheetCountriesOnDays)

	assert.Equal(t, []string{
		"Date_confirmation",
		"Great Britain_cumulative", "Great Britain_on_day",
		"Portugal_cumulative", "Portugal_on_day",
		"Spain_cumulative", "Spain_on_day",
	}, table.Columns)

	// 2022-05-18 through 2022-06-01, newest first
	require.Len(t, table.Rows, 15)
	assert.Equal(t, []interface{}{"2022-06-01", 3, 1, 2, 0, 0, 0}, table.Rows[0])
	assert.Equal(t, []interface{}{"2022-05-21", 2, 0, 2, 0, 0, 0}, table.Rows[11])
	assert.Equal(t, []interface{}{"2022-05-20", 2, 0, 2, 2, 0, 0}, table.Rows[12])
	assert.Equal(t, []interface{}{"2022-05-19", 2, 0, 0, 0, 0, 0}, table.Rows[13])
	assert.Equal(t, []interface{}{"2022-05-18", 2, 2, 0, 0, 0, 0}, table.Rows[14])
}

func TestSummarize_Properties(t *testing.T) {
	set := runPipeline(t, testutil.LineListCSV, true)
	confirmed := testutil.LineListConfirmedRecords

	t.Run("count conservation", func(t *testing.T) {
		assert.Equal(t, confirmed, sumColumn(t, mustTable(t, set, domain.SheetGender), domain.ColumnIDCount))
		assert.Equal(t, confirmed, sumColumn(t, mustTable(t, set, domain.SheetAge), domain.ColumnIDCount))
	})

	t.Run("cross-tab completeness", func(t *testing.T) {
		table := mustTable(t, set, domain.SheetGenderAge)
		total := 0
		for _, row := range table.Rows {
			for _, cell := range row[1:] {
				total += cell.(int)
			}
		}
		assert.Equal(t, confirmed, total)
	})

	t.Run("cumulative monotonicity", func(t *testing.T) {
		table := mustTable(t, set, domain.SheetCountriesOnDays)
		for col, name := range table.Columns {
			if !strings.HasSuffix(name, domain.SuffixCumulative) {
				continue
			}
			// rows are newest first, so walk backwards
			prev := 0
			for i := len(table.Rows) - 1; i >= 0; i-- {
				v := table.Rows[i][col].(int)
				assert.GreaterOrEqual(t, v, prev, "column %s row %d", name, i)
				prev = v
			}
		}
	})

	t.Run("cumulative equals on-day running sum", func(t *testing.T) {
		table := mustTable(t, set, domain.SheetCountriesOnDays)
		for _, country := range []string{"Great Britain", "Portugal", "Spain"} {
			cum := table.ColumnIndex(country + domain.SuffixCumulative)
			onDay := table.ColumnIndex(country + domain.SuffixOnDay)
			running := 0
			for i := len(table.Rows) - 1; i >= 0; i-- {
				running += table.Rows[i][onDay].(int)
				assert.Equal(t, running, table.Rows[i][cum])
			}
		}
	})

	t.Run("status filter", func(t *testing.T) {
		_, ok := mustTable(t, set, domain.SheetCountriesCases).Lookup("Germany")
		assert.False(t, ok)
		_, ok = mustTable(t, set, domain.SheetDaysCases).Lookup("2022-05-19")
		assert.False(t, ok)
		assert.Equal(t, 0, sumColumn(t, mustTable(t, set, domain.SheetCountriesOnDays), "Spain_on_day"))
	})
}

func TestSummarize_Idempotent(t *testing.T) {
	first := runPipeline(t, testutil.LineListCSV, true)
	second := runPipeline(t, testutil.LineListCSV, true)
	sequential := runPipeline(t, testutil.LineListCSV, false)

	assert.Equal(t, first, second)
	assert.Equal(t, first, sequential)
}

func TestSummarize_SymptomTokenization(t *testing.T) {
	csv := "ID,Status,Country,Gender,Age,Confirmation_method,Symptoms,Date_confirmation,Date_death\n" +
		"1,confirmed,France,male,20-44,RT-PCR,\"Fever; Headaches, Rash\",,\n"
	table := mustTable(t, runPipeline(t, csv, false), domain.SheetSymptoms)

	assert.Equal(t, rows("fever", 1, "headache", 1, "rash", 1), table.Rows)
}

func TestSummarize_RepeatedSymptomCountsTwice(t *testing.T) {
	table := SymptomFrequency([]domain.CaseRecord{
		{ID: "1", SymptomsNormalized: "fever, fever, rash"},
		{ID: "2"},
	})
	assert.Equal(t, rows("fever", 2, "rash", 1), table.Rows)
}

func TestSummarize_AgeFallbackKeepsRecord(t *testing.T) {
	csv := "ID,Status,Country,Gender,Age,Confirmation_method,Symptoms,Date_confirmation,Date_death\n" +
		"1,confirmed,France,male,99-150,RT-PCR,,,\n"
	set := runPipeline(t, csv, false)

	assert.Equal(t, rows("none", 1), mustTable(t, set, domain.SheetAge).Rows)
	assert.Equal(t, rows("France", 1), mustTable(t, set, domain.SheetCountriesCases).Rows)
}

func TestSummarize_EmptyInput(t *testing.T) {
	csv := "ID,Status,Country,Gender,Age,Confirmation_method,Symptoms,Date_confirmation,Date_death\n" +
		"1,suspected,France,male,20-44,RT-PCR,fever,20/05/2022,\n"
	set := runPipeline(t, csv, true)

	require.NoError(t, set.Validate())
	for _, table := range set.Tables {
		assert.Empty(t, table.Rows, table.Name)
		assert.NotEmpty(t, table.Columns, table.Name)
	}
	assert.Equal(t, []string{"Date_confirmation"}, mustTable(t, set, domain.SheetCountriesOnDays).Columns)
}

func TestCountryDateCrossTab_CountryWithoutDates(t *testing.T) {
	d := time.Date(2022, 7, 1, 0, 0, 0, 0, time.UTC)
	table := CountryDateCrossTab([]domain.CaseRecord{
		{ID: "1", Country: "Peru", DateConfirmation: d},
		{ID: "2", Country: "Chile"},
		{ID: "3", DateConfirmation: d.AddDate(0, 0, 5)},
	})

	assert.Equal(t, []string{"Date_confirmation", "Chile_cumulative", "Chile_on_day", "Peru_cumulative", "Peru_on_day"}, table.Columns)
	assert.Equal(t, [][]interface{}{{"2022-07-01", 0, 0, 1, 1}}, table.Rows)
}

func TestCountByGender_TieBreak(t *testing.T) {
	table := CountByGender([]domain.CaseRecord{
		{ID: "1", Gender: "male"},
		{ID: "2", Gender: "female"},
		{ID: "3", Gender: "other"},
		{ID: "4", Gender: "male"},
	})
	assert.Equal(t, rows("male", 2, "female", 1, "other", 1), table.Rows)
}

func TestAggregator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAggregator(true, nil).Summarize(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

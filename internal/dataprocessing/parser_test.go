package dataprocessing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "mpxreport/internal/errors"
	"mpxreport/internal/shared/testutil"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{input: "2022-05-18", want: day(2022, 5, 18)},
		{input: "18/05/2022", want: day(2022, 5, 18)},
		{input: "03/04/2022", want: day(2022, 4, 3)},
		{input: "01/06/2022", want: day(2022, 6, 1)},
		{input: "18.05.2022", want: day(2022, 5, 18)},
		{input: "03.04.2022", want: day(2022, 4, 3)},
		{input: "05.18.2022", want: day(2022, 5, 18)},
		{input: "32.13.2022", wantErr: true},
		{input: " 2022-05-18 ", want: day(2022, 5, 18)},
		{input: "2022-05-18T13:45:00Z", want: day(2022, 5, 18)},
		{input: "", want: time.Time{}},
		{input: "   ", want: time.Time{}},
		{input: "not a date", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, got.IsZero())
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestLoader_Load(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	records, stats, err := NewLoader(logger).Load(context.Background(), strings.NewReader(testutil.LineListCSV))
	require.NoError(t, err)

	assert.Equal(t, testutil.LineListRows, stats.Rows)
	assert.Equal(t, testutil.LineListLoadedRecords, stats.Loaded)
	assert.Equal(t, 1, stats.BlankRows)
	assert.Equal(t, 1, stats.UnparsedConfirmDates)
	assert.Equal(t, 0, stats.UnparsedDeathDates)
	require.Len(t, records, testutil.LineListLoadedRecords)

	first := records[0]
	assert.Equal(t, "N1", first.ID)
	assert.Equal(t, "confirmed", first.Status)
	assert.Equal(t, "England", first.Country)
	assert.Equal(t, "20-44", first.AgeRange)
	assert.Equal(t, "Fever; Headaches, Rash", first.Symptoms)
	assert.Equal(t, "RT-PCR", first.ConfirmationMethod)
	assert.True(t, day(2022, 5, 18).Equal(first.DateConfirmation))
	assert.False(t, first.HasDeathDate())

	// free text is left untouched
	assert.Equal(t, "Male ", records[1].Gender)

	// unparseable date becomes a zero time, record is kept
	assert.Equal(t, "N5", records[4].ID)
	assert.False(t, records[4].HasConfirmationDate())

	last := records[len(records)-1]
	assert.Equal(t, "N8", last.ID)
	assert.True(t, day(2022, 6, 1).Equal(last.DateConfirmation))
	assert.True(t, day(2022, 6, 2).Equal(last.DateDeath))

	assert.True(t, handler.ContainsAttr("blank_rows", int64(1)))
}

func TestLoader_Load_ShortRowsAndBOM(t *testing.T) {
	input := "\ufeffID,Status,Country,Gender,Age,Confirmation_method,Symptoms,Date_confirmation,Date_death\n" +
		"N1,confirmed,France\n"

	records, _, err := NewLoader(nil).Load(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "N1", records[0].ID)
	assert.Equal(t, "France", records[0].Country)
	assert.Empty(t, records[0].Gender)
	assert.False(t, records[0].HasConfirmationDate())
}

func TestLoader_Load_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty stream", input: ""},
		{name: "missing columns", input: "ID,Status,Country\nN1,confirmed,France\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewLoader(nil).Load(context.Background(), strings.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing), "got %v", err)
		})
	}
}

func TestLoader_Load_MissingColumnsListed(t *testing.T) {
	_, _, err := NewLoader(nil).Load(context.Background(), strings.NewReader("ID,Status\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Country")
	assert.Contains(t, err.Error(), "Date_death")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestLoader_Load_UnreadableStream(t *testing.T) {
	_, _, err := NewLoader(nil).Load(context.Background(), failingReader{})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestLoader_Load_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewLoader(nil).Load(ctx, strings.NewReader(testutil.LineListCSV))
	assert.ErrorIs(t, err, context.Canceled)
}

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// LineListCSV is a small line-list covering aliasing, status filtering,
// gender cleanup, unmapped ages, symptom normalization and bad dates. It
// carries extra columns (Location, Source) and one blank row.
const LineListCSV = `ID,Status,Location,Country,Age,Gender,Date_confirmation,Symptoms,Confirmation_method,Source,Date_death
N1,confirmed,London,England,20-44,male,18/05/2022,"Fever; Headaches, Rash",RT-PCR,https://example.org/1,
N2,confirmed,,Gibraltar,30-39,Male ,2022-05-18,rash,RT-PCR,,
N3,confirmed,Lisbon,Portugal,15-19,female,20/05/2022,,,,25/05/2022
N4,confirmed,Porto,Portugal,99-150,,20/05/2022,"Itching, muscle aches",RT-PCR,,
N5,confirmed,Madrid,Spain,60-64,male,not a date,vasicular rash; rashes,Sequencing,,
N6,suspected,Madrid,Spain,20-44,male,19/05/2022,fever,RT-PCR,,
N7,discarded,Berlin,Germany,20-44,female,19/05/2022,fever,RT-PCR,,
,,,,,,,,,,
N8,confirmed,Belfast,Northern Ireland,,female,01/06/2022,Fever,RT-PCR,,02/06/2022
`

// Expected record counts for LineListCSV
const (
	LineListRows             = 9
	LineListLoadedRecords    = 8
	LineListConfirmedRecords = 6
)

// WriteLineList writes content to a file in a fresh temp directory and
// returns its path.
func WriteLineList(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "latest.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write line-list fixture: %v", err)
	}
	return path
}

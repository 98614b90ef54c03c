package domain

import (
	"fmt"
)

// Sheet names of the outbreak report. The names are part of the output contract.
const (
	SheetDaysCases       = "DaysCases"
	SheetCountriesCases  = "CountriesCases"
	SheetCountriesOnDays = "CountriesOnDays"
	SheetGender          = "Gender"
	SheetAge             = "Age"
	SheetGenderAge       = "GenderAge"
	SheetSymptoms        = "Symptoms"
	SheetMethodics       = "Methodics"
	SheetDeathDays       = "DeathDays"
	SheetDeathCountries  = "DeathCountries"
)

// SheetOrder is the order in which sheets are written to the report
var SheetOrder = []string{
	SheetDaysCases,
	SheetCountriesCases,
	SheetCountriesOnDays,
	SheetGender,
	SheetAge,
	SheetGenderAge,
	SheetSymptoms,
	SheetMethodics,
	SheetDeathDays,
	SheetDeathCountries,
}

// Column names shared by several summaries
const (
	ColumnIDCount            = "ID_count"
	ColumnGender             = "Gender"
	ColumnAgeCategory        = "age_category"
	ColumnCountry            = "Country"
	ColumnConfirmationMethod = "Confirmation_method"
	ColumnDateConfirmation   = "Date_confirmation"
	ColumnDateDeath          = "Date_death"
	ColumnSymptom            = "symptom"
	ColumnFrequency          = "freq"

	SuffixCumulative = "_cumulative"
	SuffixOnDay      = "_on_day"
)

// SummaryTable is a named, ordered table produced by one aggregation.
// Row values are strings (keys, dates) or ints (counts) in column order.
type SummaryTable struct {
	Name    string
	Columns []string
	Rows    [][]interface{}

	// Indexed is true when the first column holds the group-by key. The
	// workbook freezes that column.
	Indexed bool
}

// ColumnIndex returns the position of the named column or -1
func (t SummaryTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Value returns the cell at the given row and column name
func (t SummaryTable) Value(row int, column string) (interface{}, bool) {
	idx := t.ColumnIndex(column)
	if idx < 0 || row < 0 || row >= len(t.Rows) || idx >= len(t.Rows[row]) {
		return nil, false
	}
	return t.Rows[row][idx], true
}

// Lookup returns the row whose first column equals key
func (t SummaryTable) Lookup(key string) ([]interface{}, bool) {
	for _, row := range t.Rows {
		if len(row) > 0 && fmt.Sprint(row[0]) == key {
			return row, true
		}
	}
	return nil, false
}

// SummarySet holds the complete set of tables of one report run
type SummarySet struct {
	Tables []SummaryTable
}

// Table returns the table with the given name
func (s *SummarySet) Table(name string) (SummaryTable, bool) {
	if s == nil {
		return SummaryTable{}, false
	}
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return SummaryTable{}, false
}

// Ordered returns the tables arranged by SheetOrder, followed by any
// table with a name not listed there.
func (s *SummarySet) Ordered() []SummaryTable {
	if s == nil {
		return nil
	}
	ordered := make([]SummaryTable, 0, len(s.Tables))
	seen := make(map[string]bool, len(s.Tables))
	for _, name := range SheetOrder {
		if t, ok := s.Table(name); ok {
			ordered = append(ordered, t)
			seen[name] = true
		}
	}
	for _, t := range s.Tables {
		if !seen[t.Name] {
			ordered = append(ordered, t)
		}
	}
	return ordered
}

// Validate checks that every sheet name appears exactly once
func (s *SummarySet) Validate() error {
	if s == nil {
		return fmt.Errorf("summary set is nil")
	}
	counts := make(map[string]int, len(s.Tables))
	for _, t := range s.Tables {
		if t.Name == "" {
			return fmt.Errorf("summary table without a name")
		}
		counts[t.Name]++
	}
	for _, name := range SheetOrder {
		switch counts[name] {
		case 0:
			return fmt.Errorf("missing summary table %q", name)
		case 1:
		default:
			return fmt.Errorf("summary table %q appears %d times", name, counts[name])
		}
	}
	return nil
}

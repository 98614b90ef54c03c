// Package exporter writes summary sets to disk.
//
// WorkbookWriter produces the xlsx report with one sheet per summary table
// using excelize's streaming writer. CSVWriter produces one CSV file per
// table for consumers that cannot read workbooks. Reporter picks the file
// names from config.Paths and the run date and drives both writers.
//
// Files are written to a temporary sibling and renamed into place, so a
// failed export never leaves a truncated report behind.
package exporter

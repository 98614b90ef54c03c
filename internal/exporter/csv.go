package exporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"

	apperrors "mpxreport/internal/errors"
	"mpxreport/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter exports summary tables as one CSV file per sheet
type CSVWriter struct {
	bomPrefix bool
	logger    *slog.Logger
}

// NewCSVWriter creates a CSV writer. With bomPrefix set every file starts
// with a UTF-8 byte order mark so spreadsheet tools detect the encoding.
func NewCSVWriter(bomPrefix bool, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{bomPrefix: bomPrefix, logger: logger}
}

// WriteTable writes one table to path, replacing any existing file
func (w *CSVWriter) WriteTable(ctx context.Context, path string, table domain.SummaryTable) error {
	err := writeAtomic(path, func(f *os.File) error {
		return w.Encode(f, table)
	})
	if err != nil {
		return apperrors.NewStorageError("failed to write CSV sheet", err).
			WithContext("path", path).
			WithContext("sheet", table.Name)
	}

	w.logger.DebugContext(ctx, "CSV sheet written",
		slog.String("sheet", table.Name),
		slog.String("path", path),
		slog.Int("rows", len(table.Rows)))
	return nil
}

// Encode writes the header row and every data row of table to out
func (w *CSVWriter) Encode(out io.Writer, table domain.SummaryTable) error {
	if w.bomPrefix {
		if _, err := out.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(out)
	if err := writer.Write(table.Columns); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, row := range table.Rows {
		if err := writer.Write(formatRow(row)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteSet writes every table of set; pathFor maps a sheet name to its file.
// It returns the written paths in sheet order.
func (w *CSVWriter) WriteSet(ctx context.Context, set *domain.SummarySet, pathFor func(sheet string) string) ([]string, error) {
	if err := set.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	tables := set.Ordered()
	written := make([]string, 0, len(tables))
	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			removeAll(written)
			return nil, err
		}
		path := pathFor(table.Name)
		if err := w.WriteTable(ctx, path, table); err != nil {
			removeAll(written)
			return nil, err
		}
		written = append(written, path)
	}

	w.logger.InfoContext(ctx, "CSV sheets written", slog.Int("files", len(written)))
	return written, nil
}

// removeAll deletes files of a partially written export
func removeAll(paths []string) {
	for _, p := range paths {
		os.Remove(p)
	}
}

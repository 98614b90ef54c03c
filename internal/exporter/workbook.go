package exporter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/xuri/excelize/v2"

	"mpxreport/internal/config"
	apperrors "mpxreport/internal/errors"
	"mpxreport/pkg/contracts/domain"
)

const (
	defaultSheet    = "Sheet1"
	keyColumnWidth  = 22
	dataColumnWidth = 14
)

// WorkbookWriter writes a summary set as a multi-sheet xlsx workbook, one
// sheet per table, rows and columns in the order the tables hold them.
type WorkbookWriter struct {
	clock  config.Clock
	logger *slog.Logger
}

// NewWorkbookWriter creates a workbook writer. The clock stamps the
// document properties.
func NewWorkbookWriter(clock config.Clock, logger *slog.Logger) *WorkbookWriter {
	if clock == nil {
		clock = config.SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookWriter{clock: clock, logger: logger}
}

// Write saves the workbook at path. The file only appears once it is
// complete.
func (w *WorkbookWriter) Write(ctx context.Context, path string, set *domain.SummarySet) error {
	err := writeAtomic(path, func(f *os.File) error {
		return w.WriteTo(ctx, f, set)
	})
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrTypeValidation) || ctx.Err() != nil {
			return err
		}
		return apperrors.NewStorageError("failed to write workbook", err).
			WithContext("path", path)
	}

	w.logger.InfoContext(ctx, "Workbook written",
		slog.String("path", path),
		slog.Int("sheets", len(set.Tables)))
	return nil
}

// WriteTo encodes the workbook to out
func (w *WorkbookWriter) WriteTo(ctx context.Context, out io.Writer, set *domain.SummarySet) error {
	if err := set.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error())
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, table := range set.Ordered() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, table.Name); err != nil {
				return fmt.Errorf("failed to name sheet %s: %w", table.Name, err)
			}
		} else if _, err := f.NewSheet(table.Name); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", table.Name, err)
		}
		if err := writeSheet(f, table, headerStyle); err != nil {
			return fmt.Errorf("failed to write sheet %s: %w", table.Name, err)
		}
	}
	f.SetActiveSheet(0)

	now := w.clock().UTC().Format(time.RFC3339)
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   "Monkeypox report of Global.health data",
		Creator: config.AppName,
		Created: now,
		Version: config.AppVersion,
	}); err != nil {
		return fmt.Errorf("failed to set document properties: %w", err)
	}

	return f.Write(out)
}

// sheetPanes freezes the header row, plus the key column of indexed tables
func sheetPanes(table domain.SummaryTable) *excelize.Panes {
	if table.Indexed && len(table.Columns) > 1 {
		return &excelize.Panes{
			Freeze:      true,
			XSplit:      1,
			YSplit:      1,
			TopLeftCell: "B2",
			ActivePane:  "bottomRight",
		}
	}
	return &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}
}

func writeSheet(f *excelize.File, table domain.SummaryTable, headerStyle int) error {
	sw, err := f.NewStreamWriter(table.Name)
	if err != nil {
		return err
	}

	if len(table.Columns) > 0 {
		if err := sw.SetColWidth(1, 1, keyColumnWidth); err != nil {
			return err
		}
		if len(table.Columns) > 1 {
			if err := sw.SetColWidth(2, len(table.Columns), dataColumnWidth); err != nil {
				return err
			}
		}
		if err := sw.SetPanes(sheetPanes(table)); err != nil {
			return err
		}
	}

	header := make([]interface{}, len(table.Columns))
	for i, name := range table.Columns {
		header[i] = excelize.Cell{StyleID: headerStyle, Value: name}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for i, row := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	return sw.Flush()
}

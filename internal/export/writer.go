// Package export serializes extraction records to tabular output files.
package export

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/docfields/docfields/internal/extract"
)

// Format selects the output file type.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ParseFormat validates a format string from configuration or a tool call.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatXLSX, FormatCSV:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unsupported output format: %q (must be xlsx or csv)", s)
	}
}

// ExportError indicates serialization or I/O failure while writing records.
// It surfaces after batch completion, so the in-memory report stays
// available for a retry.
type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export to %s failed: %v", e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// Built-in column labels, in their fixed output order.
var builtinColumns = []struct {
	field string
	label string
}{
	{extract.FieldName, "Name"},
	{extract.FieldDateOfBirth, "Date of Birth"},
	{extract.FieldInsurance, "Insurance Information"},
}

const (
	sourceFileLabel     = "Source File"
	extractionDateLabel = "Extraction Date"
	sheetName           = "Extracted"
)

// Writer serializes extraction records to spreadsheet or delimited files.
type Writer struct {
	logger *slog.Logger
}

// NewWriter creates a writer logging through the given logger.
func NewWriter(logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{logger: logger}
}

// Write serializes records to destPath in the given format. Columns appear
// in fixed order: Name, Date of Birth, Insurance Information, Source File,
// Extraction Date, then any custom fields in the order supplied.
func (w *Writer) Write(records []extract.Record, customFields []string, destPath string, format Format) error {
	start := time.Now()

	headers, rows := w.tabulate(records, customFields)

	var err error
	switch format {
	case FormatXLSX:
		err = w.writeXLSX(headers, rows, destPath)
	case FormatCSV:
		err = w.writeCSV(headers, rows, destPath)
	default:
		err = &ExportError{Path: destPath, Err: fmt.Errorf("unsupported format: %q", format)}
	}
	if err != nil {
		return err
	}

	w.logger.Info("export.ok",
		"path", destPath,
		"format", string(format),
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// tabulate flattens records into a header row and data rows.
func (w *Writer) tabulate(records []extract.Record, customFields []string) ([]string, [][]string) {
	headers := make([]string, 0, len(builtinColumns)+2+len(customFields))
	for _, col := range builtinColumns {
		headers = append(headers, col.label)
	}
	headers = append(headers, sourceFileLabel, extractionDateLabel)
	headers = append(headers, customFields...)

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, 0, len(headers))
		for _, col := range builtinColumns {
			row = append(row, cellValue(rec, col.field))
		}
		row = append(row, rec.DocumentID(), rec.ExtractedAt().Format(time.RFC3339))
		for _, field := range customFields {
			row = append(row, cellValue(rec, field))
		}
		rows = append(rows, row)
	}
	return headers, rows
}

// cellValue renders one field result. Absent and invalid fields both export
// as empty cells; the distinction lives in the record, not the spreadsheet.
func cellValue(rec extract.Record, field string) string {
	res, ok := rec.Field(field)
	if !ok || !res.Found || !res.Valid {
		return ""
	}
	return res.Value
}

func (w *Writer) writeXLSX(headers []string, rows [][]string, destPath string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if _, err := f.NewSheet(sheetName); err != nil {
		return &ExportError{Path: destPath, Err: err}
	}
	if index, err := f.GetSheetIndex(sheetName); err == nil {
		f.SetActiveSheet(index)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return &ExportError{Path: destPath, Err: err}
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return &ExportError{Path: destPath, Err: err}
		}
	}
	for rowIdx, row := range rows {
		for colIdx, value := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return &ExportError{Path: destPath, Err: err}
			}
		}
	}

	// Widen the fixed columns for readability.
	_ = f.SetColWidth(sheetName, "A", "A", 28) // name
	_ = f.SetColWidth(sheetName, "B", "B", 14) // date of birth
	_ = f.SetColWidth(sheetName, "C", "C", 32) // insurance
	_ = f.SetColWidth(sheetName, "D", "D", 48) // source file
	_ = f.SetColWidth(sheetName, "E", "E", 22) // extraction date

	if err := f.SaveAs(destPath); err != nil {
		return &ExportError{Path: destPath, Err: err}
	}
	return nil
}

func (w *Writer) writeCSV(headers []string, rows [][]string, destPath string) error {
	f, err := os.Create(destPath)
	if err != nil {
		return &ExportError{Path: destPath, Err: err}
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(headers); err != nil {
		return &ExportError{Path: destPath, Err: err}
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return &ExportError{Path: destPath, Err: err}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return &ExportError{Path: destPath, Err: err}
	}
	return nil
}

// DefaultFilename builds the timestamped output path used when the caller
// does not name one: extracted_data_<YYYYMMDD_HHMMSS>.<ext> in dir.
func DefaultFilename(dir string, format Format, now time.Time) string {
	name := fmt.Sprintf("extracted_data_%s.%s", now.Format("20060102_150405"), format)
	return filepath.Join(dir, name)
}

// Package export renders tabular report data as CSV or Excel attachments.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Format is an export file format
type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "excel"
)

const (
	csvContentType   = "text/csv"
	excelContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	sheetName        = "Sheet1"
	dateTimeLayout   = "2006-01-02 15:04:05"
)

// ParseFormat resolves a format name. An empty name means CSV.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatExcel:
		return FormatExcel, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// Table is a header row plus data rows. Cell values may be strings, ints,
// decimals or times.
type Table struct {
	Headers []string
	Rows    [][]interface{}
}

// File is a rendered attachment
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Writer renders tables into files
type Writer struct {
	logger *zap.Logger
}

// NewWriter creates a new export writer
func NewWriter(logger *zap.Logger) *Writer {
	return &Writer{logger: logger}
}

// Write renders table as baseName.csv or baseName.xlsx
func (w *Writer) Write(baseName string, format Format, table Table) (*File, error) {
	if len(table.Rows) == 0 {
		return nil, ErrEmptyTable
	}

	var (
		file *File
		err  error
	)
	switch format {
	case FormatCSV:
		file, err = w.writeCSV(baseName, table)
	case FormatExcel:
		file, err = w.writeExcel(baseName, table)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	w.logger.Info("Export rendered",
		zap.String("file", file.Name),
		zap.Int("rows", len(table.Rows)),
		zap.Int("bytes", len(file.Data)))
	return file, nil
}

func (w *Writer) writeCSV(baseName string, table Table) (*File, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	if err := cw.Write(table.Headers); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	record := make([]string, len(table.Headers))
	for i, row := range table.Rows {
		for j := range record {
			record[j] = ""
			if j < len(row) {
				record[j] = formatCell(row[j])
			}
		}
		if err := cw.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write csv row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}

	return &File{
		Name:        baseName + ".csv",
		ContentType: csvContentType,
		Data:        buf.Bytes(),
	}, nil
}

func (w *Writer) writeExcel(baseName string, table Table) (*File, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			w.logger.Warn("Failed to close workbook", zap.Error(err))
		}
	}()

	header := make([]interface{}, len(table.Headers))
	for i, h := range table.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to set header row: %w", err)
	}

	for i, row := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve row %d: %w", i, err)
		}

		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = excelValue(v)
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to set row %d: %w", i, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	return &File{
		Name:        baseName + ".xlsx",
		ContentType: excelContentType,
		Data:        buf.Bytes(),
	}, nil
}

// formatCell renders a value for CSV
func formatCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case decimal.Decimal:
		return val.String()
	case time.Time:
		return val.Format(dateTimeLayout)
	default:
		return fmt.Sprint(val)
	}
}

// excelValue converts a value to something excelize stores natively, so
// money lands in numeric cells
func excelValue(v interface{}) interface{} {
	switch val := v.(type) {
	case decimal.Decimal:
		return val.InexactFloat64()
	case time.Time:
		return val.Format(dateTimeLayout)
	default:
		return val
	}
}

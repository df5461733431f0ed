package parser

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/pennywise/internal/domain/import/sniffer"
)

// FromCSV turns a delimited export into lines, one per record, with the
// column index as X. It also reports whether amounts use European separators.
func FromCSV(data []byte) ([]Line, bool, error) {
	cfg, err := sniffer.DetectConfig(data)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrNoTable, err)
	}

	records := sniffer.ReadRecords(data, cfg.Delimiter, 0, 0)
	european := sniffer.ProbeDialect(cfg.SampleRows).European
	return recordsToLines(records), european, nil
}

// FromXLSX reads the transaction sheet of a workbook into lines. Cells stored
// as dates are rendered as yyyy-mm-dd regardless of their display format.
func FromXLSX(data []byte) ([]Line, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := findTransactionSheet(f)
	if sheet == "" {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrNoTable)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}

	for i, row := range rows {
		if i >= len(raw) {
			break
		}
		for j, formatted := range row {
			if j >= len(raw[i]) {
				break
			}
			if d, ok := serialDate(raw[i][j], formatted); ok {
				row[j] = d
			}
		}
	}

	return recordsToLines(rows), nil
}

// serialDate converts a spreadsheet date serial whose display value is a date.
func serialDate(raw, formatted string) (string, bool) {
	if raw == formatted || !strings.ContainsAny(strings.TrimLeft(formatted, "-"), "/-") {
		return "", false
	}
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil || serial < 1 {
		return "", false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

// findTransactionSheet prefers a sheet named like a statement and falls back
// to the first one.
func findTransactionSheet(f *excelize.File) string {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ""
	}

	preferred := []string{"transactions", "statement", "account statement", "sheet1"}
	for _, name := range preferred {
		for _, sheet := range sheets {
			if strings.EqualFold(strings.TrimSpace(sheet), name) {
				return sheet
			}
		}
	}
	return sheets[0]
}

func recordsToLines(records [][]string) []Line {
	lines := make([]Line, 0, len(records))
	for i, record := range records {
		line := Line{Page: 1, Y: float64(i)}
		for j, value := range record {
			if strings.TrimSpace(value) == "" {
				continue
			}
			line.Cells = append(line.Cells, Cell{X: float64(j), Text: value})
		}
		lines = append(lines, line)
	}
	return lines
}

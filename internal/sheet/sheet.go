// Package sheet reads and writes ledger tables as xlsx workbooks.
package sheet

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/ledger-importer/internal/domain"
)

// Read decodes the named sheet of an xlsx workbook. An empty name selects
// the active sheet. Row 1 is the header. Fully blank rows are dropped and
// short rows are padded to the header width.
func Read(r io.Reader, sheet string) (*domain.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheet = f.GetSheetName(f.GetActiveSheetIndex())
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q has no header row", sheet)
	}

	dec := &cellDecoder{f: f, sheet: sheet, dateStyles: make(map[int]bool)}
	table := &domain.Table{Sheet: sheet, Header: rows[0]}

	for i, raw := range rows[1:] {
		line := i + 2
		width := len(table.Header)
		if len(raw) > width {
			width = len(raw)
		}
		row := domain.Row{Line: line, Index: len(table.Rows), Values: make([]any, width)}
		for c, text := range raw {
			if text == "" {
				continue
			}
			v, err := dec.decode(c+1, line, text)
			if err != nil {
				return nil, err
			}
			row.Values[c] = v
		}
		if row.IsBlank() {
			continue
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

type cellDecoder struct {
	f          *excelize.File
	sheet      string
	dateStyles map[int]bool
}

func (d *cellDecoder) decode(col, line int, raw string) (any, error) {
	cell, err := excelize.CoordinatesToCellName(col, line)
	if err != nil {
		return nil, err
	}
	typ, err := d.f.GetCellType(d.sheet, cell)
	if err != nil {
		return nil, fmt.Errorf("cell %s: %w", cell, err)
	}

	switch typ {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true"), nil
	case excelize.CellTypeDate:
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return t, nil
		}
		return raw, nil
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		num, err := decimal.NewFromString(raw)
		if err != nil {
			return raw, nil
		}
		isDate, err := d.isDateCell(cell)
		if err != nil {
			return nil, err
		}
		if isDate {
			if t, err := excelize.ExcelDateToTime(num.InexactFloat64(), false); err == nil {
				return t, nil
			}
		}
		return num, nil
	default:
		return raw, nil
	}
}

func (d *cellDecoder) isDateCell(cell string) (bool, error) {
	idx, err := d.f.GetCellStyle(d.sheet, cell)
	if err != nil {
		return false, fmt.Errorf("cell %s style: %w", cell, err)
	}
	if isDate, ok := d.dateStyles[idx]; ok {
		return isDate, nil
	}
	// Workbooks without a usable style table read as plain numbers.
	style, err := d.f.GetStyle(idx)
	isDate := err == nil && isDateFormat(style)
	d.dateStyles[idx] = isDate
	return isDate, nil
}

var bracketed = regexp.MustCompile(`\[[^\]]*\]|"[^"]*"`)

func isDateFormat(s *excelize.Style) bool {
	if s == nil {
		return false
	}
	switch {
	case s.NumFmt >= 14 && s.NumFmt <= 22,
		s.NumFmt >= 27 && s.NumFmt <= 36,
		s.NumFmt >= 45 && s.NumFmt <= 47,
		s.NumFmt >= 50 && s.NumFmt <= 58:
		return true
	}
	if s.CustomNumFmt == nil {
		return false
	}
	code := strings.ToLower(bracketed.ReplaceAllString(*s.CustomNumFmt, ""))
	return strings.Contains(code, "yy") || strings.Contains(code, "d")
}

// Write encodes header and rows as a single-sheet workbook titled sheetTitle.
func Write(w io.Writer, sheetTitle string, header []string, rows []domain.Row) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if sheetTitle == "" {
		sheetTitle = "Sheet1"
	}
	if sheetTitle != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheetTitle); err != nil {
			return fmt.Errorf("failed to name sheet %q: %w", sheetTitle, err)
		}
	}

	head := make([]any, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := f.SetSheetRow(sheetTitle, "A1", &head); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := make([]any, len(row.Values))
		for c, v := range row.Values {
			values[c] = encodeValue(v)
		}
		if err := f.SetSheetRow(sheetTitle, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to encode workbook: %w", err)
	}
	return nil
}

func encodeValue(v any) any {
	switch val := v.(type) {
	case decimal.Decimal:
		if val.IsInteger() && val.Abs().LessThan(decimal.New(1, 15)) {
			return val.IntPart()
		}
		return val.InexactFloat64()
	case *decimal.Decimal:
		if val == nil {
			return nil
		}
		return encodeValue(*val)
	case time.Time:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return v
	}
}

// ColumnName returns the spreadsheet letter for a 0-based column index.
func ColumnName(col int) string {
	name, err := excelize.ColumnNumberToName(col + 1)
	if err != nil {
		return strconv.Itoa(col)
	}
	return name
}

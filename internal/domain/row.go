package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Row is one ledger record read from the source table.
// Values are positional over the owning Table's Header. A value is one of
// nil, string, decimal.Decimal, time.Time or bool.
type Row struct {
	Line   int   // 1-based line in the source sheet (header is line 1)
	Index  int   // 0-based position in the input row set
	Values []any // one entry per header column
}

// Get returns the value at column index col, or nil when out of range.
func (r Row) Get(col int) any {
	if col < 0 || col >= len(r.Values) {
		return nil
	}
	return r.Values[col]
}

// Set writes v at column index col, growing the row when needed.
func (r *Row) Set(col int, v any) {
	if col < 0 {
		return
	}
	for len(r.Values) <= col {
		r.Values = append(r.Values, nil)
	}
	r.Values[col] = v
}

// Clone returns a copy whose Values slice can be modified independently.
func (r Row) Clone() Row {
	values := make([]any, len(r.Values))
	copy(values, r.Values)
	return Row{Line: r.Line, Index: r.Index, Values: values}
}

// IsBlank reports whether every cell is empty.
func (r Row) IsBlank() bool {
	for _, v := range r.Values {
		if strings.TrimSpace(Text(v)) != "" {
			return false
		}
	}
	return true
}

// Table is an in-memory sheet: a header row plus data rows.
type Table struct {
	Sheet  string
	Header []string
	Rows   []Row
}

// Text renders a cell value as a string. nil renders as "".
func Text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case decimal.Decimal:
		return val.String()
	case time.Time:
		return val.Format("2006-01-02")
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case interface{ String() string }:
		return val.String()
	default:
		return ""
	}
}

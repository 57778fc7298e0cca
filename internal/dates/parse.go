// Package dates turns heterogeneous spreadsheet date cells into comparable
// instants and measures calendar-aware gaps between them.
package dates

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Layouts tried, in order, before the permissive fallback.
var layouts = []string{
	"01-02-2006", // month-day-year
	"01/02/2006", // month/day/year
	"2006-01-02", // year-month-day
}

// Excel serial day numbers accepted as dates (1900-01-01 .. 9999-12-31).
const (
	minSerial = 1
	maxSerial = 2958465
)

// Parse converts v into an instant. It returns ok=false, never an error, for
// empty or unparseable values.
//
// Accepted inputs: time.Time (passed through), Excel serial numbers
// (decimal.Decimal, float64, int) and strings. Strings are tried against the
// explicit month-first layouts and only then handed to a permissive parser
// configured to prefer month-first.
func Parse(v any) (time.Time, bool) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if val.IsZero() {
			return time.Time{}, false
		}
		return val, true
	case *time.Time:
		if val == nil || val.IsZero() {
			return time.Time{}, false
		}
		return *val, true
	case decimal.Decimal:
		return fromSerial(val.InexactFloat64())
	case float64:
		return fromSerial(val)
	case int:
		return fromSerial(float64(val))
	case int64:
		return fromSerial(float64(val))
	case string:
		return ParseString(val)
	default:
		return time.Time{}, false
	}
}

// ParseString parses a textual date. See Parse.
func ParseString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	// Low-confidence last resort.
	t, err := dateparse.ParseIn(s, time.UTC, dateparse.PreferMonthFirst(true))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func fromSerial(f float64) (time.Time, bool) {
	if f < minSerial || f > maxSerial {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

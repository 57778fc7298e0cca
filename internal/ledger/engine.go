// Package ledger applies classification, vendor and memo rewrites and the
// retention window to a ledger table, and selects the output partition.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-importer/internal/classify"
	"github.com/dvloznov/ledger-importer/internal/dates"
	"github.com/dvloznov/ledger-importer/internal/dedup"
	"github.com/dvloznov/ledger-importer/internal/domain"
	"github.com/dvloznov/ledger-importer/internal/logger"
)

// Summary counts what a transform did to the input.
type Summary struct {
	Rows                int    `json:"rows"`
	Classified          int    `json:"classified"`
	Unclassified        int    `json:"unclassified"`
	VendorRewrites      int    `json:"vendor_rewrites"`
	ReferencesExtracted int    `json:"references_extracted"`
	Kept                int    `json:"kept"`
	RemovedNoCategory   int    `json:"removed_no_category"`
	RemovedNoDate       int    `json:"removed_no_date"`
	RemovedWithinWindow int    `json:"removed_within_window"`
	ReportRows          int    `json:"report_rows"`
	OutputRows          int    `json:"output_rows"`
	Output              string `json:"output,omitempty"`
}

// Removed is the total number of rows the retention window excluded.
func (s Summary) Removed() int {
	return s.RemovedNoCategory + s.RemovedNoDate + s.RemovedWithinWindow
}

// Result holds both partitions and the selected output.
type Result struct {
	Header     []string
	Columns    Columns
	Rewritten  []domain.Row // every row after per-row rewrites
	Kept       []domain.Row
	Removed    []dedup.Removal
	Report     []domain.Row
	Output     []domain.Row
	SheetTitle string
	Summary    Summary
}

// Engine transforms tables with a fixed set of options and dictionary.
// It holds no mutable state and may be shared between goroutines.
type Engine struct {
	opts  Options
	index *classify.Index
}

// NewEngine validates opts. index may be nil when classification is disabled.
func NewEngine(opts Options, index *classify.Index) (*Engine, error) {
	if opts.WindowMonths < 0 {
		return nil, fmt.Errorf("window months must not be negative, got %d", opts.WindowMonths)
	}
	if _, err := ParseOutputMode(string(opts.OutputMode)); err != nil {
		return nil, err
	}
	if opts.EnableClassification {
		if index == nil {
			return nil, errors.New("classification enabled without a dictionary")
		}
		if opts.FallbackCode == "" {
			return nil, errors.New("fallback code must not be empty")
		}
	}
	if opts.ColumnNames == nil {
		opts.ColumnNames = DefaultColumnNames()
	}
	return &Engine{opts: opts, index: index}, nil
}

// Options returns the engine's options.
func (e *Engine) Options() Options {
	return e.opts
}

// Transform runs the engine over table. The input rows are never modified.
// A *ConfigurationError is returned before any row is processed when a
// column needed by the enabled features is missing.
func (e *Engine) Transform(ctx context.Context, table *domain.Table) (*Result, error) {
	log := logger.FromContext(ctx)

	cols, err := ResolveColumns(table.Header, e.opts.ColumnNames, e.opts.RequiredRoles())
	if err != nil {
		return nil, err
	}

	res := &Result{
		Header:  append([]string(nil), table.Header...),
		Columns: cols,
	}
	res.Summary.Rows = len(table.Rows)

	res.Rewritten = make([]domain.Row, len(table.Rows))
	for i, src := range table.Rows {
		row := src.Clone()
		e.rewriteRow(&row, cols, &res.Summary, log)
		res.Rewritten[i] = row
	}

	switch e.opts.OutputMode {
	case OutputAll:
		res.Output = res.Rewritten
		res.SheetTitle = table.Sheet
	case OutputKept, OutputRemoved:
		classCol := cols.Index(domain.RoleExpenseClass)
		dateCol := cols.Index(domain.RoleDate)
		dd := dedup.Deduplicate(res.Rewritten,
			func(r domain.Row) string { return domain.CategoryKey(r.Get(classCol)) },
			func(r domain.Row) (time.Time, bool) { return dates.Parse(r.Get(dateCol)) },
			e.opts.WindowMonths)
		res.Kept, res.Removed = dd.Kept, dd.Removed

		counts := dd.Counts()
		res.Summary.Kept = counts[domain.Kept]
		res.Summary.RemovedNoCategory = counts[domain.RemovedNoCategory]
		res.Summary.RemovedNoDate = counts[domain.RemovedNoDate]
		res.Summary.RemovedWithinWindow = counts[domain.RemovedWithinWindow]

		for _, rm := range dd.Removed {
			if rm.Decision == domain.RemovedNoDate {
				log.Debug().
					Int("line", rm.Row.Line).
					Str("value", domain.Text(rm.Row.Get(dateCol))).
					Msg("Unparseable date, row removed")
			}
		}

		if e.opts.OutputMode == OutputKept {
			res.Output = res.Kept
			res.SheetTitle = "Sheet"
			break
		}
		res.SheetTitle = "Removed"
		if e.opts.ReportOverrides {
			source := dd.Removed
			if e.opts.ReportOneRowPerCategory {
				source = dd.Grouped
			}
			res.Report = BuildReport(source, classCol,
				cols.Index(domain.RoleExpenseAccount), cols.Index(domain.RoleExpenseAmount),
				e.opts.Report, e.opts.ReportOneRowPerCategory)
			res.Summary.ReportRows = len(res.Report)
			res.Output = res.Report
			break
		}
		res.Output = make([]domain.Row, len(res.Removed))
		for i, rm := range res.Removed {
			res.Output[i] = rm.Row
		}
	}
	res.Summary.OutputRows = len(res.Output)

	log.Info().
		Int("rows", res.Summary.Rows).
		Int("classified", res.Summary.Classified).
		Int("unclassified", res.Summary.Unclassified).
		Int("kept", res.Summary.Kept).
		Int("removed", res.Summary.Removed()).
		Int("output_rows", res.Summary.OutputRows).
		Str("mode", string(e.opts.OutputMode)).
		Msg("Ledger transform complete")

	return res, nil
}

func (e *Engine) rewriteRow(row *domain.Row, cols Columns, sum *Summary, log zerolog.Logger) {
	if e.opts.EnableVendorRewrite {
		col := cols.Index(domain.RoleVendor)
		if v, ok := row.Get(col).(string); ok {
			if display, changed := RewriteVendor(v, e.opts.Vendors); changed {
				row.Set(col, display)
				sum.VendorRewrites++
			}
		}
	}

	if e.opts.EnableClassification {
		text := domain.Text(row.Get(cols.Index(domain.RoleDescription)))
		r := e.index.Classify(text, e.opts.FallbackCode)
		row.Set(cols.Index(domain.RoleExpenseAccount), r.Code)
		if r.Matched {
			sum.Classified++
		} else {
			sum.Unclassified++
			log.Debug().Int("line", row.Line).Str("description", text).Msg("No alias matched, using fallback code")
		}
	}

	if e.opts.EnableMemoExtraction {
		memo := domain.Text(row.Get(cols.Index(domain.RoleMemo)))
		if ref, ok := ExtractReference(memo, e.opts.MemoPrefix); ok {
			row.Set(cols.Index(domain.RoleExtractedReference), ref)
			sum.ReferencesExtracted++
		}
	}
}

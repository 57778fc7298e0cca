package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/ledger-importer/internal/classify"
	"github.com/dvloznov/ledger-importer/internal/domain"
)

func testIndex(t *testing.T) *classify.Index {
	t.Helper()
	idx, conflicts := classify.NewIndex([]classify.AliasRule{
		{Code: "51100", Aliases: []string{"freight"}},
		{Code: "51000", Aliases: []string{"freight insurance"}},
	})
	require.Empty(t, conflicts)
	return idx
}

func table(header []string, rows ...[]any) *domain.Table {
	t := &domain.Table{Sheet: "Bills", Header: header}
	for i, vals := range rows {
		t.Rows = append(t.Rows, domain.Row{Line: i + 2, Index: i, Values: vals})
	}
	return t
}

func mustEngine(t *testing.T, preset string, idx *classify.Index) *Engine {
	t.Helper()
	p, err := LookupPreset(preset)
	require.NoError(t, err)
	e, err := NewEngine(DefaultOptions().WithPreset(p), idx)
	require.NoError(t, err)
	return e
}

var revenueHeader = []string{"Date", "Expense Class", "Expense Account", "Expense Amount"}

func revenueTable() *domain.Table {
	return table(revenueHeader,
		[]any{"2020-01-01", "Air Freight", "51100", "10"},
		[]any{"2020-03-01", "Air Freight", "51100", "11"},
		[]any{"2020-04-01", "Ocean Freight", "51100", "12"},
		[]any{"2020-05-01", "ocean freight ", "51100", "13"},
		[]any{"2020-06-01", "OCEAN FREIGHT", "51100", "14"},
		[]any{"2020-06-01", "  ", "51100", "15"},
		[]any{"garbage", "Customs", "51500", "16"},
	)
}

func TestTransform_ServiceRevenueReport(t *testing.T) {
	in := revenueTable()
	e := mustEngine(t, "service-revenue", nil)

	res, err := e.Transform(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "Removed", res.SheetTitle)
	require.Len(t, res.Output, 3)

	// First removed row of each category: categories in order of first
	// appearance, the earliest within-window row of each.
	assert.Equal(t, "2020-03-01", res.Output[0].Get(0))
	assert.Equal(t, "45000 Service Revenue", res.Output[0].Get(2))
	assert.True(t, decimal.RequireFromString("100.00").Equal(res.Output[0].Get(3).(decimal.Decimal)))

	assert.Equal(t, "2020-05-01", res.Output[1].Get(0))
	assert.True(t, decimal.RequireFromString("500.00").Equal(res.Output[1].Get(3).(decimal.Decimal)))

	assert.Equal(t, "garbage", res.Output[2].Get(0))
	assert.Equal(t, "45000 Service Revenue", res.Output[2].Get(2))

	assert.Equal(t, Summary{
		Rows:                7,
		Kept:                2,
		RemovedNoCategory:   1,
		RemovedNoDate:       1,
		RemovedWithinWindow: 3,
		ReportRows:          3,
		OutputRows:          3,
	}, res.Summary)

	// Kept rows and the input are never overridden.
	for _, r := range res.Kept {
		assert.Equal(t, "51100", r.Get(2))
	}
	assert.Equal(t, "51100", in.Rows[1].Get(2))
	assert.Equal(t, "11", in.Rows[1].Get(3))
}

func TestTransform_ServiceRevenuePicksGroupedRepresentative(t *testing.T) {
	e := mustEngine(t, "service-revenue", nil)

	in := table(revenueHeader,
		[]any{"2020-01-01", "Ocean", "51100", "1"},
		[]any{"2020-06-01", "Ocean", "51100", "2"},
		[]any{"2020-03-01", "Ocean", "51100", "3"},
		[]any{"", "Ocean", "51100", "4"},
	)
	res, err := e.Transform(context.Background(), in)
	require.NoError(t, err)
	// The undated row comes first in its category, then the within-window
	// rows by date.
	assert.Equal(t, []int{5}, lines(res.Output))

	in = table(revenueHeader,
		[]any{"2020-01-01", "Ocean", "51100", "1"},
		[]any{"2020-01-01", "Air", "51100", "2"},
		[]any{"2020-02-01", "Air", "51100", "3"},
		[]any{"2020-02-01", "Ocean", "51100", "4"},
	)
	res, err = e.Transform(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, res.Output, 2)
	assert.Equal(t, "Ocean", res.Output[0].Get(1))
	assert.Equal(t, "Air", res.Output[1].Get(1))
}

func TestTransform_ServiceRevenueAllOverridesEveryRemovedRow(t *testing.T) {
	e := mustEngine(t, "service-revenue-all", nil)

	res, err := e.Transform(context.Background(), revenueTable())
	require.NoError(t, err)

	assert.Equal(t, "Removed", res.SheetTitle)
	assert.Equal(t, []int{3, 5, 6, 7, 8}, lines(res.Output))
	for _, r := range res.Output {
		assert.Equal(t, "45000 Service Revenue", r.Get(2))
	}
	assert.True(t, decimal.RequireFromString("100.00").Equal(res.Output[0].Get(3).(decimal.Decimal)))
	assert.True(t, decimal.RequireFromString("500.00").Equal(res.Output[1].Get(3).(decimal.Decimal)))
	// The row without a category is reported with the default amount.
	assert.True(t, decimal.RequireFromString("500.00").Equal(res.Output[3].Get(3).(decimal.Decimal)))
	assert.Equal(t, 5, res.Summary.ReportRows)
}

func TestTransform_RemovedOnlyIsVerbatim(t *testing.T) {
	e := mustEngine(t, "removed-only", nil)

	res, err := e.Transform(context.Background(), revenueTable())
	require.NoError(t, err)

	require.Len(t, res.Output, 5)
	for _, r := range res.Output {
		assert.NotEqual(t, "45000 Service Revenue", r.Get(2))
	}
	assert.Equal(t, []int{3, 5, 6, 7, 8}, lines(res.Output))
	assert.Empty(t, res.Report)
}

func TestTransform_FilteredKeepsWindowSurvivors(t *testing.T) {
	e := mustEngine(t, "filtered", nil)

	res, err := e.Transform(context.Background(), revenueTable())
	require.NoError(t, err)

	assert.Equal(t, "Sheet", res.SheetTitle)
	assert.Equal(t, []int{2, 4}, lines(res.Output))
	assert.Equal(t, len(res.Rewritten), len(res.Kept)+len(res.Removed))
}

func TestTransform_MissingColumnFailsBeforeRows(t *testing.T) {
	in := table([]string{"Date", "Expense Class", "Expense Account"},
		[]any{"2020-01-01", "Air", "1"},
	)
	e := mustEngine(t, "service-revenue", nil)

	res, err := e.Transform(context.Background(), in)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, IsConfigurationError(err))

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, domain.RoleExpenseAmount, cfgErr.Role)
	assert.Contains(t, err.Error(), "Expense Amount")
}

var traderHeader = []string{"Date", "Vendor", "Expense Account", "Description", "Memo", "Extracted Reference"}

func traderTable() *domain.Table {
	return table(traderHeader,
		[]any{"2020-01-01", "PERFECT GATEWAY ENTERPRISES LTD (HK)", "", "International freight insurance charge", "GC Aluminum, Inc: PO-1182 ", "old"},
		[]any{"2020-01-02", "Acme Logistics", "", "Sea freight", "internal note", "keep me"},
		[]any{"2020-01-03", nil, "12345", "", "GC Aluminum, Inc:   ", nil},
		[]any{"2020-01-04", "Perfect Gateway", "", "Stationery", nil, nil},
	)
}

func TestTransform_TraderRewritesEveryRow(t *testing.T) {
	in := traderTable()
	e := mustEngine(t, "trader", testIndex(t))

	res, err := e.Transform(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, res.Output, 4)
	assert.Equal(t, "Bills", res.SheetTitle)

	first := res.Output[0]
	assert.Equal(t, "Perfect Gateway", first.Get(1))
	assert.Equal(t, "51000", first.Get(2), "longer alias wins")
	assert.Equal(t, "PO-1182", first.Get(5))

	second := res.Output[1]
	assert.Equal(t, "Acme Logistics", second.Get(1))
	assert.Equal(t, "51100", second.Get(2))
	assert.Equal(t, "keep me", second.Get(5), "reference left untouched without prefix")

	third := res.Output[2]
	assert.Equal(t, classify.FallbackCode, third.Get(2), "empty description falls back")
	assert.Nil(t, third.Get(5), "empty remainder is not written")

	assert.Equal(t, classify.FallbackCode, res.Output[3].Get(2))

	assert.Equal(t, 2, res.Summary.Classified)
	assert.Equal(t, 2, res.Summary.Unclassified)
	assert.Equal(t, 1, res.Summary.VendorRewrites)
	assert.Equal(t, 1, res.Summary.ReferencesExtracted)
	assert.Zero(t, res.Summary.Removed())

	assert.Equal(t, "PERFECT GATEWAY ENTERPRISES LTD (HK)", in.Rows[0].Get(1), "input untouched")
}

func TestTransform_TraderBasicLeavesVendors(t *testing.T) {
	e := mustEngine(t, "trader-basic", testIndex(t))

	res, err := e.Transform(context.Background(), traderTable())
	require.NoError(t, err)

	assert.Equal(t, "PERFECT GATEWAY ENTERPRISES LTD (HK)", res.Output[0].Get(1))
	assert.Zero(t, res.Summary.VendorRewrites)
}

func TestTransform_RewritesAreIdempotent(t *testing.T) {
	e := mustEngine(t, "trader", testIndex(t))

	once, err := e.Transform(context.Background(), traderTable())
	require.NoError(t, err)

	again := &domain.Table{Sheet: "Bills", Header: once.Header, Rows: once.Output}
	twice, err := e.Transform(context.Background(), again)
	require.NoError(t, err)

	for i := range once.Output {
		assert.Equal(t, once.Output[i].Values, twice.Output[i].Values)
	}
	assert.Zero(t, twice.Summary.VendorRewrites)
}

func TestNewEngine_Validation(t *testing.T) {
	opts := DefaultOptions()
	_, err := NewEngine(opts, nil)
	assert.Error(t, err, "classification needs a dictionary")

	opts.WindowMonths = -1
	_, err = NewEngine(opts, testIndex(t))
	assert.Error(t, err)

	opts = DefaultOptions()
	opts.OutputMode = "SIDEWAYS"
	_, err = NewEngine(opts, testIndex(t))
	assert.Error(t, err)
}

func lines(rows []domain.Row) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.Line
	}
	return out
}

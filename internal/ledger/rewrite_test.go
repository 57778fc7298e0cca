package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/ledger-importer/internal/dedup"
	"github.com/dvloznov/ledger-importer/internal/domain"
)

func TestRewriteVendor(t *testing.T) {
	rules := DefaultVendorRules()
	tests := []struct {
		in      string
		want    string
		changed bool
	}{
		{"Perfect Gateway Enterprises Ltd", "Perfect Gateway", true},
		{"  PERFECT GATEWAY ENTERPRISES LTD.  ", "Perfect Gateway", true},
		{"Perfect Gateway", "Perfect Gateway", false},
		{"Perfect Gateway Ltd", "Perfect Gateway Ltd", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, changed := RewriteVendor(tt.in, rules)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.changed, changed)

			again, changedAgain := RewriteVendor(got, rules)
			assert.Equal(t, got, again)
			assert.False(t, changedAgain)
		})
	}
}

func TestExtractReference(t *testing.T) {
	tests := []struct {
		name   string
		memo   string
		want   string
		wantOK bool
	}{
		{"prefixed", "GC Aluminum, Inc: INV-42", "INV-42", true},
		{"leading space", "   GC Aluminum, Inc:INV-42  ", "INV-42", true},
		{"repeated prefix", "GC Aluminum, Inc: GC Aluminum, Inc: X9", "X9", true},
		{"prefix only", "GC Aluminum, Inc:", "", false},
		{"other text", "Paid to GC Aluminum, Inc: 1", "", false},
		{"case sensitive", "gc aluminum, inc: 1", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractReference(tt.memo, DefaultMemoPrefix)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := ExtractReference("anything", "")
	assert.False(t, ok)
}

func TestBuildReport_MarkerAndOrder(t *testing.T) {
	removed := []dedup.Removal{
		{Row: domain.Row{Line: 2, Values: []any{"Ocean", "x", "1"}}},
		{Row: domain.Row{Line: 3, Values: []any{"AIRFREIGHT", "x", "2"}}},
		{Row: domain.Row{Line: 4, Values: []any{"ocean", "x", "3"}}},
		{Row: domain.Row{Line: 5, Values: []any{nil, "x", "4"}}},
		{Row: domain.Row{Line: 6, Values: []any{"Customs"}}},
	}
	s := DefaultReportSettings()

	got := BuildReport(removed, 0, 1, 2, s, true)

	require.Len(t, got, 3)
	assert.Equal(t, []int{2, 3, 6}, lines(got))
	for _, r := range got {
		assert.Equal(t, s.AccountCode, r.Get(1))
	}
	assert.True(t, s.DefaultAmount.Equal(got[0].Get(2).(decimal.Decimal)))
	assert.True(t, s.MarkerAmount.Equal(got[1].Get(2).(decimal.Decimal)))
	// Short rows grow to hold the overrides.
	assert.Len(t, got[2].Values, 3)
	assert.True(t, s.DefaultAmount.Equal(got[2].Get(2).(decimal.Decimal)))

	assert.Equal(t, "x", removed[0].Row.Get(1), "removed rows are not modified")
}

func TestBuildReport_EveryRow(t *testing.T) {
	removed := []dedup.Removal{
		{Row: domain.Row{Line: 2, Values: []any{"Ocean", "x", "1"}}},
		{Row: domain.Row{Line: 3, Values: []any{"Air", "x", "2"}}},
		{Row: domain.Row{Line: 4, Values: []any{"ocean", "x", "3"}}},
		{Row: domain.Row{Line: 5, Values: []any{"", "x", "4"}}},
	}
	s := DefaultReportSettings()

	got := BuildReport(removed, 0, 1, 2, s, false)

	assert.Equal(t, []int{2, 3, 4, 5}, lines(got))
	want := []decimal.Decimal{s.DefaultAmount, s.MarkerAmount, s.DefaultAmount, s.DefaultAmount}
	for i, r := range got {
		assert.Equal(t, s.AccountCode, r.Get(1))
		assert.True(t, want[i].Equal(r.Get(2).(decimal.Decimal)), "line %d", r.Line)
	}
}

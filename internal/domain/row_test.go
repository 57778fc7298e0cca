package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "Freight", "Freight"},
		{"decimal", decimal.RequireFromString("100.50"), "100.5"},
		{"time", time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), "2020-01-02"},
		{"bool", true, "true"},
		{"float", 12.25, "12.25"},
		{"int", 7, "7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.in))
		})
	}
}

func TestRowCloneIsIndependent(t *testing.T) {
	r := Row{Line: 2, Values: []any{"a", "b"}}
	c := r.Clone()
	c.Set(0, "z")
	c.Set(3, "d")

	assert.Equal(t, "a", r.Get(0))
	assert.Len(t, r.Values, 2)
	assert.Equal(t, "z", c.Get(0))
	assert.Nil(t, c.Get(2))
	assert.Equal(t, "d", c.Get(3))
	assert.Nil(t, c.Get(10))
}

func TestRowIsBlank(t *testing.T) {
	assert.True(t, Row{Values: []any{nil, "", "   "}}.IsBlank())
	assert.False(t, Row{Values: []any{nil, "x"}}.IsBlank())
}

func TestCategoryKey(t *testing.T) {
	assert.Equal(t, "air freight", CategoryKey("  Air Freight "))
	assert.Equal(t, "air freight", CategoryKey("AIR FREIGHT"))
	assert.Equal(t, "", CategoryKey("   "))
	assert.Equal(t, "", CategoryKey(nil))
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "KEPT", Kept.String())
	assert.Equal(t, "REMOVED_WITHIN_WINDOW", RemovedWithinWindow.String())
	assert.False(t, Kept.Removed())
	assert.True(t, RemovedNoDate.Removed())
}

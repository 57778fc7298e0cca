package bigquery

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/dvloznov/ledger-importer/internal/classify"
	"github.com/dvloznov/ledger-importer/internal/ledger"
)

var (
	_ RunRecorder = (*RunRepository)(nil)
	_ RunRecorder = NopRecorder{}
	_ AliasSource = (*RunRepository)(nil)
)

func TestRulesFromAliases(t *testing.T) {
	rows := []AliasRow{
		{Code: "51000", Alias: "freight insurance"},
		{Code: "51000", Alias: "cargo insurance"},
		{Code: "51100", Alias: "freight"},
		{Code: " ", Alias: "orphan"},
		{Code: "51000", Alias: "marine insurance"},
		{Code: "51500", Alias: "  "},
	}

	got := RulesFromAliases(rows)

	want := []classify.AliasRule{
		{Code: "51000", Aliases: []string{"freight insurance", "cargo insurance"}},
		{Code: "51100", Aliases: []string{"freight"}},
		{Code: "51000", Aliases: []string{"marine insurance"}},
	}
	if len(got) != len(want) {
		t.Fatalf("RulesFromAliases() returned %d rules, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i].Code != want[i].Code || strings.Join(got[i].Aliases, "|") != strings.Join(want[i].Aliases, "|") {
			t.Errorf("rule %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	idx, conflicts := classify.NewIndex(got)
	if len(conflicts) != 0 {
		t.Errorf("unexpected conflicts: %v", conflicts)
	}
	if code := classify.Classify("Marine insurance premium", idx, classify.FallbackCode); code != "51000" {
		t.Errorf("Classify() = %q, want 51000", code)
	}
}

func TestNopRecorder(t *testing.T) {
	ctx := context.Background()
	var rec NopRecorder

	run := &RunRow{SourceURI: "bill.xlsx"}
	id, err := rec.StartRun(ctx, run)
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	if id == "" || run.RunID != id {
		t.Errorf("StartRun() id = %q, run.RunID = %q", id, run.RunID)
	}

	run2 := &RunRow{RunID: "fixed"}
	if id, _ := rec.StartRun(ctx, run2); id != "fixed" {
		t.Errorf("StartRun() kept id = %q, want fixed", id)
	}

	rec.MarkRunFailed(ctx, id, errors.New("boom"))
	if err := rec.MarkRunSucceeded(ctx, id, ledger.Summary{}); err != nil {
		t.Errorf("MarkRunSucceeded() error = %v", err)
	}
}

func TestTruncateError(t *testing.T) {
	if got := truncateError(nil); got != "" {
		t.Errorf("truncateError(nil) = %q", got)
	}
	long := errors.New(strings.Repeat("x", maxErrorLen+50))
	if got := truncateError(long); len(got) != maxErrorLen {
		t.Errorf("truncateError() length = %d, want %d", len(got), maxErrorLen)
	}
}

func TestEncodeSummary(t *testing.T) {
	js, err := encodeSummary(ledger.Summary{Rows: 7, Kept: 2, RemovedWithinWindow: 3, Output: "out.xlsx"})
	if err != nil {
		t.Fatalf("encodeSummary() error = %v", err)
	}
	if !js.Valid {
		t.Fatal("expected valid JSON value")
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(js.JSONVal), &decoded); err != nil {
		t.Fatalf("summary is not JSON: %v", err)
	}
	if decoded["rows"] != float64(7) || decoded["removed_within_window"] != float64(3) || decoded["output"] != "out.xlsx" {
		t.Errorf("unexpected summary: %s", js.JSONVal)
	}
}

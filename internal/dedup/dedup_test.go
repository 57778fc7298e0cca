package dedup

import (
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/ledger-importer/internal/dates"
	"github.com/dvloznov/ledger-importer/internal/domain"
)

// rows are built as [category, date, id].
func mkRows(cells ...[3]any) []domain.Row {
	rows := make([]domain.Row, len(cells))
	for i, c := range cells {
		rows[i] = domain.Row{Line: i + 2, Index: i, Values: []any{c[0], c[1], c[2]}}
	}
	return rows
}

func keyFn(r domain.Row) string { return domain.CategoryKey(r.Get(0)) }

func dateFn(r domain.Row) (time.Time, bool) { return dates.Parse(r.Get(1)) }

func ids(rows []domain.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Get(2).(string)
	}
	return out
}

func removedByID(res Result) map[string]domain.Decision {
	out := make(map[string]domain.Decision)
	for _, rm := range res.Removed {
		out[rm.Row.Get(2).(string)] = rm.Decision
	}
	return out
}

func TestDeduplicate_EndToEnd(t *testing.T) {
	rows := mkRows(
		[3]any{"catA", "2020-01-01", "r1"},
		[3]any{"catA", "2020-03-01", "r2"},
		[3]any{"catA", "2022-01-02", "r3"},
	)

	res := Deduplicate(rows, keyFn, dateFn, 18)

	assert.Equal(t, []string{"r1", "r3"}, ids(res.Kept))
	assert.Equal(t, map[string]domain.Decision{"r2": domain.RemovedWithinWindow}, removedByID(res))
}

func TestDeduplicate_WindowBoundary(t *testing.T) {
	tests := []struct {
		name   string
		second string
		want   domain.Decision
	}{
		{"exactly 18 months", "2021-07-01", domain.RemovedWithinWindow},
		{"18 months and a day", "2021-07-02", domain.Kept},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := mkRows(
				[3]any{"Ocean", "2020-01-01", "first"},
				[3]any{"Ocean", tt.second, "second"},
			)
			res := Deduplicate(rows, keyFn, dateFn, 18)
			if tt.want == domain.Kept {
				assert.Equal(t, []string{"first", "second"}, ids(res.Kept))
				assert.Empty(t, res.Removed)
				return
			}
			assert.Equal(t, []string{"first"}, ids(res.Kept))
			assert.Equal(t, tt.want, removedByID(res)["second"])
		})
	}
}

func TestDeduplicate_NoCategoryAlwaysRemoved(t *testing.T) {
	rows := mkRows(
		[3]any{"", "2020-01-01", "empty"},
		[3]any{"   ", "2020-01-01", "spaces"},
		[3]any{nil, "bad date", "nil"},
		[3]any{"catA", "2020-01-01", "ok"},
	)

	res := Deduplicate(rows, keyFn, dateFn, 18)

	assert.Equal(t, []string{"ok"}, ids(res.Kept))
	assert.Equal(t, map[string]domain.Decision{
		"empty":  domain.RemovedNoCategory,
		"spaces": domain.RemovedNoCategory,
		"nil":    domain.RemovedNoCategory,
	}, removedByID(res))
}

func TestDeduplicate_NoDateRemoved(t *testing.T) {
	rows := mkRows(
		[3]any{"catA", "", "blank"},
		[3]any{"catA", "garbage", "garbage"},
		[3]any{"catA", "2020-01-01", "dated"},
	)

	res := Deduplicate(rows, keyFn, dateFn, 18)

	assert.Equal(t, []string{"dated"}, ids(res.Kept))
	assert.Equal(t, domain.RemovedNoDate, removedByID(res)["blank"])
	assert.Equal(t, domain.RemovedNoDate, removedByID(res)["garbage"])
}

func TestDeduplicate_SortsWithinGroupAndKeepsInputOrder(t *testing.T) {
	rows := mkRows(
		[3]any{"catA", "2022-01-02", "late"},
		[3]any{"catB", "2020-05-01", "b"},
		[3]any{"CATA ", "2020-01-01", "early"},
		[3]any{"catA", "2020-03-01", "mid"},
	)

	res := Deduplicate(rows, keyFn, dateFn, 18)

	// Output keeps input order even though the group was walked by date.
	assert.Equal(t, []string{"late", "b", "early"}, ids(res.Kept))
	assert.Equal(t, map[string]domain.Decision{"mid": domain.RemovedWithinWindow}, removedByID(res))
}

func TestDeduplicate_NoBacktracking(t *testing.T) {
	// r2 is within 18 months of r1 and removed; r3 is within 18 months of r2
	// but more than 18 months after r1, the last kept row, so it is kept.
	rows := mkRows(
		[3]any{"catA", "2020-01-01", "r1"},
		[3]any{"catA", "2021-01-01", "r2"},
		[3]any{"catA", "2021-08-01", "r3"},
	)

	res := Deduplicate(rows, keyFn, dateFn, 18)

	assert.Equal(t, []string{"r1", "r3"}, ids(res.Kept))
}

func TestDeduplicate_TiesBreakByInputOrder(t *testing.T) {
	rows := mkRows(
		[3]any{"catA", "2020-01-01", "first"},
		[3]any{"catA", "01/01/2020", "second"},
	)

	res := Deduplicate(rows, keyFn, dateFn, 18)

	assert.Equal(t, []string{"first"}, ids(res.Kept))
	assert.Equal(t, domain.RemovedWithinWindow, removedByID(res)["second"])
}

func TestDeduplicate_ShuffleDoesNotChangeMembership(t *testing.T) {
	base := mkRows(
		[3]any{"catA", "2020-01-01", "a1"},
		[3]any{"catA", "2020-06-01", "a2"},
		[3]any{"catA", "2021-09-15", "a3"},
		[3]any{"catA", "2023-04-01", "a4"},
		[3]any{"catB", "2019-02-10", "b1"},
		[3]any{"catB", "2019-03-10", "b2"},
		[3]any{"", "2019-03-10", "x1"},
		[3]any{"catC", "nope", "c1"},
	)
	want := Deduplicate(base, keyFn, dateFn, 18)
	wantKept := sortedIDs(ids(want.Kept))
	wantRemoved := removedByID(want)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]domain.Row, len(base))
		copy(shuffled, base)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got := Deduplicate(shuffled, keyFn, dateFn, 18)
		require.Equal(t, wantKept, sortedIDs(ids(got.Kept)))
		require.Equal(t, wantRemoved, removedByID(got))
	}
}

func TestDeduplicate_PartitionCompleteness(t *testing.T) {
	rows := mkRows(
		[3]any{"catA", "2020-01-01", "1"},
		[3]any{"catA", "2020-01-02", "2"},
		[3]any{"", "2020-01-02", "3"},
		[3]any{"catB", "", "4"},
		[3]any{"catB", "2024-01-01", "5"},
	)

	res := Deduplicate(rows, keyFn, dateFn, 18)

	assert.Equal(t, len(rows), len(res.Kept)+len(res.Removed))
	seen := make(map[string]int)
	for _, id := range ids(res.Kept) {
		seen[id]++
	}
	for id := range removedByID(res) {
		seen[id]++
	}
	for _, r := range rows {
		assert.Equal(t, 1, seen[r.Get(2).(string)])
	}

	counts := res.Counts()
	assert.Equal(t, 2, counts[domain.Kept])
	assert.Equal(t, 1, counts[domain.RemovedWithinWindow])
	assert.Equal(t, 1, counts[domain.RemovedNoCategory])
	assert.Equal(t, 1, counts[domain.RemovedNoDate])
}

func TestDeduplicate_GroupedOrder(t *testing.T) {
	rows := mkRows(
		[3]any{"Ocean", "2020-01-01", "o1"},
		[3]any{"Air", "2020-02-01", "a1"},
		[3]any{"Ocean", "2020-06-01", "o2"},
		[3]any{"", "2020-01-01", "n1"},
		[3]any{"Air", "2020-03-01", "a2"},
		[3]any{"Ocean", "2020-03-01", "o3"},
		[3]any{"Ocean", "", "o4"},
	)

	res := Deduplicate(rows, keyFn, dateFn, 18)

	removedIDs := func(rms []Removal) []string {
		out := make([]string, len(rms))
		for i, rm := range rms {
			out[i] = rm.Row.Get(2).(string)
		}
		return out
	}
	assert.Equal(t, []string{"o2", "n1", "a2", "o3", "o4"}, removedIDs(res.Removed))
	assert.Equal(t, []string{"n1", "o4", "o3", "o2", "a2"}, removedIDs(res.Grouped))
	assert.Equal(t, domain.RemovedNoDate, res.Grouped[1].Decision)
	assert.Equal(t, "ocean", res.Grouped[1].Key)
}

func TestDeduplicate_Empty(t *testing.T) {
	res := Deduplicate(nil, keyFn, dateFn, 18)
	assert.Empty(t, res.Kept)
	assert.Empty(t, res.Removed)
	assert.Empty(t, res.Grouped)
}

func sortedIDs(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

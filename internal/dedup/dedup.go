// Package dedup collapses repeated charges of the same category that recur
// within a retention window.
package dedup

import (
	"sort"
	"time"

	"github.com/dvloznov/ledger-importer/internal/dates"
	"github.com/dvloznov/ledger-importer/internal/domain"
)

// KeyFunc returns the normalized category key of a row; "" means none.
type KeyFunc func(domain.Row) string

// DateFunc returns the parsed date of a row; ok=false means no usable date.
type DateFunc func(domain.Row) (time.Time, bool)

// Removal is a row excluded from the kept partition and the reason why.
type Removal struct {
	Row      domain.Row
	Key      string
	Decision domain.Decision
}

// Result partitions the input. Kept and Removed are in input order and
// every input row appears in exactly one of them.
//
// Grouped holds the same removals in processing order: rows without a
// category in input order, then each category in order of first
// appearance, its undated rows first and then its within-window rows by
// date.
type Result struct {
	Kept    []domain.Row
	Removed []Removal
	Grouped []Removal
}

// Counts tallies rows per decision.
func (r Result) Counts() map[domain.Decision]int {
	counts := map[domain.Decision]int{domain.Kept: len(r.Kept)}
	for _, rm := range r.Removed {
		counts[rm.Decision]++
	}
	return counts
}

type member struct {
	pos  int // position in the input slice
	row  domain.Row
	date time.Time
}

// Deduplicate applies the windowed retention policy.
//
// Rows without a category key are removed as RemovedNoCategory. The rest
// are grouped by key; inside a group rows without a date are removed as
// RemovedNoDate and the remainder is walked in ascending date order (ties
// in input order). The first row is kept; each later row is kept only when
// it is more than windowMonths after the last kept row, otherwise it is
// RemovedWithinWindow. There is no backtracking.
func Deduplicate(rows []domain.Row, keyFn KeyFunc, dateFn DateFunc, windowMonths int) Result {
	decisions := make([]domain.Decision, len(rows))
	keys := make([]string, len(rows))

	groups := make(map[string][]member)
	undated := make(map[string][]int)
	seen := make(map[string]bool)
	var keyOrder []string
	var grouped, within []int

	for i, row := range rows {
		key := keyFn(row)
		keys[i] = key
		if key == "" {
			decisions[i] = domain.RemovedNoCategory
			grouped = append(grouped, i)
			continue
		}
		if !seen[key] {
			seen[key] = true
			keyOrder = append(keyOrder, key)
		}
		d, ok := dateFn(row)
		if !ok {
			decisions[i] = domain.RemovedNoDate
			undated[key] = append(undated[key], i)
			continue
		}
		groups[key] = append(groups[key], member{pos: i, row: row, date: d})
	}

	for _, key := range keyOrder {
		grouped = append(grouped, undated[key]...)

		g := groups[key]
		if len(g) == 0 {
			continue
		}
		sort.SliceStable(g, func(i, j int) bool {
			return g[i].date.Before(g[j].date)
		})

		lastKept := g[0].date
		decisions[g[0].pos] = domain.Kept
		for _, m := range g[1:] {
			if dates.ExceedsWindow(lastKept, m.date, windowMonths) {
				decisions[m.pos] = domain.Kept
				lastKept = m.date
				continue
			}
			decisions[m.pos] = domain.RemovedWithinWindow
			within = append(within, m.pos)
		}
		grouped = append(grouped, within...)
		within = within[:0]
	}

	var res Result
	for i, row := range rows {
		if decisions[i] == domain.Kept {
			res.Kept = append(res.Kept, row)
			continue
		}
		res.Removed = append(res.Removed, Removal{Row: row, Key: keys[i], Decision: decisions[i]})
	}
	for _, i := range grouped {
		res.Grouped = append(res.Grouped, Removal{Row: rows[i], Key: keys[i], Decision: decisions[i]})
	}
	return res
}

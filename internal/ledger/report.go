package ledger

import (
	"strings"

	"github.com/dvloznov/ledger-importer/internal/dedup"
	"github.com/dvloznov/ledger-importer/internal/domain"
)

// BuildReport overwrites the account and amount of removed rows with the
// service revenue values. With onePerCategory only the first row of each
// category in removed is reported and rows without a category are
// dropped; otherwise every row is reported in the given order. The input
// rows are not modified.
func BuildReport(removed []dedup.Removal, classCol, accountCol, amountCol int, s ReportSettings, onePerCategory bool) []domain.Row {
	seen := make(map[string]struct{})
	var out []domain.Row
	marker := strings.ToLower(s.Marker)

	for _, rm := range removed {
		key := domain.CategoryKey(rm.Row.Get(classCol))
		if onePerCategory {
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}

		row := rm.Row.Clone()
		row.Set(accountCol, s.AccountCode)
		amount := s.DefaultAmount
		if marker != "" && strings.Contains(key, marker) {
			amount = s.MarkerAmount
		}
		row.Set(amountCol, amount)
		out = append(out, row)
	}
	return out
}

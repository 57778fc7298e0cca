package ledger

import (
	"strings"

	"github.com/dvloznov/ledger-importer/internal/domain"
)

// DefaultColumnNames are the header names searched for each role.
func DefaultColumnNames() map[domain.Role]string {
	return map[domain.Role]string{
		domain.RoleDate:               "Date",
		domain.RoleExpenseClass:       "Expense Class",
		domain.RoleExpenseAccount:     "Expense Account",
		domain.RoleExpenseAmount:      "Expense Amount",
		domain.RoleVendor:             "Vendor",
		domain.RoleMemo:               "Memo",
		domain.RoleExtractedReference: "Extracted Reference",
		domain.RoleDescription:        "Description",
	}
}

// Columns maps roles to resolved header indexes.
type Columns map[domain.Role]int

// Index returns the column index for role, or -1 when unresolved.
func (c Columns) Index(role domain.Role) int {
	if i, ok := c[role]; ok {
		return i
	}
	return -1
}

// ResolveColumns finds the header index for each required role.
// Matching is case-insensitive on trimmed names: an exact match wins,
// otherwise the first header containing the name is used. Optional roles
// (present in names but not required) are resolved when found.
func ResolveColumns(header []string, names map[domain.Role]string, required []domain.Role) (Columns, error) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = domain.NormalizeKey(h)
	}

	cols := make(Columns)
	for _, role := range domain.AllRoles() {
		name, ok := names[role]
		if !ok {
			continue
		}
		if i := findColumn(normalized, domain.NormalizeKey(name)); i >= 0 {
			cols[role] = i
		}
	}

	for _, role := range required {
		if _, ok := cols[role]; !ok {
			return nil, &ConfigurationError{Role: role, Column: names[role], Header: header}
		}
	}
	return cols, nil
}

func findColumn(header []string, want string) int {
	if want == "" {
		return -1
	}
	for i, h := range header {
		if h == want {
			return i
		}
	}
	for i, h := range header {
		if h != "" && strings.Contains(h, want) {
			return i
		}
	}
	return -1
}

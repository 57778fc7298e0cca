package domain

// Decision is the retention outcome assigned to a row by the deduplicator.
type Decision int

const (
	// Kept means the row stays in the output ledger.
	Kept Decision = iota
	// RemovedNoCategory means the category key was empty or whitespace.
	RemovedNoCategory
	// RemovedNoDate means the date cell was empty or unparseable.
	RemovedNoDate
	// RemovedWithinWindow means an earlier kept row of the same category is
	// not more than the retention window away.
	RemovedWithinWindow
)

func (d Decision) String() string {
	switch d {
	case Kept:
		return "KEPT"
	case RemovedNoCategory:
		return "REMOVED_NO_CATEGORY"
	case RemovedNoDate:
		return "REMOVED_NO_DATE"
	case RemovedWithinWindow:
		return "REMOVED_WITHIN_WINDOW"
	default:
		return "UNKNOWN"
	}
}

// Removed reports whether d places the row in the removed partition.
func (d Decision) Removed() bool {
	return d != Kept
}

// Role names a logical column the ledger engine depends on.
type Role string

const (
	RoleDate               Role = "date"
	RoleExpenseClass       Role = "expense class"
	RoleExpenseAccount     Role = "expense account"
	RoleExpenseAmount      Role = "expense amount"
	RoleVendor             Role = "vendor"
	RoleMemo               Role = "memo"
	RoleExtractedReference Role = "extracted reference"
	RoleDescription        Role = "description"
)

// AllRoles lists every role in a stable order.
func AllRoles() []Role {
	return []Role{
		RoleDate,
		RoleExpenseClass,
		RoleExpenseAccount,
		RoleExpenseAmount,
		RoleVendor,
		RoleMemo,
		RoleExtractedReference,
		RoleDescription,
	}
}

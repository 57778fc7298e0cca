package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/ledger-importer/internal/classify"
	"github.com/dvloznov/ledger-importer/internal/domain"
)

// OutputMode selects which partition the transformer emits.
type OutputMode string

const (
	// OutputKept emits the retained rows.
	OutputKept OutputMode = "KEPT"
	// OutputRemoved emits the removed rows, or the override report when
	// ReportOverrides is set. ReportOneRowPerCategory collapses the report
	// to one row per category.
	OutputRemoved OutputMode = "REMOVED"
	// OutputAll emits every row after the per-row rewrites, in input order.
	OutputAll OutputMode = "ALL"
)

// ParseOutputMode accepts a mode name in any case.
func ParseOutputMode(s string) (OutputMode, error) {
	switch m := OutputMode(strings.ToUpper(strings.TrimSpace(s))); m {
	case OutputKept, OutputRemoved, OutputAll:
		return m, nil
	default:
		return "", fmt.Errorf("unknown output mode %q", s)
	}
}

// ReportSettings controls the overrides applied to representative removed rows.
type ReportSettings struct {
	AccountCode   string
	Marker        string
	MarkerAmount  decimal.Decimal
	DefaultAmount decimal.Decimal
}

// DefaultReportSettings returns the service revenue override values.
func DefaultReportSettings() ReportSettings {
	return ReportSettings{
		AccountCode:   "45000 Service Revenue",
		Marker:        "air",
		MarkerAmount:  decimal.RequireFromString("100.00"),
		DefaultAmount: decimal.RequireFromString("500.00"),
	}
}

// Options configures one Engine.
type Options struct {
	WindowMonths            int
	EnableClassification    bool
	EnableVendorRewrite     bool
	EnableMemoExtraction    bool
	OutputMode              OutputMode
	ReportOverrides         bool
	ReportOneRowPerCategory bool

	FallbackCode string
	Vendors      []VendorRule
	MemoPrefix   string
	Report       ReportSettings
	ColumnNames  map[domain.Role]string
}

// DefaultOptions returns the options of the "trader" preset.
func DefaultOptions() Options {
	opts := Options{
		WindowMonths: 18,
		FallbackCode: classify.FallbackCode,
		Vendors:      DefaultVendorRules(),
		MemoPrefix:   DefaultMemoPrefix,
		Report:       DefaultReportSettings(),
		ColumnNames:  DefaultColumnNames(),
	}
	presets["trader"].apply(&opts)
	return opts
}

// RequiredRoles lists the columns the enabled features depend on.
func (o Options) RequiredRoles() []domain.Role {
	var roles []domain.Role
	if o.EnableClassification {
		roles = append(roles, domain.RoleDescription, domain.RoleExpenseAccount)
	}
	if o.dedups() {
		roles = append(roles, domain.RoleDate, domain.RoleExpenseClass)
	}
	if o.EnableVendorRewrite {
		roles = append(roles, domain.RoleVendor)
	}
	if o.EnableMemoExtraction {
		roles = append(roles, domain.RoleMemo, domain.RoleExtractedReference)
	}
	if o.dedups() && o.OutputMode == OutputRemoved && o.ReportOverrides {
		roles = append(roles, domain.RoleExpenseAccount, domain.RoleExpenseAmount)
	}
	return roles
}

func (o Options) dedups() bool {
	return o.OutputMode == OutputKept || o.OutputMode == OutputRemoved
}

// Preset is a named Options variant with its output file suffix.
type Preset struct {
	Name        string
	Description string
	Suffix      string

	// Dictionary names the built-in dictionary the preset classifies with
	// when no other dictionary source is configured. Empty is the
	// standard one.
	Dictionary string

	classification bool
	vendorRewrite  bool
	memoExtraction bool
	mode           OutputMode
	overrides      bool
	onePerCategory bool
}

func (p Preset) apply(o *Options) {
	o.EnableClassification = p.classification
	o.EnableVendorRewrite = p.vendorRewrite
	o.EnableMemoExtraction = p.memoExtraction
	o.OutputMode = p.mode
	o.ReportOverrides = p.overrides
	o.ReportOneRowPerCategory = p.onePerCategory
}

var presets = map[string]Preset{
	"trader": {
		Name:           "trader",
		Description:    "classify, rewrite vendors, extract memo references; all rows",
		Suffix:         "_updatedfortrader",
		classification: true,
		vendorRewrite:  true,
		memoExtraction: true,
		mode:           OutputAll,
	},
	"trader-basic": {
		Name:           "trader-basic",
		Description:    "classify with the basic dictionary and extract memo references; all rows",
		Suffix:         "_updatedfortrader",
		Dictionary:     classify.BuiltinBasic,
		classification: true,
		memoExtraction: true,
		mode:           OutputAll,
	},
	"filtered": {
		Name:        "filtered",
		Description: "rows kept by the retention window",
		Suffix:      "_filtered for service revenue",
		mode:        OutputKept,
	},
	"removed-only": {
		Name:        "removed-only",
		Description: "rows removed by the retention window, verbatim",
		Suffix:      "_removed_only",
		mode:        OutputRemoved,
	},
	"service-revenue": {
		Name:        "service-revenue",
		Description:    "one removed row per category with service revenue overrides",
		Suffix:         "_removed_only",
		mode:           OutputRemoved,
		overrides:      true,
		onePerCategory: true,
	},
	"service-revenue-all": {
		Name:        "service-revenue-all",
		Description: "every removed row with service revenue overrides",
		Suffix:      "_removed_only",
		mode:        OutputRemoved,
		overrides:   true,
	},
}

// LookupPreset returns the named preset.
func LookupPreset(name string) (Preset, error) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Preset{}, fmt.Errorf("unknown preset %q (known: %s)", name, strings.Join(PresetNames(), ", "))
	}
	return p, nil
}

// PresetNames lists preset names alphabetically.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// WithPreset returns a copy of o with the preset's feature flags applied.
func (o Options) WithPreset(p Preset) Options {
	p.apply(&o)
	return o
}

package classify

import (
	"fmt"
	"sort"
	"strings"
)

// FallbackCode is the reserved account code for descriptions that match no alias.
const FallbackCode = "99000"

// Names of the built-in dictionaries.
const (
	BuiltinStandard = "standard"
	BuiltinBasic    = "basic"
)

// AliasRule maps a set of description phrases to one canonical account code.
type AliasRule struct {
	Code    string   `toml:"code"`
	Aliases []string `toml:"aliases"`
}

// DefaultRules returns the built-in freight, customs and logistics dictionary.
// Order matters only for alias conflicts (the later rule wins) and for
// ordering aliases of equal length.
func DefaultRules() []AliasRule {
	return []AliasRule{
		// Core / COGS freight
		{Code: "50000", Aliases: []string{"material", "materials"}},
		{Code: "51300", Aliases: []string{"international freight", "freight costs (ocean)", "freight cost ocean"}},
		{Code: "55100", Aliases: []string{"delivery"}},
		{Code: "56000", Aliases: []string{"fuel surcharge"}},
		{Code: "55800", Aliases: []string{"overweight"}},
		{Code: "55900", Aliases: []string{"destination fee", "destination terminal handling charges"}},

		// Insurance / courier
		{Code: "51000", Aliases: []string{"freight insurance"}},
		{Code: "51200", Aliases: []string{"courier costs (air)", "courier cost air", "courier air"}},

		// Customs / compliance
		{Code: "51400", Aliases: []string{"customs clearance & admin", "customs clearance and admin"}},
		{Code: "51500", Aliases: []string{"isf fee", "isf fees"}},
		{Code: "59240", Aliases: []string{"duties", "duty", "custom duty 7501", "customs 7501", "customs"}},
		{Code: "55700", Aliases: []string{"aes fee"}},

		// Inland / logistics
		{Code: "51600", Aliases: []string{"drayage"}},
		{Code: "59120", Aliases: []string{"destination drayage", "drayage (destination)"}},
		{Code: "55600", Aliases: []string{"transload", "transload and final delivery"}},
		{Code: "59230", Aliases: []string{"pre pull", "pre-pull"}},

		// Exams / detention / yard
		{Code: "59130", Aliases: []string{"exam", "customs exam fee"}},
		{Code: "59140", Aliases: []string{"detention"}},
		{Code: "59160", Aliases: []string{"dry run"}},
		{Code: "59170", Aliases: []string{"storage"}},
		{Code: "59180", Aliases: []string{"demurrage", "destination demurrage"}},
		{Code: "55300", Aliases: []string{"destination line demurrage"}},
		{Code: "59190", Aliases: []string{"per diem"}},

		// Chassis / terminal
		{Code: "59150", Aliases: []string{"chassis", "destination chassis fee"}},
		{Code: "59200", Aliases: []string{"terminal fee"}},
		{Code: "59110", Aliases: []string{"pier pass", "destination pierpass", "destination pier pass"}},

		// Handling / service
		{Code: "59210", Aliases: []string{"handling fees", "handling fee"}},
		{Code: "53000", Aliases: []string{"service fees"}},

		// Misc. "others_round up" is listed twice in the source ledger map;
		// the later 59100 entry is the one in effect.
		{Code: "59000", Aliases: []string{"others", "others_round up"}},
		{Code: "59100", Aliases: []string{"others_round up"}},

		// Warehouse / EXW
		{Code: "59250", Aliases: []string{"exwork", "ex-work"}},
		{Code: "59260", Aliases: []string{"warehouse in/out", "warehouse in out"}},

		// Bond / commission
		{Code: "51800", Aliases: []string{"bond renewal"}},
		{Code: "52000", Aliases: []string{"commissions paid"}},

		{Code: "59220", Aliases: []string{"ams"}},
	}
}

// BasicRules returns the smaller dictionary used by imports that leave
// vendors untouched. It differs from DefaultRules in several codes, e.g.
// drayage is 59120 and there is no destination line demurrage.
func BasicRules() []AliasRule {
	return []AliasRule{
		{Code: "51300", Aliases: []string{"international freight", "freight costs"}},
		{Code: "51400", Aliases: []string{"customs clearance & admin", "customs clearance and admin"}},
		{Code: "51500", Aliases: []string{"isf fee"}},
		{Code: "51000", Aliases: []string{"freight insurance"}},
		{Code: "50000", Aliases: []string{"material"}},
		{Code: "59000", Aliases: []string{"others", "others_round up"}},
		{Code: "59110", Aliases: []string{"destination pierpass", "destination pier pass"}},
		{Code: "59120", Aliases: []string{"drayage"}},
		{Code: "59130", Aliases: []string{"exam"}},
		{Code: "59140", Aliases: []string{"detention"}},
		{Code: "59150", Aliases: []string{"chassis", "destination chassis fee"}},
		{Code: "59160", Aliases: []string{"dry run"}},
		{Code: "59170", Aliases: []string{"storage"}},
		{Code: "59180", Aliases: []string{"demurrage", "destination demurrage"}},
		{Code: "59190", Aliases: []string{"per diem"}},
		{Code: "59200", Aliases: []string{"terminal fee"}},
		{Code: "59210", Aliases: []string{"handling fees", "handling fee"}},
		{Code: "59220", Aliases: []string{"ams"}},
		{Code: "59230", Aliases: []string{"pre pull"}},
		{Code: "59240", Aliases: []string{"duty", "custom duty 7501"}},
		{Code: "59250", Aliases: []string{"exwork"}},
		{Code: "59260", Aliases: []string{"warehouse in/out"}},
	}
}

var builtins = map[string]func() []AliasRule{
	BuiltinStandard: DefaultRules,
	BuiltinBasic:    BasicRules,
}

// BuiltinRules returns the named built-in dictionary. An empty name is
// the standard one.
func BuiltinRules(name string) ([]AliasRule, error) {
	if name == "" {
		name = BuiltinStandard
	}
	rules, ok := builtins[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown built-in dictionary %q (known: %s)", name, strings.Join(BuiltinNames(), ", "))
	}
	return rules(), nil
}

// BuiltinNames lists the built-in dictionaries alphabetically.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

package ledger

import (
	"strings"

	"github.com/dvloznov/ledger-importer/internal/domain"
)

// DefaultMemoPrefix marks memos that carry a customer reference.
const DefaultMemoPrefix = "GC Aluminum, Inc:"

// VendorRule rewrites any vendor whose name contains Phrase to Display.
type VendorRule struct {
	Phrase  string `toml:"phrase"`
	Display string `toml:"display"`
}

// DefaultVendorRules returns the built-in vendor display names.
func DefaultVendorRules() []VendorRule {
	return []VendorRule{
		{Phrase: "perfect gateway enterprises ltd", Display: "Perfect Gateway"},
	}
}

// RewriteVendor returns the display name for vendor when it contains a known
// phrase (case-insensitive), and vendor unchanged otherwise.
func RewriteVendor(vendor string, rules []VendorRule) (string, bool) {
	key := domain.NormalizeKey(vendor)
	if key == "" {
		return vendor, false
	}
	for _, r := range rules {
		phrase := domain.NormalizeKey(r.Phrase)
		if phrase == "" {
			continue
		}
		if strings.Contains(key, phrase) {
			return r.Display, r.Display != vendor
		}
	}
	return vendor, false
}

// ExtractReference returns the trimmed text following prefix in memo.
// ok is false when memo does not start with prefix or nothing follows it;
// the reference field must then be left untouched.
func ExtractReference(memo, prefix string) (ref string, ok bool) {
	if prefix == "" {
		return "", false
	}
	m := strings.TrimSpace(memo)
	if !strings.HasPrefix(m, prefix) {
		return "", false
	}
	// Last occurrence, so a repeated prefix still yields the trailing text.
	idx := strings.LastIndex(m, prefix)
	ref = strings.TrimSpace(m[idx+len(prefix):])
	return ref, ref != ""
}

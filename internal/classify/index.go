// Package classify maps free-text expense descriptions to canonical account
// codes using an alias dictionary.
package classify

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pelletier/go-toml/v2"

	"github.com/dvloznov/ledger-importer/internal/domain"
)

// Conflict records an alias registered under two different codes.
// The later code is the one the index uses.
type Conflict struct {
	Alias    string
	Previous string
	Code     string
}

func (c Conflict) String() string {
	return fmt.Sprintf("alias %q registered under %s and %s (using %s)", c.Alias, c.Previous, c.Code, c.Code)
}

type entry struct {
	alias string
	code  string
	runes int
}

// Index is an immutable classification index: aliases ordered by descending
// length so a longer, more specific phrase is always tested before any
// shorter phrase it contains. Safe for concurrent use.
type Index struct {
	entries []entry
}

// Result is the outcome of classifying one description.
type Result struct {
	Code    string
	Alias   string // matched alias, empty on fallback
	Matched bool
}

// NewIndex builds an index from rules. Alias strings are lower-cased and
// trimmed; a comma inside an alias splits it into several aliases.
// When an alias appears under two codes the later rule wins and the clash
// is reported in the returned conflicts.
func NewIndex(rules []AliasRule) (*Index, []Conflict) {
	var (
		entries   []entry
		position  = make(map[string]int)
		conflicts []Conflict
	)

	for _, rule := range rules {
		code := strings.TrimSpace(rule.Code)
		if code == "" {
			continue
		}
		for _, raw := range rule.Aliases {
			for _, part := range strings.Split(raw, ",") {
				alias := domain.NormalizeKey(part)
				if alias == "" {
					continue
				}
				if i, ok := position[alias]; ok {
					if entries[i].code != code {
						conflicts = append(conflicts, Conflict{Alias: alias, Previous: entries[i].code, Code: code})
						entries[i].code = code
					}
					continue
				}
				position[alias] = len(entries)
				entries = append(entries, entry{alias: alias, code: code, runes: utf8.RuneCountInString(alias)})
			}
		}
	}

	// Stable: equal-length aliases keep registration order.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].runes > entries[j].runes
	})

	return &Index{entries: entries}, conflicts
}

// Classify resolves text to an account code. Empty text or no matching
// alias yields fallback with Matched=false.
func (x *Index) Classify(text, fallback string) Result {
	needle := domain.NormalizeKey(text)
	if needle == "" || x == nil {
		return Result{Code: fallback}
	}
	for _, e := range x.entries {
		if strings.Contains(needle, e.alias) {
			return Result{Code: e.code, Alias: e.alias, Matched: true}
		}
	}
	return Result{Code: fallback}
}

// Classify is a convenience wrapper returning only the code.
func Classify(text string, index *Index, fallback string) string {
	return index.Classify(text, fallback).Code
}

// Len returns the number of distinct aliases.
func (x *Index) Len() int {
	return len(x.entries)
}

// Alias is one row of the index listing.
type Alias struct {
	Phrase string
	Code   string
}

// Aliases returns the aliases in match order.
func (x *Index) Aliases() []Alias {
	out := make([]Alias, len(x.entries))
	for i, e := range x.entries {
		out[i] = Alias{Phrase: e.alias, Code: e.code}
	}
	return out
}

type rulesFile struct {
	Rules []AliasRule `toml:"rules"`
}

// LoadRulesTOML reads a dictionary file of the form
//
//	[[rules]]
//	code = "51000"
//	aliases = ["freight insurance"]
func LoadRulesTOML(r io.Reader) ([]AliasRule, error) {
	var f rulesFile
	if err := toml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode dictionary: %w", err)
	}
	for i, rule := range f.Rules {
		if strings.TrimSpace(rule.Code) == "" {
			return nil, fmt.Errorf("decode dictionary: rule %d has no code", i+1)
		}
		if len(rule.Aliases) == 0 {
			return nil, fmt.Errorf("decode dictionary: rule %d (%s) has no aliases", i+1, rule.Code)
		}
	}
	return f.Rules, nil
}

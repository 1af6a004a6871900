package tally

import (
	"strings"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Roster is the fixed, alphabetically ordered set of participants.
type Roster struct {
	names  []string
	index  map[string]struct{}
	folded map[string]string
}

// NewRoster builds a roster ordered with Brazilian Portuguese collation.
// Blank entries and duplicates are dropped.
func NewRoster(names []string) Roster {
	r := Roster{
		index:  make(map[string]struct{}, len(names)),
		folded: make(map[string]string, len(names)),
	}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := r.index[n]; dup {
			continue
		}
		r.index[n] = struct{}{}
		r.folded[FoldName(n)] = n
		r.names = append(r.names, n)
	}
	collate.New(language.BrazilianPortuguese).SortStrings(r.names)
	return r
}

// Names returns a copy of the ordered roster.
func (r Roster) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len is the roster size.
func (r Roster) Len() int { return len(r.names) }

// Contains reports exact membership.
func (r Roster) Contains(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Resolve maps user input to the canonical roster identity. Matching ignores
// case, surrounding spaces and diacritics ("joão " resolves to "João").
func (r Roster) Resolve(input string) (string, bool) {
	if r.Contains(input) {
		return input, true
	}
	name, ok := r.folded[FoldName(input)]
	return name, ok
}

// Others returns every roster member except self, in roster order.
func (r Roster) Others(self string) []string {
	out := make([]string, 0, len(r.names))
	for _, n := range r.names {
		if n != self {
			out = append(out, n)
		}
	}
	return out
}

// FoldName lowercases, trims and strips combining marks.
func FoldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		folded = strings.TrimSpace(s)
	}
	return strings.ToLower(folded)
}

// DefaultRoster is the participant list used when none is configured.
var DefaultRoster = []string{
	"Adriano", "Ander", "Borda", "Chico", "Daniel", "Diogo", "Dru", "Eric Aquiar", "Fear", "Felype",
	"Flausino", "Giordano", "Kazuhiro", "Marcos", "Mello", "Paulo", "Pelicano", "Pepeu", "Prince",
	"Red", "Reinaldo", "Rod. Rosa", "Samuel", "Smile", "Tibor", "Uekawa", "Valbert", "Victor",
}

// Package mentions detects tracked brand names inside model responses.
package mentions

import (
	"strings"

	"github.com/brandlens/brandlens/pkg/textx"
)

// Match is one detected brand occurrence. Position is a rune offset into the
// sanitized haystack; Context is a bounded window of the surrounding original
// text with markup characters stripped. Rank is the 1-based order of the
// brand's first occurrence among all distinct brands found in the response;
// repeat occurrences of the same brand reuse that rank.
type Match struct {
	Brand    string
	Position int
	Context  string
	Rank     int
}

const (
	// DefaultMaxHaystackRunes bounds scanning cost on oversized responses.
	DefaultMaxHaystackRunes = 50000
	contextRadius           = 50
	// lengthSlack tolerates punctuation inserted inside a brand name, such as
	// an apostrophe or hyphen the normalizer removes.
	lengthSlack = 2
)

// Extractor scans response text for brand names using normalized matching.
// The scan is deterministic: brands are tried in input-list order and the
// result depends only on (text, brands).
type Extractor struct {
	maxHaystackRunes int
}

// NewExtractor returns an Extractor; maxRunes <= 0 selects the default bound.
func NewExtractor(maxRunes int) *Extractor {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxHaystackRunes
	}
	return &Extractor{maxHaystackRunes: maxRunes}
}

type candidate struct {
	name string
	key  string
	nlen int
}

// matchKey folds a string for comparison: normalized, with all whitespace
// removed, so "Café-Resto" and "cafe resto" compare equal.
func matchKey(s string) string {
	return strings.Join(strings.Fields(textx.Normalize(s)), "")
}

// Extract finds every brand occurrence in text, left to right, first-fit,
// non-overlapping. Brands are matched in the order they appear in brandNames;
// ties at the same position resolve to the earlier list entry.
func (e *Extractor) Extract(text string, brandNames []string) []Match {
	hay := textx.StripAngleBrackets(textx.TruncateRunes(text, e.maxHaystackRunes))
	hayRunes := []rune(hay)

	cands := make([]candidate, 0, len(brandNames))
	for _, name := range brandNames {
		key := matchKey(name)
		if key == "" {
			continue
		}
		cands = append(cands, candidate{name: name, key: key, nlen: len([]rune(name))})
	}
	if len(cands) == 0 || len(hayRunes) == 0 {
		return nil
	}

	var matches []Match
	for i := 0; i < len(hayRunes); {
		// A match must start on a rune that survives normalization. Without
		// this guard a window opening on the space or punctuation before a
		// brand folds to the same key and shifts the reported position left.
		if matchKey(string(hayRunes[i])) == "" {
			i++
			continue
		}
		adv := 1
		matched := false
		for _, c := range cands {
			for l := c.nlen; l <= c.nlen+lengthSlack && i+l <= len(hayRunes); l++ {
				if matchKey(string(hayRunes[i:i+l])) != c.key {
					continue
				}
				matches = append(matches, Match{
					Brand:    c.name,
					Position: i,
					Context:  contextWindow(hayRunes, i, l),
				})
				adv = l
				matched = true
				break
			}
			if matched {
				break
			}
		}
		i += adv
	}

	assignRanks(matches)
	return matches
}

// contextWindow slices the original text around a match and strips characters
// that could carry markup into storage or responses.
func contextWindow(hay []rune, pos, length int) string {
	lo := pos - contextRadius
	if lo < 0 {
		lo = 0
	}
	hi := pos + length + contextRadius
	if hi > len(hay) {
		hi = len(hay)
	}
	return textx.StripContextMarkup(string(hay[lo:hi]))
}

// assignRanks gives the i-th distinct brand (by first occurrence) rank i;
// every match of that brand carries the same rank.
func assignRanks(matches []Match) {
	ranks := make(map[string]int, len(matches))
	next := 1
	for i := range matches {
		r, ok := ranks[matches[i].Brand]
		if !ok {
			r = next
			ranks[matches[i].Brand] = r
			next++
		}
		matches[i].Rank = r
	}
}

// DistinctBrands returns the matched brand names in first-occurrence order.
func DistinctBrands(matches []Match) []string {
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		if _, ok := seen[m.Brand]; ok {
			continue
		}
		seen[m.Brand] = struct{}{}
		out = append(out, m.Brand)
	}
	return out
}

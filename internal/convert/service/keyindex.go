package service

import (
	"strings"
	"unicode"
)

// keyIndex maps a normalized key (lower-cased, non-alphanumerics stripped) to
// the first original key that normalizes to it. It makes field extraction
// resilient to partner naming drift (CPUDuration_s vs cpuduration_s).
type keyIndex map[string]string

func normKey(k string) string {
	var b strings.Builder
	b.Grow(len(k))
	for _, r := range strings.ToLower(k) {
		if unicode.IsLower(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func indexKeys(entry map[string]any) keyIndex {
	idx := make(keyIndex, len(entry))
	for k := range entry {
		nk := normKey(k)
		// Map iteration order is random, so collisions tie-break on the
		// smallest original spelling to keep the index deterministic.
		if cur, ok := idx[nk]; !ok || k < cur {
			idx[nk] = k
		}
	}
	return idx
}

// lookup returns the value of the first candidate that matches exactly, else
// the first whose normalized form is indexed. The second return is false when
// no candidate matches; lookup never fails.
func lookup(entry map[string]any, idx keyIndex, candidates ...string) (any, bool) {
	for _, c := range candidates {
		if v, ok := entry[c]; ok {
			return v, true
		}
		if orig, ok := idx[normKey(c)]; ok {
			return entry[orig], true
		}
	}
	return nil, false
}

package diffpatch

import "strings"

// notFound is the index Locate reports alongside ok=false: the outcome
// is either a unique start index or "not found" — the locator never
// picks arbitrarily among ambiguous candidates.
const notFound = -1

// tieEpsilon is the tolerance used when comparing fuzzy scores for ties.
const tieEpsilon = 1e-9

// Locate runs the three-tier content-addressed search described by the
// hunk locator: exact match, then trailing-whitespace-insensitive
// match, then (if fuzzThreshold > 0) character-level fuzzy match. The
// first tier producing a unique hit wins; any tier producing two or
// more candidates short-circuits to "not found" rather than falling
// through to a later, looser tier.
//
// It reports ok=false when no location could be determined.
func Locate(matchBlock []string, target []string, fuzzThreshold float64) (index int, ok bool) {
	if len(matchBlock) == 0 {
		if len(target) == 0 {
			return 0, true
		}
		return notFound, false
	}
	if len(matchBlock) > len(target) {
		return notFound, false
	}

	if idx, ok := exactSearch(matchBlock, target); ok {
		return idx, true
	} else if idx == ambiguous {
		return notFound, false
	}

	if idx, ok := whitespaceInsensitiveSearch(matchBlock, target); ok {
		return idx, true
	} else if idx == ambiguous {
		return notFound, false
	}

	if fuzzThreshold > 0 {
		if idx, ok := fuzzySearch(matchBlock, target, fuzzThreshold); ok {
			return idx, true
		}
	}

	return notFound, false
}

// ambiguous is a sentinel returned alongside ok=false by the tier
// helpers to distinguish "no candidates" from "more than one
// candidate" — the latter must short-circuit the whole search.
const ambiguous = -2

func exactSearch(matchBlock, target []string) (int, bool) {
	return windowSearch(matchBlock, target, func(window []string) bool {
		return linesEqual(window, matchBlock, func(a, b string) bool { return a == b })
	})
}

func whitespaceInsensitiveSearch(matchBlock, target []string) (int, bool) {
	return windowSearch(matchBlock, target, func(window []string) bool {
		return linesEqual(window, matchBlock, func(a, b string) bool {
			return strings.TrimRight(a, " \t\r") == strings.TrimRight(b, " \t\r")
		})
	})
}

func linesEqual(window, matchBlock []string, eq func(a, b string) bool) bool {
	for i := range matchBlock {
		if !eq(window[i], matchBlock[i]) {
			return false
		}
	}
	return true
}

// windowSearch scans every sliding window of size len(matchBlock) in
// target, collecting those for which pred holds. Returns (index, true)
// for exactly one hit, or (ambiguous, false) for two or more.
func windowSearch(matchBlock, target []string, pred func(window []string) bool) (int, bool) {
	size := len(matchBlock)
	found := notFound
	count := 0
	for start := 0; start+size <= len(target); start++ {
		if pred(target[start : start+size]) {
			count++
			if count == 1 {
				found = start
			} else {
				return ambiguous, false
			}
		}
	}
	if count == 1 {
		return found, true
	}
	return notFound, false
}

func fuzzySearch(matchBlock, target []string, threshold float64) (int, bool) {
	size := len(matchBlock)
	needle := strings.Join(matchBlock, "\n")

	best := -1.0
	var bestIdx []int
	for start := 0; start+size <= len(target); start++ {
		hay := strings.Join(target[start:start+size], "\n")
		score := similarityRatio(needle, hay)
		switch {
		case score > best+tieEpsilon:
			best = score
			bestIdx = []int{start}
		case score > best-tieEpsilon:
			bestIdx = append(bestIdx, start)
		}
	}

	if best < threshold {
		return notFound, false
	}
	if len(bestIdx) == 1 {
		return bestIdx[0], true
	}
	return notFound, false
}

package diva

import "sort"

// closeMatches returns up to n candidates whose similarity ratio to word
// is at least cutoff, best matches first. The ratio is 2*M/T where M is
// the total length of the longest matching blocks and T the combined
// length, which is what field-name typos respond well to.
func closeMatches(word string, candidates []string, n int, cutoff float64) []string {
	type scored struct {
		candidate string
		ratio     float64
	}

	var results []scored
	for _, candidate := range candidates {
		if r := similarityRatio(word, candidate); r >= cutoff {
			results = append(results, scored{candidate, r})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].ratio > results[j].ratio
	})

	if len(results) > n {
		results = results[:n]
	}
	matches := make([]string, len(results))
	for i, r := range results {
		matches[i] = r.candidate
	}
	return matches
}

func similarityRatio(a, b string) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 1
	}
	matched := matchingBlocksLen(a, b)
	return 2 * float64(matched) / float64(total)
}

// matchingBlocksLen sums the lengths of matching blocks found by
// recursively taking the longest common substring and matching the
// pieces on either side of it.
func matchingBlocksLen(a, b string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	ai, bi, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}

	return size +
		matchingBlocksLen(a[:ai], b[:bi]) +
		matchingBlocksLen(a[ai+size:], b[bi+size:])
}

func longestCommonSubstring(a, b string) (ai, bi, size int) {
	// lengths[j] holds the run length ending at a[i-1], b[j-1].
	lengths := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		prev := 0
		for j := 1; j <= len(b); j++ {
			cur := lengths[j]
			if a[i-1] == b[j-1] {
				lengths[j] = prev + 1
				if lengths[j] > size {
					size = lengths[j]
					ai = i - size
					bi = j - size
				}
			} else {
				lengths[j] = 0
			}
			prev = cur
		}
	}
	return ai, bi, size
}

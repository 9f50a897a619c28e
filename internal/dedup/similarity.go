package dedup

// sequenceRatio computes a similarity ratio between two rune sequences with
// the same semantics as Python's difflib.SequenceMatcher.ratio(): twice the
// total length of matching contiguous blocks divided by the sum of the two
// sequence lengths. Titles are short, so the autojunk popularity heuristic is
// not applied.
func sequenceRatio(a, b []rune) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	m := newSequenceMatcher(a, b)
	matched := m.totalMatching()
	return 2.0 * float64(matched) / float64(len(a)+len(b))
}

type sequenceMatcher struct {
	a, b []rune
	// b2j maps each rune in b to the sorted list of indices where it occurs.
	b2j map[rune][]int
}

func newSequenceMatcher(a, b []rune) *sequenceMatcher {
	b2j := make(map[rune][]int, len(b))
	for j, r := range b {
		b2j[r] = append(b2j[r], j)
	}
	return &sequenceMatcher{a: a, b: b, b2j: b2j}
}

// totalMatching returns the total length of all matching blocks, found by
// recursively locating the longest match and recursing on the regions to its
// left and right.
func (m *sequenceMatcher) totalMatching() int {
	return m.matchIn(0, len(m.a), 0, len(m.b))
}

func (m *sequenceMatcher) matchIn(alo, ahi, blo, bhi int) int {
	i, j, size := m.findLongestMatch(alo, ahi, blo, bhi)
	if size == 0 {
		return 0
	}
	total := size
	total += m.matchIn(alo, i, blo, j)
	total += m.matchIn(i+size, ahi, j+size, bhi)
	return total
}

// findLongestMatch finds the longest matching block in a[alo:ahi] and
// b[blo:bhi]. Of all maximal blocks it returns the one starting earliest in a,
// and of those the one starting earliest in b, matching difflib's tie-break.
func (m *sequenceMatcher) findLongestMatch(alo, ahi, blo, bhi int) (int, int, int) {
	besti, bestj, bestsize := alo, blo, 0

	// j2len[j] is the length of the longest match ending at a[i-1], b[j].
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		newj2len := make(map[int]int)
		for _, j := range m.b2j[m.a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			newj2len[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = newj2len
	}

	return besti, bestj, bestsize
}

// TitleSimilarity computes a similarity score in [0,1] between two titles.
// Both titles are normalized first; if either normalizes to the empty string
// the score is 0.0.
func TitleSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}
	na := NormalizeTitle(a)
	nb := NormalizeTitle(b)
	if na == "" || nb == "" {
		return 0.0
	}
	return sequenceRatio([]rune(na), []rune(nb))
}

// AreTitlesSimilar reports whether two titles are similar enough to be
// considered the same paper's title at the given threshold.
func AreTitlesSimilar(a, b string, threshold float64) bool {
	return TitleSimilarity(a, b) >= threshold
}

package tokenizer

// Pair is an ordered pair of adjacent symbols.
type Pair struct {
	Left  string
	Right string
}

// MergeRanks maps a symbol pair to its merge priority. Lower ranks merge
// first; a pair with no entry never merges. Immutable after construction.
type MergeRanks struct {
	ranks map[Pair]int
}

// NewMergeRanks assigns each pair its index in pairs as rank. A pair listed
// twice keeps its first (lowest) rank.
func NewMergeRanks(pairs []Pair) (*MergeRanks, error) {
	if len(pairs) == 0 {
		return nil, loadErrorf("", "merge list is empty")
	}

	m := &MergeRanks{ranks: make(map[Pair]int, len(pairs))}
	for i, p := range pairs {
		if p.Left == "" || p.Right == "" {
			return nil, loadErrorf("", "merge %d has an empty symbol", i)
		}
		if _, dup := m.ranks[p]; dup {
			continue
		}
		m.ranks[p] = i
	}

	return m, nil
}

// Rank returns the merge rank of (left, right).
func (m *MergeRanks) Rank(left, right string) (int, bool) {
	r, ok := m.ranks[Pair{Left: left, Right: right}]
	return r, ok
}

// Len reports the number of distinct pairs.
func (m *MergeRanks) Len() int { return len(m.ranks) }

// each calls fn for every pair; order is unspecified.
func (m *MergeRanks) each(fn func(p Pair, rank int)) {
	for p, r := range m.ranks {
		fn(p, r)
	}
}

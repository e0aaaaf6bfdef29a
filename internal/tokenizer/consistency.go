package tokenizer

import "sort"

// CheckConsistency lists symbols the merge process can produce that vocab
// does not contain: byte symbols, byte symbols with EndOfWord, and merge
// products. An empty result means every reachable symbol has an id.
func CheckConsistency(vocab *Vocab, ranks *MergeRanks) []string {
	var missing []string
	seen := make(map[string]bool)

	check := func(sym string) {
		if seen[sym] {
			return
		}
		seen[sym] = true
		if _, ok := vocab.ID(sym); !ok {
			missing = append(missing, sym)
		}
	}

	for _, s := range baseSymbols() {
		check(s)
		check(s + EndOfWord)
	}
	ranks.each(func(p Pair, _ int) {
		check(p.Left + p.Right)
	})

	sort.Strings(missing)
	return missing
}

// Consistency runs CheckConsistency on the tokenizer's own tables.
func (t *CLIP) Consistency() []string {
	return CheckConsistency(t.vocab, t.ranks)
}

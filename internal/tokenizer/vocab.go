package tokenizer

// Special markers recognised verbatim in input text. They are never
// inserted by Encode.
const (
	StartOfText = "<|startoftext|>"
	EndOfText   = "<|endoftext|>"
)

// Vocab maps finished symbols to token ids. Immutable after construction.
type Vocab struct {
	ids map[string]int
}

// NewVocab copies entries into a Vocab. Empty maps, empty symbols and
// negative ids are rejected.
func NewVocab(entries map[string]int) (*Vocab, error) {
	if len(entries) == 0 {
		return nil, loadErrorf("", "vocabulary is empty")
	}

	v := &Vocab{ids: make(map[string]int, len(entries))}
	for sym, id := range entries {
		if sym == "" {
			return nil, loadErrorf("", "vocabulary contains an empty symbol")
		}
		if id < 0 {
			return nil, loadErrorf("", "symbol %q has negative id %d", sym, id)
		}
		v.ids[sym] = id
	}

	return v, nil
}

// ID looks up the token id of a symbol.
func (v *Vocab) ID(symbol string) (int, bool) {
	id, ok := v.ids[symbol]
	return id, ok
}

// Len reports the number of entries.
func (v *Vocab) Len() int { return len(v.ids) }

// BundleVocab derives the vocabulary that accompanies a bundle merge list:
// byte symbols, byte symbols with EndOfWord, one entry per merge product in
// rank order, then the two special markers. Ids are list positions; a symbol
// listed twice keeps its later position.
func BundleVocab(pairs []Pair) map[string]int {
	base := baseSymbols()
	out := make(map[string]int, 2*len(base)+len(pairs)+2)

	next := 0
	add := func(sym string) {
		out[sym] = next
		next++
	}

	for _, s := range base {
		add(s)
	}
	for _, s := range base {
		add(s + EndOfWord)
	}
	for _, p := range pairs {
		add(p.Left + p.Right)
	}
	add(StartOfText)
	add(EndOfText)

	return out
}

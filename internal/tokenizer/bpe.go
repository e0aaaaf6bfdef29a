package tokenizer

import (
	"cmp"

	heap "github.com/emirpasic/gods/v2/trees/binaryheap"
)

// fragment is one symbol of the working sequence, linked to its
// neighbours by index. A merged-away fragment has an empty sym.
type fragment struct {
	prev, next int
	sym        string
}

// candidate is an adjacent pair waiting in the merge queue. left/right
// snapshot the symbols at push time so stale entries can be recognised.
type candidate struct {
	a, b        int
	rank        int
	left, right string
}

// merge applies BPE to symbols: repeatedly join the adjacent pair with the
// lowest rank, leftmost first, until no ranked pair remains.
func (m *MergeRanks) merge(symbols []string) []string {
	if len(symbols) < 2 {
		return symbols
	}

	frags := make([]fragment, len(symbols))
	for i, s := range symbols {
		frags[i] = fragment{prev: i - 1, next: i + 1, sym: s}
	}

	queue := heap.NewWith[*candidate](func(x, y *candidate) int {
		if c := cmp.Compare(x.rank, y.rank); c != 0 {
			return c
		}
		return cmp.Compare(x.a, y.a)
	})

	push := func(a, b int) {
		if a < 0 || b >= len(frags) {
			return
		}
		left, right := frags[a].sym, frags[b].sym
		if rank, ok := m.Rank(left, right); ok {
			queue.Push(&candidate{a: a, b: b, rank: rank, left: left, right: right})
		}
	}

	for i := range len(frags) - 1 {
		push(i, i+1)
	}

	for !queue.Empty() {
		c, _ := queue.Pop()

		left, right := &frags[c.a], &frags[c.b]
		if left.next != c.b || left.sym != c.left || right.sym != c.right {
			continue
		}

		left.sym += right.sym
		left.next = right.next
		right.sym = ""
		if right.next < len(frags) {
			frags[right.next].prev = c.a
		}

		push(left.prev, c.a)
		push(c.a, left.next)
	}

	out := make([]string, 0, len(frags))
	for i := 0; i < len(frags); i = frags[i].next {
		out = append(out, frags[i].sym)
	}
	return out
}

// wordSymbols converts a pre-token into its initial BPE sequence: one symbol
// per UTF-8 byte, EndOfWord appended to the last.
func wordSymbols(preToken string) []string {
	symbols := BytesToSymbols([]byte(preToken))
	if len(symbols) > 0 {
		symbols[len(symbols)-1] += EndOfWord
	}
	return symbols
}

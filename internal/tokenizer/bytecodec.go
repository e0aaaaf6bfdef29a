package tokenizer

// EndOfWord is appended to the last symbol of every pre-token so that
// merges never span two pre-tokens.
const EndOfWord = "</w>"

// byteTable holds the byte↔symbol mapping used as the BPE alphabet.
// Printable ASCII and most of Latin-1 map to themselves; every other byte
// is remapped to U+0100 and upward, in ascending byte order.
type byteTable struct {
	toRune [256]rune
	toByte map[rune]byte
	// order lists bytes in table order: identity ranges first, then the
	// remapped bytes. Bundle vocabularies number their base symbols this way.
	order [256]byte
}

var bytes2symbols = newByteTable()

func newByteTable() *byteTable {
	t := &byteTable{toByte: make(map[rune]byte, 256)}

	var identity [256]bool
	n := 0
	for _, r := range [][2]int{{'!', '~'}, {0xA1, 0xAC}, {0xAE, 0xFF}} {
		for b := r[0]; b <= r[1]; b++ {
			identity[b] = true
			t.toRune[b] = rune(b)
			t.order[n] = byte(b)
			n++
		}
	}

	shift := 0
	for b := 0; b < 256; b++ {
		if identity[b] {
			continue
		}
		t.toRune[b] = rune(256 + shift)
		t.order[n] = byte(b)
		shift++
		n++
	}

	for b, r := range t.toRune {
		t.toByte[r] = byte(b)
	}

	return t
}

// ByteToSymbol returns the alphabet rune for a raw byte.
func ByteToSymbol(b byte) rune {
	return bytes2symbols.toRune[b]
}

// SymbolToByte is the inverse of ByteToSymbol.
func SymbolToByte(r rune) (byte, bool) {
	b, ok := bytes2symbols.toByte[r]
	return b, ok
}

// BytesToSymbols maps every byte of b to its one-rune symbol.
func BytesToSymbols(b []byte) []string {
	out := make([]string, len(b))
	for i, c := range b {
		out[i] = string(bytes2symbols.toRune[c])
	}
	return out
}

// baseSymbols returns the 256 byte symbols in table order.
func baseSymbols() []string {
	out := make([]string, 256)
	for i, b := range bytes2symbols.order {
		out[i] = string(bytes2symbols.toRune[b])
	}
	return out
}

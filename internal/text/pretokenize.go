package text

import (
	"unicode"

	"github.com/dlclark/regexp2"
)

// pretokenPattern lists the pre-token alternatives in priority order:
// the two boundary markers, English contraction suffixes, a run of
// letters, a single number, and a run of anything that is neither
// whitespace, letter nor number. The literals match case-insensitively.
const pretokenPattern = `(?i:<\|startoftext\|>|<\|endoftext\|>|'s|'t|'re|'ve|'m|'ll|'d)|\p{L}+|\p{N}|[^\s\p{L}\p{N}]+`

var defaultPattern = regexp2.MustCompile(pretokenPattern, regexp2.None)

// PreTokenizer splits normalized text into pre-tokens. It is safe for
// concurrent use.
type PreTokenizer struct {
	re *regexp2.Regexp
}

// NewPreTokenizer returns a PreTokenizer using the CLIP split pattern.
func NewPreTokenizer() *PreTokenizer {
	return &PreTokenizer{re: defaultPattern}
}

// Split returns the pre-tokens of s in source order. Whitespace never
// appears in the output and no other character is dropped: anything the
// pattern leaves unmatched is emitted one code point at a time.
func (p *PreTokenizer) Split(s string) []string {
	if s == "" {
		return nil
	}

	rs := []rune(s)
	out := make([]string, 0, len(rs)/4+1)
	pos := 0

	m, err := p.re.FindRunesMatch(rs)
	for m != nil && err == nil {
		out = appendUnmatched(out, rs[pos:m.Index])
		out = append(out, m.String())
		pos = m.Index + m.Length

		m, err = p.re.FindNextMatch(m)
	}

	out = appendUnmatched(out, rs[pos:])
	if len(out) == 0 {
		return nil
	}
	return out
}

// Split splits s with the default PreTokenizer.
func Split(s string) []string {
	return NewPreTokenizer().Split(s)
}

func appendUnmatched(out []string, rs []rune) []string {
	for _, r := range rs {
		if unicode.IsSpace(r) {
			continue
		}
		out = append(out, string(r))
	}
	return out
}

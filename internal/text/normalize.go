package text

import (
	"html"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes raw input before pre-tokenization:
// HTML entities are unescaped, the text is NFC-composed, every run of
// unicode whitespace becomes one ASCII space, the ends are trimmed and the
// result is lowercased with full unicode case mapping.
// Whitespace-only input yields "". Invalid UTF-8 sequences become U+FFFD.
func Normalize(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, string(utf8.RuneError))
	}

	if strings.IndexByte(s, '&') >= 0 {
		s = html.UnescapeString(s)
	}

	s = norm.NFC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}

	// Casers keep state and are not safe to share across goroutines.
	return cases.Lower(language.Und).String(s)
}

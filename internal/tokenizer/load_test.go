package tokenizer

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReadMerges(t *testing.T) {
	tests := []struct {
		name  string
		input string
		limit int
		want  []Pair
	}{
		{
			name:  "skips version header",
			input: "#version: 0.2\na b\nc d\n",
			want:  []Pair{{"a", "b"}, {"c", "d"}},
		},
		{
			name:  "no header",
			input: "a b\nc d",
			want:  []Pair{{"a", "b"}, {"c", "d"}},
		},
		{
			name:  "skips blank lines and carriage returns",
			input: "#version: 0.2\r\na b\r\n\r\n\nc d\r\n",
			want:  []Pair{{"a", "b"}, {"c", "d"}},
		},
		{
			name:  "limit stops early",
			input: "a b\nc d\ne f\nnot a pair at all\n",
			limit: 2,
			want:  []Pair{{"a", "b"}, {"c", "d"}},
		},
		{
			name:  "end of word symbols",
			input: "t h\nth e</w>\n",
			want:  []Pair{{"t", "h"}, {"th", "e</w>"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadMerges(strings.NewReader(tt.input), tt.limit)
			if err != nil {
				t.Fatalf("ReadMerges: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ReadMerges mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadMerges_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains string
	}{
		{"empty", "", "no pairs"},
		{"header only", "#version: 0.2\n", "no pairs"},
		{"three symbols", "a b\nc d e\n", "line 2"},
		{"one symbol", "a\n", "line 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadMerges(strings.NewReader(tt.input), 0)
			if !errors.Is(err, ErrConfigLoad) {
				t.Fatalf("want ErrConfigLoad, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q does not mention %q", err, tt.contains)
			}
		})
	}
}

func TestReadVocabJSON(t *testing.T) {
	got, err := ReadVocabJSON(strings.NewReader(`{"a</w>": 320, "!": 0}`))
	if err != nil {
		t.Fatalf("ReadVocabJSON: %v", err)
	}
	if diff := cmp.Diff(map[string]int{"a</w>": 320, "!": 0}, got); diff != "" {
		t.Errorf("ReadVocabJSON mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range []string{"", "[1, 2]", "{}", `{"a": "x"}`} {
		if _, err := ReadVocabJSON(strings.NewReader(bad)); !errors.Is(err, ErrConfigLoad) {
			t.Errorf("ReadVocabJSON(%q): want ErrConfigLoad, got %v", bad, err)
		}
	}
}

func TestNewVocab_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		entries map[string]int
	}{
		{"empty", map[string]int{}},
		{"empty symbol", map[string]int{"": 1}},
		{"negative id", map[string]int{"a": -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewVocab(tt.entries); !errors.Is(err, ErrConfigLoad) {
				t.Errorf("want ErrConfigLoad, got %v", err)
			}
		})
	}
}

func TestNewMergeRanks(t *testing.T) {
	m, err := NewMergeRanks([]Pair{{"a", "b"}, {"c", "d"}, {"a", "b"}})
	if err != nil {
		t.Fatalf("NewMergeRanks: %v", err)
	}
	if r, ok := m.Rank("a", "b"); !ok || r != 0 {
		t.Errorf("Rank(a, b) = %d, %v; want 0, true", r, ok)
	}
	if r, ok := m.Rank("c", "d"); !ok || r != 1 {
		t.Errorf("Rank(c, d) = %d, %v; want 1, true", r, ok)
	}
	if _, ok := m.Rank("b", "a"); ok {
		t.Error("Rank(b, a) should be absent")
	}

	if _, err := NewMergeRanks(nil); !errors.Is(err, ErrConfigLoad) {
		t.Errorf("empty list: want ErrConfigLoad, got %v", err)
	}
	if _, err := NewMergeRanks([]Pair{{"a", ""}}); !errors.Is(err, ErrConfigLoad) {
		t.Errorf("empty symbol: want ErrConfigLoad, got %v", err)
	}
}

func TestBundleVocab(t *testing.T) {
	v := BundleVocab(testMerges)

	if len(v) != 2*256+len(testMerges)+2 {
		t.Fatalf("len = %d, want %d", len(v), 2*256+len(testMerges)+2)
	}

	checks := map[string]int{
		"!":         0,
		"a":         64,
		"!</w>":     256,
		"a</w>":     320,
		"at</w>":    512,
		"photo</w>": 518,
		StartOfText: testStartOfTextID,
		EndOfText:   testEndOfTextID,
	}
	for sym, want := range checks {
		if got := v[sym]; got != want {
			t.Errorf("id(%q) = %d, want %d", sym, got, want)
		}
	}
}

func TestBundleVocab_DuplicateKeepsLaterPosition(t *testing.T) {
	v := BundleVocab([]Pair{{"a", "b"}, {"a", "b"}})
	if got := v["ab"]; got != 513 {
		t.Errorf("id(ab) = %d, want 513", got)
	}
}

func TestBundleMergeCount(t *testing.T) {
	if got := BundleMergeCount(DefaultVocabSize); got != 48894 {
		t.Errorf("BundleMergeCount(%d) = %d, want 48894", DefaultVocabSize, got)
	}
}

func TestNewFromBundle(t *testing.T) {
	size := 2*256 + len(testMerges) + 2

	tok, err := NewFromBundle(strings.NewReader(testBundle()+"extra pair\n"), size)
	if err != nil {
		t.Fatalf("NewFromBundle: %v", err)
	}

	got, err := tok.Encode("a photo of a cat")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if diff := cmp.Diff([]int{320, 518, 514, 320, 513}, got); diff != "" {
		t.Errorf("Encode mismatch (-want +got):\n%s", diff)
	}
	if id, ok := tok.vocab.ID(EndOfText); !ok || id != testEndOfTextID {
		t.Errorf("id(EndOfText) = %d, %v; want %d", id, ok, testEndOfTextID)
	}
	if _, ok := tok.vocab.ID("extrapair"); ok {
		t.Error("merges past the vocab size should not be read")
	}
}

func TestNewFromBundle_TooShort(t *testing.T) {
	_, err := NewFromBundle(strings.NewReader(testBundle()), DefaultVocabSize)
	if !errors.Is(err, ErrConfigLoad) {
		t.Fatalf("want ErrConfigLoad, got %v", err)
	}

	_, err = NewFromBundle(strings.NewReader(testBundle()), 100)
	if !errors.Is(err, ErrConfigLoad) {
		t.Fatalf("small vocab: want ErrConfigLoad, got %v", err)
	}
}

func TestNewFromReaders(t *testing.T) {
	vocab := `{"c": 0, "a": 1, "t</w>": 2, "at</w>": 3, "cat</w>": 4}`
	merges := "#version: 0.2\na t</w>\nc at</w>\n"

	tok, err := NewFromReaders(strings.NewReader(vocab), strings.NewReader(merges))
	if err != nil {
		t.Fatalf("NewFromReaders: %v", err)
	}
	got, err := tok.Encode("CAT")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if diff := cmp.Diff([]int{4}, got); diff != "" {
		t.Errorf("Encode mismatch (-want +got):\n%s", diff)
	}

	if missing := CheckConsistency(tok.vocab, tok.ranks); len(missing) == 0 {
		t.Error("partial vocabulary should report missing base symbols")
	}
}

func TestCheckConsistency_Bundle(t *testing.T) {
	tok := newTestTokenizer(t)
	if missing := CheckConsistency(tok.vocab, tok.ranks); len(missing) != 0 {
		t.Errorf("bundle vocabulary missing %q", missing)
	}
}

func TestCheckConsistency_ReportsDroppedSymbol(t *testing.T) {
	entries := BundleVocab(testMerges)
	delete(entries, "hello</w>")
	delete(entries, "é")

	tok, err := newFromTables(entries, testMerges)
	if err != nil {
		t.Fatalf("newFromTables: %v", err)
	}
	got := CheckConsistency(tok.vocab, tok.ranks)
	if diff := cmp.Diff([]string{"hello</w>", "é"}, got); diff != "" {
		t.Errorf("CheckConsistency mismatch (-want +got):\n%s", diff)
	}
}

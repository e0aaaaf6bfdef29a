package tokenizer

import (
	"os"
	"strings"
	"testing"

	"github.com/example/go-clip-tokenizer/internal/testutil"
)

// testMerges is a tiny merge list covering a handful of english words.
// With BundleVocab the products are numbered from 512 in this order.
var testMerges = []Pair{
	{"a", "t</w>"},    // 512 at</w>
	{"c", "at</w>"},   // 513 cat</w>
	{"o", "f</w>"},    // 514 of</w>
	{"p", "h"},        // 515 ph
	{"ph", "o"},       // 516 pho
	{"t", "o</w>"},    // 517 to</w>
	{"pho", "to</w>"}, // 518 photo</w>
	{"h", "e"},        // 519 he
	{"l", "l"},        // 520 ll
	{"he", "ll"},      // 521 hell
	{"hell", "o</w>"}, // 522 hello</w>
	{"!", "!"},        // 523 !!
	{"!!", "!</w>"},   // 524 !!!</w>
}

// Ids of the two markers, directly after the merge products.
const (
	testStartOfTextID = 525
	testEndOfTextID   = 526
)

// letterID returns the bundle id of a printable ASCII byte.
func letterID(c byte, endOfWord bool) int {
	id := int(c) - '!'
	if endOfWord {
		id += 256
	}
	return id
}

func newTestTokenizer(t *testing.T, opts ...Option) *CLIP {
	t.Helper()

	tok, err := newFromTables(BundleVocab(testMerges), testMerges, opts...)
	if err != nil {
		t.Fatalf("build test tokenizer: %v", err)
	}
	return tok
}

func testBundle() string {
	var sb strings.Builder
	sb.WriteString("#version: 0.2\n")
	for _, p := range testMerges {
		sb.WriteString(p.Left + " " + p.Right + "\n")
	}
	return sb.String()
}

func loadCLIP(t *testing.T) *CLIP {
	t.Helper()

	vocabPath, mergesPath := testutil.RequireCLIPAssets(t)

	vf, err := os.Open(vocabPath)
	if err != nil {
		t.Fatalf("open vocab: %v", err)
	}
	defer vf.Close()

	mf, err := os.Open(mergesPath)
	if err != nil {
		t.Fatalf("open merges: %v", err)
	}
	defer mf.Close()

	tok, err := NewFromReaders(vf, mf)
	if err != nil {
		t.Fatalf("NewFromReaders: %v", err)
	}
	return tok
}

package model

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/example/go-clip-tokenizer/internal/tokenizer"
)

type VerifyOptions struct {
	Load   LoadOptions
	Stdout io.Writer
	Stderr io.Writer
}

// Probe is a known input and its expected encoding. A nil Want only checks
// the number of ids.
type Probe struct {
	Name    string
	Text    string
	Want    []int
	WantLen int
}

// ReferenceProbes hold for the released CLIP vocabulary.
var ReferenceProbes = []Probe{
	{Name: "caption", Text: "a photo of a cat", Want: []int{320, 1125, 539, 320, 2368}},
	{Name: "empty", Text: "", Want: []int{}},
	{Name: "whitespace", Text: " \t\n ", Want: []int{}},
	{Name: "single letter", Text: "a", WantLen: 1},
}

// Verify loads the configured tokenizer, checks that its vocabulary covers
// every reachable symbol and runs probes against it. A vocabulary of the
// released size gets the reference probes; others only structural checks.
func Verify(opts VerifyOptions) error {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}

	tok, err := LoadTokenizer(opts.Load)
	if err != nil {
		return fmt.Errorf("load tokenizer: %w", err)
	}
	fmt.Fprintln(opts.Stdout, "PASS load")

	if missing := tok.Consistency(); len(missing) > 0 {
		fmt.Fprintf(opts.Stderr, "FAIL consistency: %d symbols missing, first %q\n", len(missing), missing[0])
		return fmt.Errorf("vocabulary misses %d reachable symbols: %w", len(missing), tokenizer.ErrConfigMismatch)
	}
	fmt.Fprintln(opts.Stdout, "PASS consistency")

	probes := structuralProbes()
	if tok.VocabSize() == tokenizer.DefaultVocabSize {
		probes = ReferenceProbes
	}

	return RunProbes(tok, probes, opts.Stdout, opts.Stderr)
}

// RunProbes encodes every probe, reporting PASS/FAIL lines, and returns an
// error naming the failed probes.
func RunProbes(tok tokenizer.Tokenizer, probes []Probe, stdout, stderr io.Writer) error {
	var failures []string

	for _, p := range probes {
		if err := checkProbe(tok, p); err != nil {
			fmt.Fprintf(stderr, "FAIL %s: %v\n", p.Name, err)
			failures = append(failures, p.Name)
			continue
		}
		fmt.Fprintf(stdout, "PASS %s\n", p.Name)
	}

	if len(failures) > 0 {
		return fmt.Errorf("verify failed for %d probe(s): %s", len(failures), strings.Join(failures, ", "))
	}
	return nil
}

func checkProbe(tok tokenizer.Tokenizer, p Probe) error {
	ids, err := tok.Encode(p.Text)
	if err != nil {
		return err
	}
	n, err := tok.Count(p.Text)
	if err != nil {
		return err
	}
	if n != len(ids) {
		return fmt.Errorf("count %d differs from encode length %d", n, len(ids))
	}

	if p.Want != nil {
		if !slices.Equal(ids, p.Want) {
			return fmt.Errorf("encode(%q) = %v, want %v", p.Text, ids, p.Want)
		}
		return nil
	}
	if len(ids) != p.WantLen {
		return fmt.Errorf("encode(%q) returned %d ids, want %d", p.Text, len(ids), p.WantLen)
	}
	return nil
}

func structuralProbes() []Probe {
	return []Probe{
		{Name: "empty", Text: "", Want: []int{}},
		{Name: "whitespace", Text: " \t\n ", Want: []int{}},
		{Name: "single letter", Text: "a", WantLen: 1},
	}
}

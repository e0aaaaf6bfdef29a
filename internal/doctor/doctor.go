// Package doctor provides environment preflight checks for cliptok.
package doctor

import (
	"fmt"
	"io"
	"os"

	"github.com/example/go-clip-tokenizer/internal/config"
	"github.com/example/go-clip-tokenizer/internal/tokenizer"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// smokeText is encoded once after loading to exercise the full pipeline.
const smokeText = "a photo of a cat"

// Tokenizer is the subset of *tokenizer.CLIP the checks need.
type Tokenizer interface {
	tokenizer.Tokenizer
	VocabSize() int
	Consistency() []string
}

// LoadFunc loads the configured tokenizer.
type LoadFunc func() (Tokenizer, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// Format is the configured tokenizer data format.
	Format string
	// DataFiles is the list of tokenizer data files to verify on disk.
	DataFiles []string
	// Load builds the tokenizer. A nil Load skips the load, vocabulary and
	// encode checks.
	Load LoadFunc
	// VocabSize is the expected vocabulary size; 0 accepts any size.
	VocabSize int
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- format -----------------------------------------------------------
	format, err := config.NormalizeFormat(cfg.Format)
	if err != nil {
		res.fail(fmt.Sprintf("tokenizer format: %v", err))
		fmt.Fprintf(w, "%s tokenizer format: %v\n", FailMark, err)
	} else {
		fmt.Fprintf(w, "%s tokenizer format: %s\n", PassMark, format)
	}

	// ---- data files -------------------------------------------------------
	for _, path := range cfg.DataFiles {
		if err := checkDataFile(path); err != nil {
			res.fail(fmt.Sprintf("data file %q: %v", path, err))
			fmt.Fprintf(w, "%s data file %s: %v\n", FailMark, path, err)
		} else {
			fmt.Fprintf(w, "%s data file: %s\n", PassMark, path)
		}
	}

	if cfg.Load == nil {
		fmt.Fprintf(w, "%s tokenizer load: skipped\n", PassMark)
		return res
	}

	// ---- load -------------------------------------------------------------
	tok, err := cfg.Load()
	if err != nil {
		res.fail(fmt.Sprintf("tokenizer load: %v", err))
		fmt.Fprintf(w, "%s tokenizer load: %v\n", FailMark, err)
		return res
	}
	fmt.Fprintf(w, "%s tokenizer load: %d vocabulary entries\n", PassMark, tok.VocabSize())

	// ---- vocabulary -------------------------------------------------------
	if err := checkVocabSize(tok.VocabSize(), cfg.VocabSize); err != nil {
		res.fail(fmt.Sprintf("vocab size: %v", err))
		fmt.Fprintf(w, "%s vocab size: %v\n", FailMark, err)
	}

	if missing := tok.Consistency(); len(missing) > 0 {
		res.fail(fmt.Sprintf("vocab consistency: %d merge symbols missing, first %q", len(missing), missing[0]))
		fmt.Fprintf(w, "%s vocab consistency: %d merge symbols missing\n", FailMark, len(missing))
	} else {
		fmt.Fprintf(w, "%s vocab consistency: ok\n", PassMark)
	}

	// ---- encode -----------------------------------------------------------
	if err := checkEncode(tok); err != nil {
		res.fail(fmt.Sprintf("encode: %v", err))
		fmt.Fprintf(w, "%s encode: %v\n", FailMark, err)
	} else {
		fmt.Fprintf(w, "%s encode: ok\n", PassMark)
	}

	return res
}

func checkDataFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("not found")
	}
	if info.IsDir() {
		return fmt.Errorf("is a directory")
	}
	if info.Size() == 0 {
		return fmt.Errorf("empty")
	}
	return nil
}

// checkVocabSize returns an error if want is set and differs from got.
func checkVocabSize(got, want int) error {
	if want > 0 && got != want {
		return fmt.Errorf("got %d entries, configured %d", got, want)
	}
	return nil
}

func checkEncode(tok tokenizer.Tokenizer) error {
	ids, err := tok.Encode(smokeText)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("%q produced no ids", smokeText)
	}
	n, err := tok.Count(smokeText)
	if err != nil {
		return err
	}
	if n != len(ids) {
		return fmt.Errorf("count %d disagrees with %d encoded ids", n, len(ids))
	}
	return nil
}

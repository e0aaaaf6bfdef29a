package tokenizer

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigLoad marks vocabulary or merge data that could not be used to
	// build a tokenizer. No tokenizer is returned alongside it.
	ErrConfigLoad = errors.New("tokenizer configuration load failed")

	// ErrConfigMismatch marks a BPE symbol that has no vocabulary entry,
	// meaning the vocabulary and merge tables were not generated together.
	ErrConfigMismatch = errors.New("tokenizer vocabulary and merges are inconsistent")
)

// LoadError reports a failure to read or validate tokenizer data.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("load tokenizer data: %v", e.Err)
	}
	return fmt.Sprintf("load tokenizer data from %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool { return target == ErrConfigLoad }

func loadErrorf(source, format string, args ...any) error {
	return &LoadError{Source: source, Err: fmt.Errorf(format, args...)}
}

// MismatchError reports a merged symbol missing from the vocabulary.
type MismatchError struct {
	Symbol   string
	PreToken string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("symbol %q (from pre-token %q) has no vocabulary id", e.Symbol, e.PreToken)
}

func (e *MismatchError) Is(target error) bool { return target == ErrConfigMismatch }

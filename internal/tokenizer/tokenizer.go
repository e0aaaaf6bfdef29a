// Package tokenizer implements the CLIP byte-pair-encoding tokenizer.
// Output ids match the reference OpenAI/HuggingFace CLIP tokenizer with
// start/end tokens disabled.
package tokenizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	textpkg "github.com/example/go-clip-tokenizer/internal/text"
	"golang.org/x/sync/errgroup"
)

// ContextLength is the text window of the released CLIP models. Encode
// never truncates to it.
const ContextLength = 77

// Tokenizer encodes text into token ids.
type Tokenizer interface {
	// Encode returns the token ids of text, without start/end tokens.
	Encode(text string) ([]int, error)
	// Count returns len(Encode(text)).
	Count(text string) (int, error)
}

// Splitter produces pre-tokens from normalized text.
type Splitter interface {
	Split(s string) []string
}

type options struct {
	logger   *slog.Logger
	splitter Splitter
}

// Option configures a CLIP tokenizer.
type Option func(*options)

// WithLogger sets the logger used for construction and mismatch reports.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSplitter replaces the default CLIP pre-tokenizer.
func WithSplitter(s Splitter) Option {
	return func(o *options) { o.splitter = s }
}

// CLIP is a CLIP BPE tokenizer. Its tables are immutable and its cache is
// safe for concurrent use, so one instance can serve any number of
// goroutines.
type CLIP struct {
	vocab    *Vocab
	ranks    *MergeRanks
	cache    *bpeCache
	splitter Splitter
	log      *slog.Logger
}

var _ Tokenizer = (*CLIP)(nil)

// New builds a tokenizer from loaded tables.
func New(vocab *Vocab, ranks *MergeRanks, opts ...Option) (*CLIP, error) {
	if vocab == nil || ranks == nil {
		return nil, &LoadError{Err: errors.New("vocabulary and merges are both required")}
	}

	o := options{logger: slog.Default()}
	for _, fn := range opts {
		fn(&o)
	}
	if o.splitter == nil {
		o.splitter = textpkg.NewPreTokenizer()
	}

	o.logger.Debug("tokenizer ready",
		slog.Int("vocab", vocab.Len()),
		slog.Int("merges", ranks.Len()),
	)

	return &CLIP{
		vocab:    vocab,
		ranks:    ranks,
		cache:    newBPECache(),
		splitter: o.splitter,
		log:      o.logger,
	}, nil
}

// NewFromReaders builds a tokenizer from a vocab.json stream and a merges
// stream.
func NewFromReaders(vocabJSON, merges io.Reader, opts ...Option) (*CLIP, error) {
	entries, err := ReadVocabJSON(vocabJSON)
	if err != nil {
		return nil, err
	}
	pairs, err := ReadMerges(merges, 0)
	if err != nil {
		return nil, err
	}
	return newFromTables(entries, pairs, opts...)
}

// NewFromBundle builds a tokenizer from an OpenAI merges bundle, deriving a
// vocabulary of vocabSize entries from it.
func NewFromBundle(bundle io.Reader, vocabSize int, opts ...Option) (*CLIP, error) {
	if vocabSize <= 0 {
		vocabSize = DefaultVocabSize
	}
	n := BundleMergeCount(vocabSize)
	if n <= 0 {
		return nil, loadErrorf("", "vocab size %d leaves no room for merges", vocabSize)
	}

	pairs, err := ReadMerges(bundle, n)
	if err != nil {
		return nil, err
	}
	if len(pairs) < n {
		return nil, loadErrorf("", "bundle has %d merges, vocab size %d needs %d", len(pairs), vocabSize, n)
	}
	return newFromTables(BundleVocab(pairs), pairs, opts...)
}

func newFromTables(entries map[string]int, pairs []Pair, opts ...Option) (*CLIP, error) {
	vocab, err := NewVocab(entries)
	if err != nil {
		return nil, err
	}
	ranks, err := NewMergeRanks(pairs)
	if err != nil {
		return nil, err
	}
	return New(vocab, ranks, opts...)
}

// Encode normalizes and pre-tokenizes text, merges every pre-token and
// returns the concatenated ids. A *MismatchError is returned if a merged
// symbol is missing from the vocabulary; the tokenizer stays usable.
func (t *CLIP) Encode(text string) ([]int, error) {
	ids := []int{}
	err := t.walk(text, func(_ string, id int) {
		ids = append(ids, id)
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Count returns the number of ids Encode would return.
func (t *CLIP) Count(text string) (int, error) {
	n := 0
	err := t.walk(text, func(string, int) { n++ })
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Tokens returns the vocabulary symbols behind Encode's ids.
func (t *CLIP) Tokens(text string) ([]string, error) {
	symbols := []string{}
	err := t.walk(text, func(sym string, _ int) {
		symbols = append(symbols, sym)
	})
	if err != nil {
		return nil, err
	}
	return symbols, nil
}

// EncodeBatch encodes texts concurrently with at most workers goroutines
// (unbounded if workers <= 0). Results keep the order of texts.
func (t *CLIP) EncodeBatch(ctx context.Context, texts []string, workers int) ([][]int, error) {
	out := make([][]int, len(texts))

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for i, s := range texts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ids, err := t.Encode(s)
			if err != nil {
				return fmt.Errorf("text %d: %w", i, err)
			}
			out[i] = ids
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// VocabSize reports the number of vocabulary entries.
func (t *CLIP) VocabSize() int { return t.vocab.Len() }

// CacheStats reports the size and hit counts of the BPE cache.
func (t *CLIP) CacheStats() CacheStats {
	return t.cache.stats()
}

func (t *CLIP) walk(text string, emit func(symbol string, id int)) error {
	for _, pre := range t.splitter.Split(textpkg.Normalize(text)) {
		for _, sym := range t.bpe(pre) {
			id, ok := t.vocab.ID(sym)
			if !ok {
				t.log.Error("bpe symbol missing from vocabulary",
					slog.String("symbol", sym),
					slog.String("pre_token", pre),
				)
				return &MismatchError{Symbol: sym, PreToken: pre}
			}
			emit(sym, id)
		}
	}
	return nil
}

// bpe returns the merged symbols of one pre-token, consulting the cache.
func (t *CLIP) bpe(preToken string) []string {
	if preToken == StartOfText || preToken == EndOfText {
		if _, ok := t.vocab.ID(preToken); ok {
			return []string{preToken}
		}
	}

	return t.cache.getOrCompute(preToken, func() []string {
		return t.ranks.merge(wordSymbols(preToken))
	})
}

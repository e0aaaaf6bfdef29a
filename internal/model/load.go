package model

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/example/go-clip-tokenizer/internal/config"
	"github.com/example/go-clip-tokenizer/internal/tokenizer"
	"github.com/klauspost/compress/gzip"
)

type LoadOptions struct {
	// Format is config.FormatHF or config.FormatBundle; aliases are accepted.
	Format     string
	VocabPath  string
	MergesPath string
	BundlePath string
	// VocabSize applies to the bundle format only.
	VocabSize int
	Logger    *slog.Logger
}

// LoadOptionsFromConfig maps the tokenizer settings of cfg.
func LoadOptionsFromConfig(cfg config.Config) LoadOptions {
	return LoadOptions{
		Format:     cfg.Tokenizer.Format,
		VocabPath:  cfg.Paths.VocabPath,
		MergesPath: cfg.Paths.MergesPath,
		BundlePath: cfg.Paths.BundlePath,
		VocabSize:  cfg.Tokenizer.VocabSize,
	}
}

// LoadTokenizer reads tokenizer data from disk. Any failure is a
// *tokenizer.LoadError naming the offending file.
func LoadTokenizer(opts LoadOptions) (*tokenizer.CLIP, error) {
	format, err := config.NormalizeFormat(opts.Format)
	if err != nil {
		return nil, &tokenizer.LoadError{Err: err}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch format {
	case config.FormatBundle:
		return loadBundle(opts.BundlePath, opts.VocabSize, logger)
	default:
		return loadHF(opts.VocabPath, opts.MergesPath, logger)
	}
}

func loadHF(vocabPath, mergesPath string, logger *slog.Logger) (*tokenizer.CLIP, error) {
	vf, err := openData(vocabPath)
	if err != nil {
		return nil, err
	}
	defer vf.Close()

	entries, err := tokenizer.ReadVocabJSON(vf)
	if err != nil {
		return nil, withSource(err, vocabPath)
	}

	mf, err := openData(mergesPath)
	if err != nil {
		return nil, err
	}
	defer mf.Close()

	pairs, err := tokenizer.ReadMerges(mf, 0)
	if err != nil {
		return nil, withSource(err, mergesPath)
	}

	vocab, err := tokenizer.NewVocab(entries)
	if err != nil {
		return nil, withSource(err, vocabPath)
	}
	ranks, err := tokenizer.NewMergeRanks(pairs)
	if err != nil {
		return nil, withSource(err, mergesPath)
	}

	logger.Info("loaded tokenizer",
		slog.String("format", config.FormatHF),
		slog.String("vocab", vocabPath),
		slog.String("merges", mergesPath),
	)
	return tokenizer.New(vocab, ranks, tokenizer.WithLogger(logger))
}

func loadBundle(path string, vocabSize int, logger *slog.Logger) (*tokenizer.CLIP, error) {
	f, err := openData(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok, err := tokenizer.NewFromBundle(f, vocabSize, tokenizer.WithLogger(logger))
	if err != nil {
		return nil, withSource(err, path)
	}

	logger.Info("loaded tokenizer",
		slog.String("format", config.FormatBundle),
		slog.String("bundle", path),
		slog.Int("vocab_size", vocabSize),
	)
	return tok, nil
}

// openData opens path, transparently decompressing ".gz" files.
func openData(path string) (io.ReadCloser, error) {
	if path == "" {
		return nil, &tokenizer.LoadError{Err: fmt.Errorf("path is empty")}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &tokenizer.LoadError{Source: path, Err: err}
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}

	zr, err := gzip.NewReader(bufio.NewReader(f))
	if err != nil {
		_ = f.Close()
		return nil, &tokenizer.LoadError{Source: path, Err: fmt.Errorf("open gzip stream: %w", err)}
	}
	return &gzipFile{Reader: zr, file: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	zerr := g.Reader.Close()
	ferr := g.file.Close()
	if zerr != nil {
		return zerr
	}
	return ferr
}

// withSource attaches path to a tokenizer.LoadError lacking one.
func withSource(err error, path string) error {
	if le, ok := err.(*tokenizer.LoadError); ok && le.Source == "" {
		return &tokenizer.LoadError{Source: path, Err: le.Err}
	}
	return err
}

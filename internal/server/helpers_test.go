package server_test

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/example/go-clip-tokenizer/internal/tokenizer"
)

// testBundle merges "cat" and "photo"; with 2*256 base symbols, 7 merges and
// the two markers the bundle vocabulary has 521 entries.
const testBundle = `#version: 0.2
a t</w>
c at</w>
p h
ph o
t o</w>
pho to</w>
o f</w>
`

const testVocabSize = 2*256 + 7 + 2

// "a photo of a cat" with the test bundle.
var captionIDs = []int{320, 517, 518, 320, 513}

func newTestTokenizer(t *testing.T) *tokenizer.CLIP {
	t.Helper()

	tok, err := tokenizer.NewFromBundle(strings.NewReader(testBundle), testVocabSize)
	if err != nil {
		t.Fatalf("NewFromBundle: %v", err)
	}
	return tok
}

// stubEncoder returns canned results and can block until released.
type stubEncoder struct {
	ids     []int
	err     error
	block   chan struct{}
	started chan struct{}
}

func (s *stubEncoder) wait() {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
}

func (s *stubEncoder) Encode(string) ([]int, error) {
	s.wait()
	return s.ids, s.err
}

func (s *stubEncoder) Count(string) (int, error) {
	s.wait()
	return len(s.ids), s.err
}

func (s *stubEncoder) EncodeBatch(ctx context.Context, texts []string, _ int) ([][]int, error) {
	s.wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]int, len(texts))
	for i := range texts {
		out[i] = s.ids
	}
	return out, nil
}

func (s *stubEncoder) CacheStats() tokenizer.CacheStats { return tokenizer.CacheStats{} }

// capturingHandler captures all slog records during a test.
type capturingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (c *capturingHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }
func (c *capturingHandler) Handle(_ context.Context, r slog.Record) error {
	c.mu.Lock()
	c.records = append(c.records, r)
	c.mu.Unlock()
	return nil
}
func (c *capturingHandler) WithAttrs(_ []slog.Attr) slog.Handler { return c }
func (c *capturingHandler) WithGroup(_ string) slog.Handler      { return c }

// find returns the attributes of the first record with the given message.
func (c *capturingHandler) find(msg string) (map[string]any, slog.Level, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range c.records {
		if r.Message != msg {
			continue
		}
		m := make(map[string]any)
		r.Attrs(func(a slog.Attr) bool {
			m[a.Key] = a.Value.Any()
			return true
		})
		return m, r.Level, true
	}
	return nil, 0, false
}

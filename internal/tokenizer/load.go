package tokenizer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// DefaultVocabSize is the size of the released CLIP vocabulary.
const DefaultVocabSize = 49408

// ReadVocabJSON parses a vocab.json object mapping symbols to ids.
func ReadVocabJSON(r io.Reader) (map[string]int, error) {
	var entries map[string]int
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, &LoadError{Err: fmt.Errorf("decode vocab json: %w", err)}
	}
	if len(entries) == 0 {
		return nil, loadErrorf("", "vocab json has no entries")
	}
	return entries, nil
}

// ReadMerges parses a merges list: an optional "#version" header line, then
// one "left right" pair per line. Blank lines are skipped. If limit is
// positive, reading stops after limit pairs.
func ReadMerges(r io.Reader, limit int) ([]Pair, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var pairs []Pair
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if line == 1 && strings.HasPrefix(text, "#version") {
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, loadErrorf("", "merges line %d: want 2 symbols, got %d", line, len(fields))
		}
		pairs = append(pairs, Pair{Left: fields[0], Right: fields[1]})

		if limit > 0 && len(pairs) == limit {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &LoadError{Err: fmt.Errorf("read merges: %w", err)}
	}
	if len(pairs) == 0 {
		return nil, loadErrorf("", "merges list has no pairs")
	}

	return pairs, nil
}

// BundleMergeCount is the number of merges a bundle of vocabSize entries
// contributes: everything except the 512 byte symbols and the two markers.
func BundleMergeCount(vocabSize int) int {
	return vocabSize - 2*256 - 2
}

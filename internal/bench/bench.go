// Package bench provides benchmarking primitives for the cliptok bench command.
package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/example/go-clip-tokenizer/internal/tokenizer"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/sync/errgroup"
)

// ---------------------------------------------------------------------------
// Run result and stats
// ---------------------------------------------------------------------------

// RunResult holds the timing and output size of a single encode pass.
type RunResult struct {
	Index        int
	Cold         bool // true for the first run (empty BPE cache)
	Duration     time.Duration
	Texts        int
	Tokens       int
	TokensPerSec float64
}

// Stats holds aggregate timing statistics across all runs.
type Stats struct {
	Min              time.Duration
	Max              time.Duration
	Mean             time.Duration
	MeanTokensPerSec float64
}

// ComputeStats calculates min, max and mean over a slice of durations.
// The slice must be non-empty.
func ComputeStats(durations []time.Duration) Stats {
	if len(durations) == 0 {
		return Stats{}
	}
	mn, mx := durations[0], durations[0]
	var sum time.Duration
	for _, d := range durations {
		if d < mn {
			mn = d
		}
		if d > mx {
			mx = d
		}
		sum += d
	}
	return Stats{
		Min:  mn,
		Max:  mx,
		Mean: sum / time.Duration(len(durations)),
	}
}

// Summarize computes Stats over runs, including mean throughput.
func Summarize(runs []RunResult) Stats {
	durations := make([]time.Duration, len(runs))
	var tps float64
	for i, r := range runs {
		durations[i] = r.Duration
		tps += r.TokensPerSec
	}

	s := ComputeStats(durations)
	if len(runs) > 0 {
		s.MeanTokensPerSec = tps / float64(len(runs))
	}
	return s
}

// CalcTokensPerSec returns tokens / elapsed seconds.
// Returns 0 if elapsed is zero to avoid division by zero.
func CalcTokensPerSec(tokens int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(tokens) / elapsed.Seconds()
}

// ---------------------------------------------------------------------------
// Runner
// ---------------------------------------------------------------------------

// Options controls a bench run.
type Options struct {
	Texts []string
	Runs  int
	// Concurrency bounds the goroutines encoding within one run.
	Concurrency int
}

// Run encodes opts.Texts opts.Runs times with tok. The first run is reported
// as cold; pass a freshly loaded tokenizer for that to hold.
func Run(ctx context.Context, tok tokenizer.Tokenizer, opts Options) ([]RunResult, error) {
	if opts.Runs < 1 {
		return nil, fmt.Errorf("runs must be at least 1")
	}
	if len(opts.Texts) == 0 {
		return nil, fmt.Errorf("at least one text is required")
	}
	workers := opts.Concurrency
	if workers < 1 {
		workers = 1
	}

	results := make([]RunResult, 0, opts.Runs)
	for i := range opts.Runs {
		start := time.Now()
		tokens, err := encodeAll(ctx, tok, opts.Texts, workers)
		if err != nil {
			return nil, fmt.Errorf("run %d failed: %w", i+1, err)
		}
		dur := time.Since(start)

		results = append(results, RunResult{
			Index:        i,
			Cold:         i == 0,
			Duration:     dur,
			Texts:        len(opts.Texts),
			Tokens:       tokens,
			TokensPerSec: CalcTokensPerSec(tokens, dur),
		})
	}

	return results, nil
}

func encodeAll(ctx context.Context, tok tokenizer.Tokenizer, texts []string, workers int) (int, error) {
	counts := make([]int, len(texts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, s := range texts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ids, err := tok.Encode(s)
			if err != nil {
				return err
			}
			counts[i] = len(ids)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	return total, nil
}

// ---------------------------------------------------------------------------
// Throughput gate
// ---------------------------------------------------------------------------

// CheckTokensPerSecThreshold returns an error if mean < threshold.
// A threshold of 0 disables the gate.
func CheckTokensPerSecThreshold(mean, threshold float64) error {
	if threshold <= 0 {
		return nil
	}
	if mean < threshold {
		return fmt.Errorf("mean throughput %.0f tokens/s below threshold %.0f", mean, threshold)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Output formatters
// ---------------------------------------------------------------------------

func ms(d time.Duration) string {
	return strconv.FormatFloat(float64(d.Microseconds())/1000, 'f', 3, 64)
}

// FormatTable writes a human-readable table of bench results to w.
func FormatTable(runs []RunResult, stats Stats, w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"RUN", "COLD", "MS", "TEXTS", "TOKENS", "TOKENS/S"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)

	for _, r := range runs {
		cold := ""
		if r.Cold {
			cold = "yes"
		}
		table.Append([]string{
			strconv.Itoa(r.Index + 1),
			cold,
			ms(r.Duration),
			strconv.Itoa(r.Texts),
			strconv.Itoa(r.Tokens),
			strconv.FormatFloat(r.TokensPerSec, 'f', 0, 64),
		})
	}

	table.SetFooter([]string{
		"", "",
		fmt.Sprintf("min %s / mean %s / max %s", ms(stats.Min), ms(stats.Mean), ms(stats.Max)),
		"", "mean",
		strconv.FormatFloat(stats.MeanTokensPerSec, 'f', 0, 64),
	})
	table.Render()
}

// jsonReport is the top-level JSON structure emitted by FormatJSON.
type jsonReport struct {
	Runs  []jsonRun `json:"runs"`
	Stats jsonStats `json:"stats"`
}

type jsonRun struct {
	Index        int     `json:"index"`
	Cold         bool    `json:"cold"`
	DurationMS   float64 `json:"duration_ms"`
	Texts        int     `json:"texts"`
	Tokens       int     `json:"tokens"`
	TokensPerSec float64 `json:"tokens_per_sec"`
}

type jsonStats struct {
	MinMS            float64 `json:"min_ms"`
	MeanMS           float64 `json:"mean_ms"`
	MaxMS            float64 `json:"max_ms"`
	MeanTokensPerSec float64 `json:"mean_tokens_per_sec"`
}

func msFloat(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// FormatJSON writes a JSON report of bench results to w.
func FormatJSON(runs []RunResult, stats Stats, w io.Writer) {
	jr := jsonReport{
		Runs: make([]jsonRun, len(runs)),
		Stats: jsonStats{
			MinMS:            msFloat(stats.Min),
			MeanMS:           msFloat(stats.Mean),
			MaxMS:            msFloat(stats.Max),
			MeanTokensPerSec: stats.MeanTokensPerSec,
		},
	}
	for i, r := range runs {
		jr.Runs[i] = jsonRun{
			Index:        r.Index,
			Cold:         r.Cold,
			DurationMS:   msFloat(r.Duration),
			Texts:        r.Texts,
			Tokens:       r.Tokens,
			TokensPerSec: r.TokensPerSec,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(jr)
}

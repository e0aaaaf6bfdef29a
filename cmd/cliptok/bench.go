package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/example/go-clip-tokenizer/internal/bench"
	"github.com/spf13/cobra"
)

func newBenchCmd() *cobra.Command {
	var (
		texts           []string
		file            string
		runs            int
		concurrency     int
		output          string
		minTokensPerSec float64
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark encode throughput in tokens per second",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if runs < 1 {
				return fmt.Errorf("--runs must be at least 1")
			}
			if output != "table" && output != "json" {
				return fmt.Errorf("--output must be 'table' or 'json'")
			}

			inputs, err := benchTexts(texts, file)
			if err != nil {
				return err
			}

			// A freshly loaded tokenizer keeps the first run cold.
			tok, _, err := loadTokenizer()
			if err != nil {
				return err
			}

			results, err := bench.Run(cmd.Context(), tok, bench.Options{
				Texts:       inputs,
				Runs:        runs,
				Concurrency: concurrency,
			})
			if err != nil {
				return err
			}

			stats := bench.Summarize(results)

			switch output {
			case "json":
				bench.FormatJSON(results, stats, cmd.OutOrStdout())
			default:
				bench.FormatTable(results, stats, cmd.OutOrStdout())
			}

			return bench.CheckTokensPerSecThreshold(stats.MeanTokensPerSec, minTokensPerSec)
		},
	}

	cmd.Flags().StringArrayVar(&texts, "text", nil, "Text to encode in each run (repeatable)")
	cmd.Flags().StringVar(&file, "file", "", "File with one text per line")
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of encode runs")
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "Goroutines encoding within one run")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table|json")
	cmd.Flags().Float64Var(&minTokensPerSec, "min-tokens-per-sec", 0, "Exit non-zero if mean throughput falls below this value (0 = disabled)")

	return cmd
}

// benchTexts collects the non-blank texts from --text and --file.
func benchTexts(texts []string, file string) ([]string, error) {
	var out []string
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			out = append(out, t)
		}
	}

	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("open bench file: %w", err)
		}
		defer f.Close()

		lines, err := readLines(f)
		if err != nil {
			return nil, err
		}
		for _, l := range lines {
			if strings.TrimSpace(l) != "" {
				out = append(out, l)
			}
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("--text or --file is required for bench")
	}
	return out, nil
}

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/example/go-clip-tokenizer/internal/config"
	"github.com/example/go-clip-tokenizer/internal/doctor"
	"github.com/example/go-clip-tokenizer/internal/model"
	"github.com/example/go-clip-tokenizer/internal/tokenizer"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local tokenizer data checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			var loaded *tokenizer.CLIP
			dcfg := doctorConfig(cfg)
			dcfg.Load = func() (doctor.Tokenizer, error) {
				opts := model.LoadOptionsFromConfig(cfg)
				opts.Logger = slog.Default()

				tok, err := model.LoadTokenizer(opts)
				if err != nil {
					return nil, err
				}
				loaded = tok
				return tok, nil
			}

			result := doctor.Run(dcfg, out)

			switch {
			case loaded == nil:
			case loaded.VocabSize() != tokenizer.DefaultVocabSize:
				_, _ = fmt.Fprintf(out, "%s reference probes: skipped (vocabulary has %d entries)\n", doctor.PassMark, loaded.VocabSize())
			default:
				if err := model.RunProbes(loaded, model.ReferenceProbes, out, os.Stderr); err != nil {
					result.AddFailure(fmt.Sprintf("reference probes: %v", err))
					_, _ = fmt.Fprintf(out, "%s reference probes: %v\n", doctor.FailMark, err)
				} else {
					_, _ = fmt.Fprintf(out, "%s reference probes: ok\n", doctor.PassMark)
				}
			}

			if result.Failed() {
				for _, f := range result.Failures() {
					fmt.Fprintf(os.Stderr, "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "doctor checks passed")

			return nil
		},
	}

	return cmd
}

// doctorConfig lists the data files of the configured format. Only a bundle
// has a configured vocabulary size to check against.
func doctorConfig(cfg config.Config) doctor.Config {
	dcfg := doctor.Config{Format: cfg.Tokenizer.Format}

	if cfg.Tokenizer.Format == config.FormatBundle {
		dcfg.DataFiles = []string{cfg.Paths.BundlePath}
		dcfg.VocabSize = cfg.Tokenizer.VocabSize
	} else {
		dcfg.DataFiles = []string{cfg.Paths.VocabPath, cfg.Paths.MergesPath}
	}

	return dcfg
}

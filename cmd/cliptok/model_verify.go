package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/example/go-clip-tokenizer/internal/model"
	"github.com/spf13/cobra"
)

func newModelVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Load the configured tokenizer data and run reference probes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			opts := model.LoadOptionsFromConfig(cfg)
			opts.Logger = slog.Default()

			err = model.Verify(model.VerifyOptions{
				Load:   opts,
				Stdout: cmd.OutOrStdout(),
				Stderr: os.Stderr,
			})
			if err != nil {
				return fmt.Errorf("model verify failed: %w", err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s tokenizer verification passed\n", cfg.Tokenizer.Format)
			return err
		},
	}

	return cmd
}

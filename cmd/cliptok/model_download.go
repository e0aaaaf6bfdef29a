package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/go-clip-tokenizer/internal/model"
	"github.com/spf13/cobra"
)

func newModelDownloadCmd() *cobra.Command {
	var hfRepo string
	var outDir string
	var hfToken string

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download CLIP vocab.json and merges.txt from Hugging Face",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			if hfRepo == "" {
				hfRepo = cfg.Model.Repo
			}
			if outDir == "" {
				outDir = cfg.Model.OutDir
			}
			if hfToken == "" {
				hfToken = cfg.Model.HFToken
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = model.Download(ctx, model.DownloadOptions{
				Repo:    hfRepo,
				OutDir:  outDir,
				HFToken: hfToken,
				Stdout:  cmd.OutOrStdout(),
				Stderr:  os.Stderr,
			})
			if err != nil {
				if model.IsAccessDenied(err) && hfToken == "" {
					return fmt.Errorf("model download failed: %w (set --hf-token or HF_TOKEN)", err)
				}
				return fmt.Errorf("model download failed: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&hfRepo, "hf-repo", "", "Hugging Face repository (default: model.repo)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Directory where tokenizer files are stored (default: model.out_dir)")
	cmd.Flags().StringVar(&hfToken, "hf-token", "", "Hugging Face token (falls back to HF_TOKEN env var)")

	return cmd
}

package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/example/go-clip-tokenizer/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tokenizer HTTP server",
		RunE: func(_ *cobra.Command, _ []string) error {
			tok, cfg, err := loadTokenizer()
			if err != nil {
				return err
			}

			srv := server.New(cfg, tok)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx)
		},
	}

	return cmd
}

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/example/go-clip-tokenizer/internal/config"
	"github.com/example/go-clip-tokenizer/internal/model"
	"github.com/example/go-clip-tokenizer/internal/server"
	"github.com/example/go-clip-tokenizer/internal/tokenizer"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	activeCfg config.Config
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "cliptok",
		Short:         "CLIP BPE tokenizer command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}
			activeCfg = loaded
			setupLogger(loaded.LogLevel)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newEncodeCmd())
	cmd.AddCommand(newCountCmd())
	cmd.AddCommand(newBenchCmd())
	cmd.AddCommand(newModelCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newHealthCmd())
	cmd.AddCommand(newDoctorCmd())

	return cmd
}

// setupLogger configures the process-wide slog default logger.
func setupLogger(levelStr string) {
	lvl, err := server.ParseLogLevel(levelStr)
	if err != nil {
		lvl = slog.LevelInfo
	}
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
}

func requireConfig() (config.Config, error) {
	if activeCfg.Tokenizer.Format == "" {
		return config.Config{}, fmt.Errorf("configuration not loaded")
	}
	return activeCfg, nil
}

// loadTokenizer builds the tokenizer described by the active configuration.
func loadTokenizer() (*tokenizer.CLIP, config.Config, error) {
	cfg, err := requireConfig()
	if err != nil {
		return nil, config.Config{}, err
	}

	opts := model.LoadOptionsFromConfig(cfg)
	opts.Logger = slog.Default()

	tok, err := model.LoadTokenizer(opts)
	if err != nil {
		return nil, cfg, err
	}
	return tok, cfg, nil
}

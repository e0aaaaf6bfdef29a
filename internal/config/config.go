package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Paths     PathsConfig     `mapstructure:"paths"`
	Tokenizer TokenizerConfig `mapstructure:"tokenizer"`
	Model     ModelConfig     `mapstructure:"model"`
	Server    ServerConfig    `mapstructure:"server"`
	LogLevel  string          `mapstructure:"log_level"`
}

type PathsConfig struct {
	VocabPath  string `mapstructure:"vocab_path"`
	MergesPath string `mapstructure:"merges_path"`
	BundlePath string `mapstructure:"bundle_path"`
}

type TokenizerConfig struct {
	Format    string `mapstructure:"format"`
	VocabSize int    `mapstructure:"vocab_size"`
}

type ModelConfig struct {
	Repo    string `mapstructure:"repo"`
	OutDir  string `mapstructure:"out_dir"`
	HFToken string `mapstructure:"hf_token"`
}

type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	Workers         int           `mapstructure:"workers"`
	MaxTextBytes    int           `mapstructure:"max_text_bytes"`
	MaxBatch        int           `mapstructure:"max_batch"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			VocabPath:  "models/clip/vocab.json",
			MergesPath: "models/clip/merges.txt",
			BundlePath: "models/clip/bpe_simple_vocab_16e6.txt.gz",
		},
		Tokenizer: TokenizerConfig{
			Format:    FormatHF,
			VocabSize: 49408,
		},
		Model: ModelConfig{
			Repo:   "openai/clip-vit-base-patch32",
			OutDir: "models/clip",
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			Workers:         4,
			MaxTextBytes:    64 * 1024,
			MaxBatch:        256,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		LogLevel: "info",
	}
}

// flagKeys maps config keys to the flags that override them.
var flagKeys = []struct {
	key  string
	flag string
}{
	{"paths.vocab_path", "paths-vocab-path"},
	{"paths.merges_path", "paths-merges-path"},
	{"paths.bundle_path", "paths-bundle-path"},
	{"tokenizer.format", "format"},
	{"tokenizer.vocab_size", "vocab-size"},
	{"model.repo", "model-repo"},
	{"model.out_dir", "model-out-dir"},
	{"server.listen_addr", "server-listen-addr"},
	{"server.workers", "workers"},
	{"server.max_text_bytes", "max-text-bytes"},
	{"server.max_batch", "max-batch"},
	{"server.request_timeout", "request-timeout"},
	{"server.shutdown_timeout", "shutdown-timeout"},
	{"log_level", "log-level"},
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("paths-vocab-path", defaults.Paths.VocabPath, "Path to vocab.json (hf format)")
	fs.String("paths-merges-path", defaults.Paths.MergesPath, "Path to merges.txt (hf format)")
	fs.String("paths-bundle-path", defaults.Paths.BundlePath, "Path to the OpenAI merges bundle, optionally gzipped (bundle format)")
	fs.String("format", defaults.Tokenizer.Format, "Tokenizer data format: hf|bundle")
	fs.Int("vocab-size", defaults.Tokenizer.VocabSize, "Vocabulary size derived from a bundle")
	fs.String("model-repo", defaults.Model.Repo, "Hugging Face repository holding vocab.json and merges.txt")
	fs.String("model-out-dir", defaults.Model.OutDir, "Directory where downloaded tokenizer files are stored")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("workers", defaults.Server.Workers, "Max concurrent encode requests")
	fs.Int("max-text-bytes", defaults.Server.MaxTextBytes, "Max request text size in bytes")
	fs.Int("max-batch", defaults.Server.MaxBatch, "Max texts per batch request")
	fs.Duration("request-timeout", defaults.Server.RequestTimeout, "Per-request timeout")
	fs.Duration("shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown timeout")
	fs.String("log-level", defaults.LogLevel, "Log level: debug|info|warn|error")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("CLIPTOK")
	replacer := strings.NewReplacer("-", "_", ".", "_")
	v.SetEnvKeyReplacer(replacer)
	if err := v.BindEnv("model.hf_token", "CLIPTOK_MODEL_HF_TOKEN", "HF_TOKEN"); err != nil {
		return Config{}, fmt.Errorf("bind hf token env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("cliptok")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	format, err := NormalizeFormat(cfg.Tokenizer.Format)
	if err != nil {
		return Config{}, err
	}
	cfg.Tokenizer.Format = format

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.vocab_path", c.Paths.VocabPath)
	v.SetDefault("paths.merges_path", c.Paths.MergesPath)
	v.SetDefault("paths.bundle_path", c.Paths.BundlePath)
	v.SetDefault("tokenizer.format", c.Tokenizer.Format)
	v.SetDefault("tokenizer.vocab_size", c.Tokenizer.VocabSize)
	v.SetDefault("model.repo", c.Model.Repo)
	v.SetDefault("model.out_dir", c.Model.OutDir)
	v.SetDefault("model.hf_token", c.Model.HFToken)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.max_batch", c.Server.MaxBatch)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("log_level", c.LogLevel)
}

// bindFlags binds each registered flag to its config key. Flags missing from
// fs are skipped so subcommands may register a subset.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, fk := range flagKeys {
		f := fs.Lookup(fk.flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(fk.key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", fk.flag, err)
		}
	}
	return nil
}

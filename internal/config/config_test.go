package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
)

// fakeBinder wraps a pflag.FlagSet to satisfy the flagBinder interface.
type fakeBinder struct {
	fs *pflag.FlagSet
}

func (f *fakeBinder) Flags() *pflag.FlagSet { return f.fs }

// newFlagBinder creates a FlagSet with all config flags registered and the
// given arguments parsed.
func newFlagBinder(t *testing.T, defaults Config, args ...string) *fakeBinder {
	t.Helper()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse(%v): %v", args, err)
	}

	return &fakeBinder{fs: fs}
}

// chdirTemp runs the test from an empty directory with the token variables
// cleared, so neither a stray cliptok.yaml nor the caller's environment
// leaks into Load.
func chdirTemp(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HF_TOKEN", "")
	t.Setenv("CLIPTOK_MODEL_HF_TOKEN", "")
}

// --- DefaultConfig ---

func TestDefaultConfig(t *testing.T) {
	want := Config{
		Paths: PathsConfig{
			VocabPath:  "models/clip/vocab.json",
			MergesPath: "models/clip/merges.txt",
			BundlePath: "models/clip/bpe_simple_vocab_16e6.txt.gz",
		},
		Tokenizer: TokenizerConfig{Format: "hf", VocabSize: 49408},
		Model: ModelConfig{
			Repo:   "openai/clip-vit-base-patch32",
			OutDir: "models/clip",
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			Workers:         4,
			MaxTextBytes:    65536,
			MaxBatch:        256,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		LogLevel: "info",
	}

	if diff := cmp.Diff(want, DefaultConfig()); diff != "" {
		t.Errorf("DefaultConfig mismatch (-want +got):\n%s", diff)
	}
}

// --- NormalizeFormat ---

func TestNormalizeFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"hf canonical", "hf", "hf", false},
		{"bundle canonical", "bundle", "bundle", false},
		{"huggingface alias", "huggingface", "hf", false},
		{"openai alias", "openai", "bundle", false},
		{"clip alias", "clip", "bundle", false},
		{"uppercase", "HF", "hf", false},
		{"alias with spaces", "  OpenAI  ", "bundle", false},
		{"empty defaults to hf", "", "hf", false},
		{"whitespace defaults to hf", "   ", "hf", false},
		{"invalid value", "sentencepiece", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeFormat(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NormalizeFormat(%q) = %q, nil; want error", tt.input, got)
				}

				return
			}

			if err != nil {
				t.Errorf("NormalizeFormat(%q) unexpected error: %v", tt.input, err)
				return
			}

			if got != tt.want {
				t.Errorf("NormalizeFormat(%q) = %q; want %q", tt.input, got, tt.want)
			}
		})
	}
}

// --- RegisterFlags ---

func TestRegisterFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, DefaultConfig())

	checks := []struct {
		flag string
		want string
	}{
		{"paths-vocab-path", "models/clip/vocab.json"},
		{"paths-merges-path", "models/clip/merges.txt"},
		{"format", "hf"},
		{"vocab-size", "49408"},
		{"server-listen-addr", ":8080"},
		{"request-timeout", "10s"},
		{"log-level", "info"},
	}

	for _, c := range checks {
		f := fs.Lookup(c.flag)
		if f == nil {
			t.Errorf("flag %q not registered", c.flag)
			continue
		}

		if f.DefValue != c.want {
			t.Errorf("flag %q default = %q; want %q", c.flag, f.DefValue, c.want)
		}
	}
}

func TestFlagKeys_AllRegistered(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, DefaultConfig())

	for _, fk := range flagKeys {
		if fs.Lookup(fk.flag) == nil {
			t.Errorf("flag %q for key %q not registered", fk.flag, fk.key)
		}
	}
}

// --- Load ---

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)
	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:      newFlagBinder(t, defaults),
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if diff := cmp.Diff(defaults, cfg); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_NilCmd(t *testing.T) {
	chdirTemp(t)
	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{Defaults: defaults})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if diff := cmp.Diff(defaults, cfg); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_FlagOverride(t *testing.T) {
	chdirTemp(t)
	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd: newFlagBinder(t, defaults,
			"--format=openai",
			"--workers=8",
			"--request-timeout=2s",
			"--paths-bundle-path=/tmp/bpe.txt.gz",
			"--log-level=debug",
		),
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Tokenizer.Format != FormatBundle {
		t.Errorf("Tokenizer.Format = %q; want %q", cfg.Tokenizer.Format, FormatBundle)
	}

	if cfg.Server.Workers != 8 {
		t.Errorf("Server.Workers = %d; want 8", cfg.Server.Workers)
	}

	if cfg.Server.RequestTimeout != 2*time.Second {
		t.Errorf("Server.RequestTimeout = %v; want 2s", cfg.Server.RequestTimeout)
	}

	if cfg.Paths.BundlePath != "/tmp/bpe.txt.gz" {
		t.Errorf("Paths.BundlePath = %q; want %q", cfg.Paths.BundlePath, "/tmp/bpe.txt.gz")
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "debug")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CLIPTOK_LOG_LEVEL", "warn")
	t.Setenv("CLIPTOK_SERVER_LISTEN_ADDR", ":9999")
	t.Setenv("CLIPTOK_PATHS_VOCAB_PATH", "/env/vocab.json")
	t.Setenv("CLIPTOK_SERVER_SHUTDOWN_TIMEOUT", "5s")

	cfg, err := Load(LoadOptions{Defaults: DefaultConfig()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "warn")
	}

	if cfg.Server.ListenAddr != ":9999" {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, ":9999")
	}

	if cfg.Paths.VocabPath != "/env/vocab.json" {
		t.Errorf("Paths.VocabPath = %q; want %q", cfg.Paths.VocabPath, "/env/vocab.json")
	}

	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v; want 5s", cfg.Server.ShutdownTimeout)
	}
}

func TestLoad_HFTokenEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("HF_TOKEN", "hf_test")

	cfg, err := Load(LoadOptions{Defaults: DefaultConfig()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Model.HFToken != "hf_test" {
		t.Errorf("Model.HFToken = %q; want %q", cfg.Model.HFToken, "hf_test")
	}
}

func TestLoad_FlagBeatsEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CLIPTOK_SERVER_WORKERS", "3")
	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:      newFlagBinder(t, defaults, "--workers=12"),
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Workers != 12 {
		t.Errorf("Server.Workers = %d; want 12", cfg.Server.Workers)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	chdirTemp(t)
	cfgFile := filepath.Join(t.TempDir(), "cliptok.yaml")

	content := `
log_level: error
tokenizer:
  format: clip
  vocab_size: 1000
server:
  workers: 16
  listen_addr: ":7777"
  request_timeout: 3s
`

	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:        newFlagBinder(t, defaults),
		ConfigFile: cfgFile,
		Defaults:   defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "error")
	}

	if cfg.Tokenizer.Format != FormatBundle {
		t.Errorf("Tokenizer.Format = %q; want %q", cfg.Tokenizer.Format, FormatBundle)
	}

	if cfg.Tokenizer.VocabSize != 1000 {
		t.Errorf("Tokenizer.VocabSize = %d; want 1000", cfg.Tokenizer.VocabSize)
	}

	if cfg.Server.Workers != 16 {
		t.Errorf("Server.Workers = %d; want 16", cfg.Server.Workers)
	}

	if cfg.Server.ListenAddr != ":7777" {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, ":7777")
	}

	if cfg.Server.RequestTimeout != 3*time.Second {
		t.Errorf("Server.RequestTimeout = %v; want 3s", cfg.Server.RequestTimeout)
	}

	if cfg.Paths.VocabPath != defaults.Paths.VocabPath {
		t.Errorf("Paths.VocabPath = %q; want default %q", cfg.Paths.VocabPath, defaults.Paths.VocabPath)
	}
}

func TestLoad_InvalidFormat(t *testing.T) {
	chdirTemp(t)
	defaults := DefaultConfig()

	_, err := Load(LoadOptions{
		Cmd:      newFlagBinder(t, defaults, "--format=sentencepiece"),
		Defaults: defaults,
	})
	if err == nil {
		t.Error("Load() = nil; want error for invalid format")
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	chdirTemp(t)
	cfgFile := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(cfgFile, []byte(":\t:bad yaml:::"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := Load(LoadOptions{
		ConfigFile: cfgFile,
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for invalid config file")
	}
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	chdirTemp(t)

	_, err := Load(LoadOptions{
		ConfigFile: "/nonexistent/path/cliptok.yaml",
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for missing explicit config file")
	}
}

func TestLoad_DiscoversConfigInWorkingDir(t *testing.T) {
	chdirTemp(t)
	if err := os.WriteFile("cliptok.yaml", []byte("server:\n  max_batch: 7\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(LoadOptions{Defaults: DefaultConfig()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.MaxBatch != 7 {
		t.Errorf("Server.MaxBatch = %d; want 7", cfg.Server.MaxBatch)
	}
}

// Package testutil provides shared skip helpers for tests that need the
// released CLIP tokenizer files.
//
// Each helper calls t.Skip with a clear human-readable reason when the named
// prerequisite is absent, so reference tests remain runnable in partial
// environments without failing noisily.
//
// Typical usage:
//
//	func TestReferenceCaption(t *testing.T) {
//	    vocabPath, mergesPath := testutil.RequireCLIPAssets(t)
//	    ...
//	}
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Environment variables that point at the released tokenizer files.
const (
	VocabPathEnv  = "CLIPTOK_VOCAB_PATH"
	MergesPathEnv = "CLIPTOK_MERGES_PATH"
)

// AssetDir is where `cliptok model download` stores the files by default,
// relative to the repository root.
var AssetDir = filepath.Join("models", "clip")

// RequireCLIPAssets returns the paths of the released vocab.json and
// merges.txt. It honours VocabPathEnv and MergesPathEnv, then looks for
// AssetDir in the working directory and each of its parents. The test is
// skipped when neither yields both files.
func RequireCLIPAssets(tb testing.TB) (vocabPath, mergesPath string) {
	tb.Helper()

	vocabPath, mergesPath = os.Getenv(VocabPathEnv), os.Getenv(MergesPathEnv)
	if vocabPath != "" || mergesPath != "" {
		if !exists(vocabPath) || !exists(mergesPath) {
			tb.Skipf("CLIP tokenizer files not found at %s=%q %s=%q", VocabPathEnv, vocabPath, MergesPathEnv, mergesPath)
			return "", ""
		}
		return vocabPath, mergesPath
	}

	dir, err := filepath.Abs(".")
	if err != nil {
		tb.Skipf("cannot resolve working directory: %v", err)
		return "", ""
	}

	for {
		v := filepath.Join(dir, AssetDir, "vocab.json")
		m := filepath.Join(dir, AssetDir, "merges.txt")
		if exists(v) && exists(m) {
			return v, m
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	tb.Skipf("%s/{vocab.json,merges.txt} not found; run `cliptok model download` or set %s and %s", AssetDir, VocabPathEnv, MergesPathEnv)
	return "", ""
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

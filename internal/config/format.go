package config

import (
	"fmt"
	"strings"
)

// Tokenizer data formats.
const (
	FormatHF     = "hf"
	FormatBundle = "bundle"
)

// NormalizeFormat canonicalizes a tokenizer.format value. Empty input
// selects FormatHF.
func NormalizeFormat(raw string) (string, error) {
	format := strings.ToLower(strings.TrimSpace(raw))
	if format == "" {
		format = FormatHF
	}
	switch format {
	case FormatHF, FormatBundle:
		return format, nil
	case "huggingface":
		return FormatHF, nil
	case "clip", "openai":
		return FormatBundle, nil
	default:
		return "", fmt.Errorf(
			"invalid tokenizer format %q (expected %s|%s|huggingface|openai|clip)",
			raw,
			FormatHF,
			FormatBundle,
		)
	}
}

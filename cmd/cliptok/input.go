package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// readText returns the text to tokenize: --text if set, else the joined
// positional args, else all of in.
func readText(text string, args []string, in io.Reader) (string, error) {
	if text != "" {
		return text, nil
	}
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	b, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(b), nil
}

// readLines returns the lines of in without their terminators. Blank lines
// are kept so output lines stay aligned with input lines.
func readLines(in io.Reader) ([]string, error) {
	var lines []string

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read lines: %w", err)
	}
	return lines, nil
}

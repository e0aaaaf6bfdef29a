package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/example/go-clip-tokenizer/internal/tokenizer"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

const (
	outputIDs  = "ids"
	outputJSON = "json"
)

type encodeResult struct {
	IDs   []int `json:"ids"`
	Count int   `json:"count"`
}

func newEncodeCmd() *cobra.Command {
	var (
		text    string
		output  string
		symbols bool
		lines   bool
	)

	cmd := &cobra.Command{
		Use:   "encode [text...]",
		Short: "Encode text into CLIP token ids",
		Long: "Encode text into CLIP token ids without start/end tokens.\n" +
			"Text comes from --text, the arguments, or stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != outputIDs && output != outputJSON {
				return fmt.Errorf("--output must be 'ids' or 'json'")
			}
			if lines && symbols {
				return fmt.Errorf("--symbols cannot be combined with --lines")
			}

			tok, cfg, err := loadTokenizer()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if lines {
				texts, err := readLines(cmd.InOrStdin())
				if err != nil {
					return err
				}
				batch, err := tok.EncodeBatch(cmd.Context(), texts, cfg.Server.Workers)
				if err != nil {
					return err
				}
				for _, ids := range batch {
					if err := writeIDs(out, ids, output); err != nil {
						return err
					}
				}
				return nil
			}

			input, err := readText(text, args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			if symbols {
				return writeSymbols(out, tok, input)
			}

			ids, err := tok.Encode(input)
			if err != nil {
				return err
			}
			return writeIDs(out, ids, output)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to encode (default: arguments or stdin)")
	cmd.Flags().StringVarP(&output, "output", "o", outputIDs, "Output format: ids|json")
	cmd.Flags().BoolVar(&symbols, "symbols", false, "Print a table of ids and their vocabulary symbols")
	cmd.Flags().BoolVar(&lines, "lines", false, "Encode each stdin line separately")

	return cmd
}

func writeIDs(w io.Writer, ids []int, output string) error {
	if output == outputJSON {
		return json.NewEncoder(w).Encode(encodeResult{IDs: ids, Count: len(ids)})
	}

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	_, err := fmt.Fprintln(w, strings.Join(parts, " "))
	return err
}

func writeSymbols(w io.Writer, tok *tokenizer.CLIP, input string) error {
	ids, err := tok.Encode(input)
	if err != nil {
		return err
	}
	syms, err := tok.Tokens(input)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "ID", "SYMBOL"})
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	for i, id := range ids {
		table.Append([]string{strconv.Itoa(i), strconv.Itoa(id), syms[i]})
	}
	table.Render()
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCountCmd() *cobra.Command {
	var (
		text  string
		lines bool
	)

	cmd := &cobra.Command{
		Use:   "count [text...]",
		Short: "Print the number of CLIP tokens in text",
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, _, err := loadTokenizer()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			var texts []string
			if lines {
				texts, err = readLines(cmd.InOrStdin())
			} else {
				var input string
				input, err = readText(text, args, cmd.InOrStdin())
				texts = []string{input}
			}
			if err != nil {
				return err
			}

			for _, s := range texts {
				n, err := tok.Count(s)
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintln(out, n); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to count (default: arguments or stdin)")
	cmd.Flags().BoolVar(&lines, "lines", false, "Count each stdin line separately")

	return cmd
}

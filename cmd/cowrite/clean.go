package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/cowrite/internal/materials"
)

func cleanCMD() *cobra.Command {
	var (
		sourceType string
		minLength  int
		minQuality float64
		summary    bool
	)
	clean := &cobra.Command{
		Use:   "clean [file]",
		Short: "Clean, score and deduplicate a JSON list of documents (file or stdin)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			var docs []materials.Document
			if err := json.Unmarshal(raw, &docs); err != nil {
				return fmt.Errorf("decode documents: %w", err)
			}

			opts := materials.OptionsFor(materials.SourceType(sourceType))
			if cmd.Flags().Changed("min-content-length") {
				opts.MinContentLength = minLength
			}
			if cmd.Flags().Changed("min-quality") {
				opts.MinQualityScore = minQuality
			}

			kept := materials.Clean(docs, opts)
			if summary {
				_, err := fmt.Fprintf(cmd.ErrOrStderr(), "kept %d of %d documents\n", len(kept), len(docs))
				if err != nil {
					return err
				}
			}
			return writeJSON(cmd, kept)
		},
	}
	clean.Flags().StringVar(&sourceType, "source-type", "", "academic, news, web or empty for the defaults")
	clean.Flags().IntVar(&minLength, "min-content-length", 0, "override the minimum content length in characters")
	clean.Flags().Float64Var(&minQuality, "min-quality", 0, "override the minimum quality score")
	clean.Flags().BoolVar(&summary, "summary", false, "print kept/total counts to stderr")
	return clean
}

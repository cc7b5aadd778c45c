package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/validate"
)

func newBuildCmd(opts *options) *cobra.Command {
	var (
		src, out string
		formats  []string
		title    string
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Index a book and write the search index files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if src != "" {
				cfg.Book.SourceDir = src
			}
			if out != "" {
				cfg.Book.OutputDir = out
			}
			if title != "" {
				cfg.Book.Title = title
			}
			if len(formats) > 0 {
				cfg.Indexer.OutputFormats = formats
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			res, err := indexer.NewBuilder(cfg).BuildBook(cmd.Context(), cfg.Book.SourceDir)
			if err != nil {
				return err
			}
			if report := validate.Check(res.SearchIndex); !report.OK() {
				return report.Err()
			}
			paths, err := segment.NewWriter(cfg.Book.OutputDir).Write(res.SearchIndex, cfg.Indexer.OutputFormats)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "indexed %q: %d docs, %d terms in %v\n",
				res.Title, res.Stats.Docs, res.Stats.TotalTerms(), res.Duration.Round(time.Millisecond))
			fmt.Fprintf(w, "fingerprint %s\n", res.Fingerprint)
			for _, p := range paths {
				fmt.Fprintf(w, "wrote %s\n", p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&src, "src", "", "book source directory (overrides book.sourceDir)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory (overrides book.outputDir)")
	cmd.Flags().StringVar(&title, "title", "", "book title")
	cmd.Flags().StringSliceVarP(&formats, "format", "f", nil, "output formats: js, json, json.gz, cbor")
	return cmd
}

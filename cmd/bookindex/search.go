package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/searcher/executor"
)

func newSearchCmd() *cobra.Command {
	var (
		limit  int
		teaser bool
	)
	cmd := &cobra.Command{
		Use:   "search <file> <query>",
		Short: "Query a search index file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			exec := executor.New()
			if err := exec.Load(args[0]); err != nil {
				return err
			}
			plan, err := exec.Parse(args[1])
			if err != nil {
				return err
			}
			res, err := exec.Execute(cmd.Context(), plan, limit)
			if err != nil {
				return err
			}

			headers := []string{"#", "SCORE", "TITLE", "URL"}
			if teaser {
				headers = append(headers, "TEASER")
			}
			rows := make([][]string, 0, len(res.Results))
			for i, r := range res.Results {
				row := []string{strconv.Itoa(i + 1), strconv.FormatFloat(r.Score, 'f', 4, 64), r.Breadcrumbs, r.URL}
				if teaser {
					row = append(row, stripTags(r.Teaser))
				}
				rows = append(rows, row)
			}
			w := cmd.OutOrStdout()
			writeTable(w, headers, rows)
			fmt.Fprintf(w, "%d of %d hits\n", len(res.Results), res.TotalHits)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum results (0 uses the index's limit)")
	cmd.Flags().BoolVar(&teaser, "teaser", false, "show teasers")
	return cmd
}

package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/segment"
)

func newInspectCmd() *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print index statistics and the most common terms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			si, err := segment.Open(args[0])
			if err != nil {
				return err
			}
			fp, err := segment.Fingerprint(si)
			if err != nil {
				return err
			}
			idx, err := indexer.FromSearchIndex(si)
			if err != nil {
				return err
			}
			st := idx.Stats()

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "file         %s\n", args[0])
			fmt.Fprintf(w, "fingerprint  %s\n", fp)
			fmt.Fprintf(w, "version      %s\n", si.Index.Version)
			fmt.Fprintf(w, "language     %s\n", idx.Language())
			fmt.Fprintf(w, "pipeline     %v\n", idx.Pipeline().Names())
			fmt.Fprintf(w, "docs         %d\n", st.Docs)
			fmt.Fprintf(w, "stored docs  %v\n", idx.Store().IsSaved())

			fields := idx.Fields()
			sort.Strings(fields)
			rows := make([][]string, 0, len(fields))
			for _, f := range fields {
				rows = append(rows, []string{f, strconv.Itoa(st.TermsPerField[f]), strconv.FormatFloat(si.SearchOptions.Boost(f), 'g', -1, 64)})
			}
			fmt.Fprintln(w)
			writeTable(w, []string{"FIELD", "TERMS", "BOOST"}, rows)

			if top <= 0 {
				return nil
			}
			for _, f := range fields {
				terms := idx.TopTerms(f, top)
				rows := make([][]string, 0, len(terms))
				for _, t := range terms {
					rows = append(rows, []string{t.Term, strconv.Itoa(t.DocFreq)})
				}
				fmt.Fprintf(w, "\ntop %s terms\n", f)
				writeTable(w, []string{"TERM", "DF"}, rows)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "terms to list per field (0 disables)")
	return cmd
}

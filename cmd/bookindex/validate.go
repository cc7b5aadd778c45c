package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/validate"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a search index file for consistency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			si, err := segment.Open(args[0])
			if err != nil {
				return err
			}
			report := validate.Check(si)
			w := cmd.OutOrStdout()
			for _, v := range report.Violations {
				fmt.Fprintf(w, "%-8s %s: %s\n", v.Code, v.Path, v.Message)
			}
			if !report.OK() {
				fmt.Fprintf(w, "%d violations in %s\n", len(report.Violations), args[0])
				return errSilent
			}
			fmt.Fprintf(w, "ok: %d docs, %d terms\n", report.Docs, report.Terms)
			return nil
		},
	}
}

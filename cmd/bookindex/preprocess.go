package main

import (
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/book"
)

func newPreprocessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preprocess",
		Short: "Run as an mdBook preprocessor on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return book.RunPreprocessor(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "supports <renderer>",
		Short: "Exit zero when the renderer is supported",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !book.SupportsRenderer(args[0]) {
				return errSilent
			}
			return nil
		},
	})
	return cmd
}

// Command bookindex builds, checks and queries book search indexes, and
// runs as an mdBook preprocessor.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/logger"
)

// errSilent exits non-zero without printing anything more.
var errSilent = errors.New("")

type options struct {
	configPath string
	logLevel   string
}

func (o *options) load() (*config.Config, error) {
	return config.Load(o.configPath)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errSilent) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "bookindex",
		Short:         "Build and query search indexes for markdown books",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// stdout carries command output, and preprocessor JSON
			slog.SetDefault(logger.New(os.Stderr, opts.logLevel, "text"))
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (YAML or JSONC)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level")

	root.AddCommand(
		newBuildCmd(opts),
		newValidateCmd(),
		newSearchCmd(),
		newInspectCmd(),
		newPreprocessCmd(),
	)
	return root
}

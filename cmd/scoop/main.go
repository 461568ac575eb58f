// Command scoop captures a single web page into a portable, replayable
// archive, or runs as a capture server.
package main

import (
	"os"

	"github.com/spf13/cobra"

	obs "github.com/teovin/scoop/internal/infrastructure/observability"
)

var (
	logLevel string

	rootCmd = &cobra.Command{
		Use:   "scoop",
		Short: "High-fidelity single-page web capture",
		Long: `Scoop captures everything a browser sees while visiting a page — every
request and response, byte for byte — plus synthesized attachments like
screenshots, and packages the result into a self-contained archive that can
be losslessly read back.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger := obs.NewLogger(logLevel, true)
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
}

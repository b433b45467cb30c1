// Package cli implements the scribed command-line interface using Cobra.
// Each subcommand maps to one task operation (submit, status, watch,
// cancel, artifact) or starts the daemon (serve).
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "scribed",
	Short: "scribed: media transcription service",
	Long: `scribed turns media URLs into transcripts.
Submit a URL, the daemon fetches it, extracts the audio, runs
speech-to-text, and publishes the transcript as a downloadable artifact.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

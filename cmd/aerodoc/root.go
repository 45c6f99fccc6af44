// aerodoc answers aeronautics questions through a gated research pipeline.
//
// Usage:
//
//	aerodoc serve                 start the HTTP, WebSocket and gRPC APIs
//	aerodoc ask [question]        answer a question interactively
//	aerodoc pipeline              print the stage transition table
//
// Configuration is read from the environment; see internal/config.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "aerodoc",
	Short: "Gated research pipeline for aeronautics questions",
	Long: `aerodoc checks that a question is about aeronautics and ethically acceptable,
then answers it from a knowledge base and trusted web sources, synthesizes a
markdown document and reviews it for bias.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(pipelineCmd)
	rootCmd.Version = fmt.Sprintf("%s (built %s)", Version, BuildTime)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

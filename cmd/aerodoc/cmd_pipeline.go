package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aescanero/aerodoc/internal/application/orchestrator"
)

var pipelineJSON bool

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Print the stage transition table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if pipelineJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(orchestrator.Transitions())
		}
		return printTransitions(cmd.OutOrStdout(), orchestrator.Transitions())
	},
}

func init() {
	pipelineCmd.Flags().BoolVar(&pipelineJSON, "json", false, "print the table as JSON")
}

func printTransitions(w io.Writer, transitions []orchestrator.Transition) error {
	fmt.Fprintf(w, "entry: %s\n\n", orchestrator.EntryStage)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FROM\tSIGNAL\tNEXT")
	for _, t := range transitions {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.From, t.Signal, t.Next)
	}
	return tw.Flush()
}

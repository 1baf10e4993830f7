package main

import (
	"fmt"
	"os"

	"github.com/FranksOps/domainhunt/internal/report"
	"github.com/FranksOps/domainhunt/internal/storage"
	"github.com/spf13/cobra"
)

func newSummaryCmd() *cobra.Command {
	var (
		format string
		runID  string
	)

	cmd := &cobra.Command{
		Use:   "summary <output>",
		Short: "Summarize a previously written output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if isFile(args[0]) {
				if _, err := os.Stat(args[0]); err != nil {
					return err
				}
			}

			sink, err := openSink(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer sink.Close()

			records, err := sink.Query(cmd.Context(), storage.Filter{RunID: runID})
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			start, end := report.Span(records)
			summary := report.Summarize(records, start, end)

			out := cmd.OutOrStdout()
			switch format {
			case "text":
				return report.WriteText(out, summary)
			case "json":
				return report.WriteJSON(out, summary)
			case "html":
				return report.WriteHTML(out, summary)
			default:
				return fmt.Errorf("unknown format %q (want text, json or html)", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json or html")
	cmd.Flags().StringVar(&runID, "run", "", "only summarize this run id (database outputs)")

	return cmd
}

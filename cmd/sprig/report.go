package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/FranksOps/sprig/internal/report"
	"github.com/FranksOps/sprig/internal/storage"
)

var (
	reportFormat string
	reportOutput string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize archived research runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runs, err := queryRuns(cmd, storage.Filter{})
		if err != nil {
			return err
		}
		summary := report.GenerateSummary(runs)

		var w io.Writer = cmd.OutOrStdout()
		if reportOutput != "" {
			f, err := os.Create(reportOutput)
			if err != nil {
				return fmt.Errorf("creating report file: %w", err)
			}
			defer f.Close()
			w = f
		}

		switch reportFormat {
		case "text":
			return report.WriteText(w, summary)
		case "json":
			return report.WriteJSON(w, summary)
		case "html":
			return report.WriteHTML(w, summary)
		default:
			return fmt.Errorf("unknown format %q (must be text, json, or html)", reportFormat)
		}
	},
}

func init() {
	addRunFilterFlags(reportCmd)
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "text", "output format: text, json, or html")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "write the report to this file")
}

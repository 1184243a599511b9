package cmd

import (
	"fmt"

	"github.com/alpha216/dwroadmap/pkg/storage"
	"github.com/spf13/cobra"
)

// summaryCmd represents the summary command
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "List each requirement block with its taken and available courses",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		snapshotID, _ := cmd.Flags().GetString("snapshot")
		format, _ := cmd.Flags().GetString("format")
		if err := checkFormat(format); err != nil {
			return err
		}

		return withRecord(cmd.Context(), snapshotID, func(rec *storage.Record) error {
			summary := rec.Snapshot.Summary()
			if format != formatText {
				return writeStructured(out, format, summary)
			}

			for i, sec := range summary {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintln(out, sec.Name)
				if len(sec.Courses) == 0 {
					fmt.Fprintln(out, "  -")
					continue
				}
				for _, c := range sec.Courses {
					marker := "(available)"
					if c.Taken {
						marker = "(taken)"
					}
					name := rec.Snapshot.ClassInfo.Name(c.Code)
					if name != "" {
						fmt.Fprintf(out, "  %s %s %s\n", c.Code, marker, name)
					} else {
						fmt.Fprintf(out, "  %s %s\n", c.Code, marker)
					}
				}
			}
			if len(rec.Snapshot.InProgress) > 0 {
				fmt.Fprintf(out, "\nIn progress: %d courses\n", len(rec.Snapshot.InProgress))
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)

	summaryCmd.Flags().StringP("snapshot", "s", "", "Snapshot id (default is the latest)")
	summaryCmd.Flags().StringP("format", "o", formatText, "Output format: text, json, yaml")
}

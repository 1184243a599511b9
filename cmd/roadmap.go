package cmd

import (
	"fmt"

	"github.com/alpha216/dwroadmap/pkg/roadmap"
	"github.com/alpha216/dwroadmap/pkg/storage"
	"github.com/spf13/cobra"
)

// roadmapCmd represents the roadmap command
var roadmapCmd = &cobra.Command{
	Use:   "roadmap",
	Short: "Print the prerequisite roadmap of a snapshot",
	Long: `Prints one tree per requirement block. Courses hang under the course they
require and are tagged taken, available or locked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		snapshotID, _ := cmd.Flags().GetString("snapshot")
		sectionName, _ := cmd.Flags().GetString("section")
		format, _ := cmd.Flags().GetString("format")
		if err := checkFormat(format); err != nil {
			return err
		}

		return withRecord(cmd.Context(), snapshotID, func(rec *storage.Record) error {
			sections := rec.Snapshot.Roadmap()
			if sectionName != "" {
				sec, ok := roadmap.FindSection(sections, sectionName)
				if !ok {
					return fmt.Errorf("no section named %q", sectionName)
				}
				sections = []roadmap.Section{sec}
			}

			if format == formatText {
				if len(sections) == 0 {
					fmt.Fprintln(out, "Nothing to show: the audit has no requirements with courses.")
					return nil
				}
				return roadmap.WriteText(out, sections)
			}
			return writeStructured(out, format, sections)
		})
	},
}

func init() {
	rootCmd.AddCommand(roadmapCmd)

	roadmapCmd.Flags().StringP("snapshot", "s", "", "Snapshot id (default is the latest)")
	roadmapCmd.Flags().String("section", "", "Only print the section with this name")
	roadmapCmd.Flags().StringP("format", "o", formatText, "Output format: text, json, yaml")
}

package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/alpha216/dwroadmap/pkg/audit"
	"github.com/alpha216/dwroadmap/pkg/storage"
	"github.com/spf13/cobra"
)

// courseCmd represents the course command
var courseCmd = &cobra.Command{
	Use:   "course CODE",
	Short: "Show the prerequisites of one course",
	Long: `Shows the name, status and prerequisites of one course. Prerequisites are
groups joined by AND; any one course of a group satisfies it.`,
	Example: "  dwroadmap course COMP3270\n  dwroadmap course \"comp 3270\"",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		snapshotID, _ := cmd.Flags().GetString("snapshot")
		format, _ := cmd.Flags().GetString("format")
		if err := checkFormat(format); err != nil {
			return err
		}
		code, err := audit.ParseCourseCode(strings.ToUpper(strings.Join(strings.Fields(args[0]), "")))
		if err != nil {
			return err
		}

		return withRecord(cmd.Context(), snapshotID, func(rec *storage.Record) error {
			d := rec.Snapshot.Course(code)
			if format != formatText {
				return writeStructured(out, format, d)
			}

			if d.Name != "" {
				fmt.Fprintf(out, "%s %s [%s]\n", d.Code, d.Name, d.Status)
			} else {
				fmt.Fprintf(out, "%s [%s]\n", d.Code, d.Status)
			}
			switch {
			case !d.Known:
				fmt.Fprintln(out, "No prerequisite information available")
				return nil
			case len(d.Prerequisites) == 0:
				fmt.Fprintln(out, "No prerequisites required")
				return nil
			}

			e, _ := rec.Snapshot.ClassInfo.Get(code)
			fmt.Fprintf(out, "Requires: %s\n\n", e.Prerequisites)

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "\tCODE\tTAKEN\tMIN GRADE\tNAME")
			for i, group := range d.Prerequisites {
				for j, o := range group {
					join := ""
					switch {
					case j > 0:
						join = "OR"
					case i > 0:
						join = "AND"
					}
					taken := "no"
					if o.Taken {
						taken = "yes"
					}
					grade := o.MinimumGrade
					if grade == "" {
						grade = "-"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", join, o.Code, taken, grade, o.Name)
				}
			}
			return w.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(courseCmd)

	courseCmd.Flags().StringP("snapshot", "s", "", "Snapshot id (default is the latest)")
	courseCmd.Flags().StringP("format", "o", formatText, "Output format: text, json, yaml")
}

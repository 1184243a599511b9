package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/alpha216/dwroadmap/internal/utils"
	"github.com/spf13/cobra"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Interact with the dwroadmap database",
}

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints statistics about the snapshots in the database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openDB(cfg.DB.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats(cmd.Context())
		if err != nil {
			return err
		}

		if stats.Snapshots == 0 {
			fmt.Fprintln(out, "No data in the database to generate stats.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "SNAPSHOTS\tDISTINCT COURSES\tLATEST COURSES\tLATEST FAILURES\t")
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t\n", stats.Snapshots, stats.DistinctCourses, stats.Latest.Courses, stats.Latest.Failures)
		w.Flush()

		fmt.Fprintf(out, "\nLatest: %s (%s, %s)\n", stats.Latest.ID, stats.Latest.CreatedAt.Local().Format("2006-01-02 15:04"), stats.Latest.Source)
		return nil
	},
}

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists stored snapshots, newest first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openDB(cfg.DB.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		snaps, err := db.ListSnapshots(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Fprintln(out, "No snapshots stored.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tCREATED\tSOURCE\tCOURSES\tFAILURES")
		for _, s := range snaps {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04"), s.Source, s.Courses, s.Failures)
		}
		return w.Flush()
	},
}

// pruneCmd represents the prune command
var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Deletes all but the newest snapshots.",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		keep, _ := cmd.Flags().GetInt("keep")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		lock, err := utils.NewDBLock(cfg.DB.Path)
		if err != nil {
			return err
		}
		if err := lock.Lock(); err != nil {
			return err
		}
		defer lock.Unlock()

		db, err := openDB(cfg.DB.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.Prune(cmd.Context(), keep)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed %d snapshots, kept the newest %d\n", n, keep)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(statsCmd)
	dbCmd.AddCommand(listCmd)
	dbCmd.AddCommand(pruneCmd)

	listCmd.Flags().IntP("limit", "n", 20, "Maximum number of snapshots to list")
	pruneCmd.Flags().Int("keep", 5, "Number of snapshots to keep")
}

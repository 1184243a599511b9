package cmd

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/alpha216/dwroadmap/internal/config"
	"github.com/alpha216/dwroadmap/internal/utils"
	"github.com/alpha216/dwroadmap/pkg/audit"
	"github.com/alpha216/dwroadmap/pkg/degreeworks"
	"github.com/alpha216/dwroadmap/pkg/ingest"
	"github.com/alpha216/dwroadmap/pkg/storage"
	"github.com/spf13/cobra"
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Read an audit, fetch its prerequisites and store a snapshot",
	Long: `Reads a DegreeWorks audit from a file (--audit) or from DegreeWorks itself
(--fetch, needs degreeworks.cookie), fetches the prerequisites of every course
it mentions and stores the result as a new snapshot.

Course data is read from saved course-link responses when --courses is given,
otherwise it is fetched live when a session cookie is configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		auditPath, _ := cmd.Flags().GetString("audit")
		coursesDir, _ := cmd.Flags().GetString("courses")
		fetch, _ := cmd.Flags().GetBool("fetch")
		lenient, _ := cmd.Flags().GetBool("lenient")
		saveAudit, _ := cmd.Flags().GetString("save-audit")

		if auditPath == "" && !fetch {
			return fmt.Errorf("either --audit or --fetch is required")
		}
		if auditPath != "" && fetch {
			return fmt.Errorf("--audit and --fetch are mutually exclusive")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("concurrency") {
			cfg.Fetch.Concurrency, _ = cmd.Flags().GetInt("concurrency")
		}

		ctx := cmd.Context()
		var client *degreeworks.Client
		if fetch || cfg.DegreeWorks.Cookie != "" {
			if cfg.DegreeWorks.Cookie == "" {
				return fmt.Errorf("degreeworks.cookie is not set, copy it from a logged-in browser into the config file")
			}
			client = newDegreeWorksClient(cfg)
		}

		var doc []byte
		var source string
		if fetch {
			student, err := client.FetchUserInfo(ctx)
			if err != nil {
				return fmt.Errorf("fetching student info: %w", err)
			}
			utils.Log.Infof("Fetching audit for student %s (%s, %s)", student.ID, student.School, student.Degree)
			doc, err = client.FetchAudit(ctx, student)
			if err != nil {
				return fmt.Errorf("fetching audit: %w", err)
			}
			source = "degreeworks:" + student.ID
			if saveAudit != "" {
				if err := os.WriteFile(saveAudit, doc, 0o644); err != nil {
					return fmt.Errorf("saving audit: %w", err)
				}
				utils.Log.Infof("Audit saved to %s", saveAudit)
			}
		} else {
			doc, err = os.ReadFile(auditPath)
			if err != nil {
				return err
			}
			source = "file:" + auditPath
		}

		var fetcher degreeworks.CourseFetcher
		switch {
		case coursesDir != "":
			fetcher = degreeworks.Dir{Path: coursesDir}
		case client != nil:
			fetcher = client
		default:
			utils.Log.Warn("No course data source (--courses or degreeworks.cookie), every course will read as having no known prerequisites")
		}

		var done int64
		res, err := ingest.Run(ctx, ingest.Config{
			Audit:       doc,
			Fetcher:     fetcher,
			Concurrency: cfg.Fetch.Concurrency,
			Lenient:     lenient,
			Log:         utils.Log,
			OnCourseDone: func(code audit.CourseCode, err error) {
				n := atomic.AddInt64(&done, 1)
				if err == nil {
					utils.Log.Debugf("[%d] %s done", n, code)
				}
			},
		})
		if err != nil {
			return err
		}

		failures := make([]storage.FetchFailure, 0, len(res.Failures))
		expired := false
		for _, f := range res.Failures {
			failures = append(failures, storage.FetchFailure{Code: f.Code, Message: f.Err.Error()})
			expired = expired || errors.Is(f.Err, degreeworks.ErrSessionExpired)
		}
		if expired {
			utils.Log.Warn("DegreeWorks session expired during the run, copy a fresh cookie into degreeworks.cookie and ingest again")
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

		rec, err := db.SaveSnapshot(ctx, res.Snapshot, source, failures)
		if err != nil {
			return fmt.Errorf("saving snapshot: %w", err)
		}

		fmt.Fprintf(out, "Snapshot %s: %d sections, %d courses, %d with prerequisite data, %d failed\n",
			rec.ID, len(res.Snapshot.Roadmap()), len(res.Codes), res.Snapshot.ClassInfo.Len(), len(failures))
		for _, f := range failures {
			fmt.Fprintf(out, "  %s: %s\n", f.Code, f.Message)
		}
		return nil
	},
}

func newDegreeWorksClient(cfg *config.Config) *degreeworks.Client {
	return degreeworks.NewClient(degreeworks.Options{
		BaseURL: cfg.DegreeWorks.BaseURL,
		Cookie:  cfg.DegreeWorks.Cookie,
		Retries: cfg.Fetch.Retries,
		Timeout: cfg.Fetch.Timeout,
		Rate:    cfg.Fetch.Rate,
		Logger:  utils.Log,
	})
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringP("audit", "a", "", "Path to a saved audit JSON document")
	ingestCmd.Flags().StringP("courses", "c", "", "Directory of saved course-link responses named <CODE>.json")
	ingestCmd.Flags().BoolP("fetch", "f", false, "Fetch the audit from DegreeWorks using the configured session cookie")
	ingestCmd.Flags().String("save-audit", "", "With --fetch, also write the fetched audit to this file")
	ingestCmd.Flags().Bool("lenient", false, "Skip course entries with malformed codes instead of rejecting the audit")
	ingestCmd.Flags().IntP("concurrency", "t", 5, "Maximum course-link requests in flight (overrides fetch.concurrency)")
}

// Package ingest runs one audit through the pipeline: normalize the audit,
// fetch prerequisite data for every referenced course, and assemble the
// session snapshot.
package ingest

import (
	"context"
	"fmt"

	"github.com/alpha216/dwroadmap/pkg/audit"
	"github.com/alpha216/dwroadmap/pkg/catalog"
	"github.com/alpha216/dwroadmap/pkg/degreeworks"
	"github.com/alpha216/dwroadmap/pkg/session"
	"golang.org/x/sync/errgroup"
)

// Logger abstracts logging so callers can use logrus or anything else that
// satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

const defaultConcurrency = 5

// Config holds everything Run needs for one ingestion.
type Config struct {
	Audit []byte
	// Fetcher supplies course-link data. Nil skips catalog population and
	// every course reads as having no known prerequisites.
	Fetcher     degreeworks.CourseFetcher
	Concurrency int  // defaults to 5 if <= 0
	Lenient     bool // drop malformed course codes instead of rejecting the audit
	Log         Logger

	// OnCourseDone is called once per course from worker goroutines, with a
	// nil error on success.
	OnCourseDone func(code audit.CourseCode, err error)
}

// Failure is a course whose prerequisite data could not be stored.
type Failure struct {
	Code audit.CourseCode
	Err  error
}

func (f Failure) Error() string { return fmt.Sprintf("%s: %v", f.Code, f.Err) }

func (f Failure) Unwrap() error { return f.Err }

// Result holds the outcome of one ingestion.
type Result struct {
	Snapshot *session.Snapshot
	// Codes lists every referenced course in first-seen order.
	Codes    []audit.CourseCode
	Failures []Failure
	// Skipped holds the paths of course entries dropped in lenient mode.
	Skipped []string
}

// Run normalizes cfg.Audit and fills the catalog. Only a malformed audit or
// a cancelled context fails the run; per-course problems end up in
// Result.Failures.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}

	result := &Result{}
	n := &audit.Normalizer{
		LenientCodes: cfg.Lenient,
		OnSkip: func(path, value string) {
			log.Warnf("Skipping course %q at %s", value, path)
			result.Skipped = append(result.Skipped, path)
		},
	}
	a, err := n.Normalize(cfg.Audit)
	if err != nil {
		return nil, err
	}

	result.Codes = a.Classes.Codes()
	info := catalog.New()
	if cfg.Fetcher != nil {
		log.Infof("Fetching prerequisites for %d courses from %s", len(result.Codes), cfg.Fetcher.Name())
		result.Failures = Populate(ctx, info, cfg.Fetcher, result.Codes, cfg.Concurrency, log, cfg.OnCourseDone)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	result.Snapshot = session.New(a, info)
	return result, nil
}

// Populate fetches every code with at most concurrency requests in flight and
// upserts the results into cat. No failure stops the other fetches. Failures
// are returned in the order of codes.
func Populate(
	ctx context.Context,
	cat *catalog.Catalog,
	fetcher degreeworks.CourseFetcher,
	codes []audit.CourseCode,
	concurrency int,
	log Logger,
	onDone func(audit.CourseCode, error),
) []Failure {
	if log == nil {
		log = nopLogger{}
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	errs := make([]error, len(codes))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, code := range codes {
		i, code := i, code
		g.Go(func() error {
			err := populateOne(ctx, cat, fetcher, code, log)
			if err != nil {
				log.Warnf("No prerequisite data for %s: %v", code, err)
			}
			errs[i] = err
			if onDone != nil {
				onDone(code, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	var failures []Failure
	for i, err := range errs {
		if err != nil {
			failures = append(failures, Failure{Code: codes[i], Err: err})
		}
	}
	return failures
}

func populateOne(ctx context.Context, cat *catalog.Catalog, fetcher degreeworks.CourseFetcher, code audit.CourseCode, log Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	link, err := fetcher.FetchCourseLink(ctx, code)
	if err != nil {
		return err
	}
	if link.Code != code {
		log.Debugf("Course-link for %s answered as %s", code, link.Code)
	}
	return cat.Upsert(link.Code, link.Title, link.Prerequisites)
}

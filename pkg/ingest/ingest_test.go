package ingest

import (
	"context"
	"errors"
	"os"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alpha216/dwroadmap/pkg/audit"
	"github.com/alpha216/dwroadmap/pkg/catalog"
	"github.com/alpha216/dwroadmap/pkg/degreeworks"
	"github.com/alpha216/dwroadmap/pkg/prereq"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeFetcher struct {
	links map[audit.CourseCode]*degreeworks.CourseLink
	errs  map[audit.CourseCode]error
	delay time.Duration

	inFlight    int32
	maxInFlight int32
	calls       int32
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) FetchCourseLink(ctx context.Context, code audit.CourseCode) (*degreeworks.CourseLink, error) {
	atomic.AddInt32(&f.calls, 1)
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		m := atomic.LoadInt32(&f.maxInFlight)
		if n <= m || atomic.CompareAndSwapInt32(&f.maxInFlight, m, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.errs[code]; err != nil {
		return nil, err
	}
	if link, ok := f.links[code]; ok {
		return link, nil
	}
	return &degreeworks.CourseLink{Code: code, Title: string(code)}, nil
}

func readAudit(t *testing.T) []byte {
	t.Helper()
	raw, err := os.ReadFile("testdata/audit.json")
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

var fixtureCodes = []audit.CourseCode{
	"ENGL1100", "ENGL1120", "PHIL1020",
	"COMP1210", "COMP2210", "COMP3270", "COMP4000", "COMP4300", "COMP4320",
}

func TestRun(t *testing.T) {
	fetchErr := &degreeworks.FetchError{Code: "PHIL1020", StatusCode: 500}
	f := &fakeFetcher{
		links: map[audit.CourseCode]*degreeworks.CourseLink{
			"COMP2210": {Code: "COMP2210", Title: "Fundamentals II", Prerequisites: []prereq.Token{
				{SubjectCode: "COMP", CourseNumber: "1210", MinimumGrade: "C"},
			}},
			"COMP4300": {Code: "COMP4300", Title: "Compilers", Prerequisites: []prereq.Token{
				{SubjectCode: "COMP", CourseNumber: ""},
			}},
		},
		errs: map[audit.CourseCode]error{"PHIL1020": fetchErr},
	}

	var mu sync.Mutex
	done := map[audit.CourseCode]error{}
	res, err := Run(context.Background(), Config{
		Audit:       readAudit(t),
		Fetcher:     f,
		Concurrency: 3,
		OnCourseDone: func(code audit.CourseCode, err error) {
			mu.Lock()
			done[code] = err
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !reflect.DeepEqual(res.Codes, fixtureCodes) {
		t.Fatalf("codes: want %v, got %v", fixtureCodes, res.Codes)
	}
	if len(done) != len(fixtureCodes) {
		t.Fatalf("OnCourseDone called for %d courses, want %d", len(done), len(fixtureCodes))
	}

	if len(res.Failures) != 2 {
		t.Fatalf("want 2 failures, got %v", res.Failures)
	}
	if res.Failures[0].Code != "PHIL1020" || !errors.Is(res.Failures[0], fetchErr) {
		t.Fatalf("unexpected first failure %v", res.Failures[0])
	}
	var me *prereq.MalformedPrerequisiteError
	if res.Failures[1].Code != "COMP4300" || !errors.As(res.Failures[1].Err, &me) {
		t.Fatalf("unexpected second failure %v", res.Failures[1])
	}

	info := res.Snapshot.ClassInfo
	if info.Len() != len(fixtureCodes)-2 {
		t.Fatalf("want %d catalog entries, got %d", len(fixtureCodes)-2, info.Len())
	}
	for _, code := range []audit.CourseCode{"PHIL1020", "COMP4300"} {
		if _, ok := info.Get(code); ok {
			t.Fatalf("%s must stay unknown after a failure", code)
		}
	}
	if got := info.Name("COMP2210"); got != "Fundamentals II" {
		t.Fatalf("unexpected name %q", got)
	}
	if !reflect.DeepEqual(res.Snapshot.InProgress, []audit.CourseCode{"COMP3270"}) {
		t.Fatalf("unexpected in-progress %v", res.Snapshot.InProgress)
	}
	ev := catalog.Evaluator{Catalog: info, Taken: res.Snapshot.TakenSet()}
	if ev.Status("COMP2210", false) != catalog.StatusAvailable {
		t.Fatal("COMP2210 should be available with COMP1210 taken")
	}
}

func TestPopulateRespectsConcurrency(t *testing.T) {
	f := &fakeFetcher{delay: 10 * time.Millisecond}
	cat := catalog.New()
	failures := Populate(context.Background(), cat, f, fixtureCodes, 2, nil, nil)
	if len(failures) != 0 {
		t.Fatalf("unexpected failures %v", failures)
	}
	if m := atomic.LoadInt32(&f.maxInFlight); m > 2 || m < 1 {
		t.Fatalf("max in flight %d, want between 1 and 2", m)
	}
	if cat.Len() != len(fixtureCodes) {
		t.Fatalf("want %d entries, got %d", len(fixtureCodes), cat.Len())
	}
}

func TestRunStructuralErrorAborts(t *testing.T) {
	f := &fakeFetcher{}
	_, err := Run(context.Background(), Config{
		Audit:   []byte(`{"blockArray": [{"ruleArray": []}]}`),
		Fetcher: f,
	})
	var se *audit.StructuralError
	if !errors.As(err, &se) || se.Path != "blockArray[0].title" {
		t.Fatalf("expected StructuralError at blockArray[0].title, got %v", err)
	}
	if f.calls != 0 {
		t.Fatal("no course must be fetched for a rejected audit")
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, Config{Audit: readAudit(t), Fetcher: &fakeFetcher{}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestRunWithoutFetcher(t *testing.T) {
	res, err := Run(context.Background(), Config{Audit: readAudit(t)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Snapshot.ClassInfo.Len() != 0 || len(res.Failures) != 0 {
		t.Fatalf("expected an empty catalog, got %d entries", res.Snapshot.ClassInfo.Len())
	}
	if len(res.Snapshot.Roadmap()) != 2 {
		t.Fatal("roadmap must still render without catalog data")
	}
}

func TestRunLenient(t *testing.T) {
	doc := []byte(`{"blockArray": [{"title": "Core", "ruleArray": [{"label": "Any", "advice": {"courseArray": [{"discipline": "COMP", "number": "3@"}, {"discipline": "MATH", "number": "1610"}]}}]}]}`)

	if _, err := Run(context.Background(), Config{Audit: doc}); err == nil {
		t.Fatal("strict mode must reject COMP3@")
	}

	res, err := Run(context.Background(), Config{Audit: doc, Lenient: true})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Codes, []audit.CourseCode{"MATH1610"}) {
		t.Fatalf("unexpected codes %v", res.Codes)
	}
	if !reflect.DeepEqual(res.Skipped, []string{"blockArray[0].ruleArray[0].advice.courseArray[0]"}) {
		t.Fatalf("unexpected skipped %v", res.Skipped)
	}
}

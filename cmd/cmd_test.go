package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alpha216/dwroadmap/pkg/roadmap"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetFlags puts every flag of the command tree back to its default so
// consecutive executions do not see each other's values.
func resetFlags(c *cobra.Command) {
	for _, fs := range []*pflag.FlagSet{c.Flags(), c.PersistentFlags()} {
		fs.VisitAll(func(f *pflag.Flag) {
			f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

// writeConfig creates a config file pointing at a fresh database.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "dwroadmap.yaml")
	body := "db:\n  path: " + filepath.Join(dir, "dwroadmap.sqlite") + "\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIngestThenViews(t *testing.T) {
	ctx := context.Background()
	cfg := writeConfig(t)
	common := []string{"--config", cfg, "-l", "error"}
	run := func(args ...string) string {
		t.Helper()
		out, err := execute(t, ctx, append(args, common...)...)
		if err != nil {
			t.Fatalf("%v: %v\n%s", args, err, out)
		}
		return out
	}

	out := run("ingest", "--audit", "testdata/audit.json", "--courses", "testdata/courses")
	if !strings.Contains(out, "2 sections, 3 courses, 2 with prerequisite data, 1 failed") {
		t.Fatalf("unexpected ingest summary:\n%s", out)
	}
	if !strings.Contains(out, "  COMP3270: fetch COMP3270: ") {
		t.Fatalf("missing failure line for COMP3270:\n%s", out)
	}

	want := `Major
  COMP1210 [taken] Fundamentals of Computing I
    COMP2210 [available] Fundamentals of Computing II
  COMP3270 [available]

Degree Information
`
	if got := run("roadmap"); got != want {
		t.Fatalf("unexpected roadmap.\nwant:\n%s\ngot:\n%s", want, got)
	}

	var sections []roadmap.Section
	if err := json.Unmarshal([]byte(run("roadmap", "--section", "Major", "-o", "json")), &sections); err != nil {
		t.Fatal(err)
	}
	if len(sections) != 1 || sections[0].Name != "Major" || len(sections[0].Branches()) != 2 {
		t.Fatalf("unexpected json roadmap %+v", sections)
	}

	want = `Major
  COMP1210 (taken) Fundamentals of Computing I
  COMP2210 (available) Fundamentals of Computing II
  COMP3270 (available)

Degree Information
  -
`
	if got := run("summary"); got != want {
		t.Fatalf("unexpected summary.\nwant:\n%s\ngot:\n%s", want, got)
	}

	out = run("course", "comp 2210")
	for _, s := range []string{"COMP2210 Fundamentals of Computing II [available]\n", "Requires: COMP1210\n", "COMP1210  yes"} {
		if !strings.Contains(out, s) {
			t.Fatalf("course output lacks %q:\n%s", s, out)
		}
	}
	if got, want := run("course", "COMP3270"), "COMP3270 [available]\nNo prerequisite information available\n"; got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
	if got, want := run("course", "COMP1210"), "COMP1210 Fundamentals of Computing I [taken]\nNo prerequisites required\n"; got != want {
		t.Fatalf("want %q, got %q", want, got)
	}

	if out := run("db", "list"); !strings.Contains(out, "file:testdata/audit.json") {
		t.Fatalf("snapshot missing from list:\n%s", out)
	}
}

func TestViewsWithoutSnapshot(t *testing.T) {
	out, err := execute(t, context.Background(), "roadmap", "--config", writeConfig(t), "-l", "error")
	if err == nil || !strings.Contains(err.Error(), "dwroadmap ingest") {
		t.Fatalf("want a hint to ingest first, got %v", err)
	}
	// Execute prints the error once; cobra itself must stay quiet.
	if strings.Contains(out, "Error:") {
		t.Fatalf("error printed by cobra as well:\n%s", out)
	}
}

func TestEnvOverridesAreValidated(t *testing.T) {
	t.Setenv("DWROADMAP_FETCH_CONCURRENCY", "0")

	_, err := execute(t, context.Background(), "db", "stats", "--config", writeConfig(t), "-l", "error")
	if err == nil || !strings.Contains(err.Error(), "fetch.concurrency must be at least 1") {
		t.Fatalf("want the environment value to be validated, got %v", err)
	}
}

func TestServeStopsWhenContextEnds(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	cfg := writeConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	errc := make(chan error, 1)
	go func() {
		_, err := execute(t, ctx, "serve", "--bind", addr, "--config", cfg, "-l", "error")
		errc <- err
	}()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("serve must exit cleanly on cancel, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after its context was cancelled")
	}
}

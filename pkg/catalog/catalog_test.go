package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/alpha216/dwroadmap/pkg/audit"
	"github.com/alpha216/dwroadmap/pkg/prereq"
)

func tokens(codes ...string) []prereq.Token {
	var out []prereq.Token
	for i, c := range codes {
		d, n := audit.CourseCode(c).Split()
		t := prereq.Token{SubjectCode: d, CourseNumber: n}
		if i > 0 {
			t.Connector = prereq.ConnectorAnd
		}
		out = append(out, t)
	}
	return out
}

func TestUpsertAndGet(t *testing.T) {
	c := New()

	if _, ok := c.Get("COMP2210"); ok {
		t.Fatal("empty catalog must report unknown")
	}

	if err := c.Upsert("COMP2210", "Fundamentals of Computing II", tokens("COMP1210")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := c.Upsert("COMP1210", "Fundamentals of Computing I", nil); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	e, ok := c.Get("COMP2210")
	if !ok || e.Name != "Fundamentals of Computing II" {
		t.Fatalf("unexpected entry %#v (ok=%v)", e, ok)
	}
	if want := []audit.CourseCode{"COMP1210"}; !reflect.DeepEqual(e.Prerequisites.Codes(), want) {
		t.Fatalf("prereqs: want %v, got %v", want, e.Prerequisites.Codes())
	}

	none, ok := c.Get("COMP1210")
	if !ok || !none.Prerequisites.Empty() {
		t.Fatalf("course without prerequisites must be known with an empty expression, got %#v", none)
	}

	if err := c.Upsert("COMP2210", "Renamed", nil); err != nil {
		t.Fatal(err)
	}
	if got := c.Name("COMP2210"); got != "Renamed" {
		t.Fatalf("upsert must overwrite, got name %q", got)
	}
	if c.Len() != 2 {
		t.Fatalf("len: want 2, got %d", c.Len())
	}
}

func TestUpsertMalformedLeavesCourseUnknown(t *testing.T) {
	c := New()
	err := c.Upsert("COMP3700", "Software Modeling", []prereq.Token{{SubjectCode: "COMP"}})
	var me *prereq.MalformedPrerequisiteError
	if !errors.As(err, &me) {
		t.Fatalf("expected MalformedPrerequisiteError, got %v", err)
	}
	if _, ok := c.Get("COMP3700"); ok {
		t.Fatal("failed upsert must not store an entry")
	}
	if !IsSatisfied(c, "COMP3700", audit.NewTakenSet()) {
		t.Fatal("unknown course must read as having no known prerequisites")
	}

	var ce *audit.InvalidCourseCodeError
	if err := c.Upsert("comp1", "", nil); !errors.As(err, &ce) {
		t.Fatalf("expected InvalidCourseCodeError, got %v", err)
	}
}

func TestConcurrentUpserts(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code := audit.CourseCode(fmt.Sprintf("COMP%d", 1000+i%10))
			if err := c.Upsert(code, "same", tokens("MATH1610")); err != nil {
				t.Errorf("Upsert(%s): %v", code, err)
			}
			c.Get(code)
		}(i)
	}
	wg.Wait()
	if c.Len() != 10 {
		t.Fatalf("want 10 entries, got %d", c.Len())
	}
}

func TestCatalogJSON(t *testing.T) {
	c := New()
	if err := c.Upsert("COMP2210", "Fundamentals II", []prereq.Token{{SubjectCode: "COMP", CourseNumber: "1210", MinimumGrade: "C"}}); err != nil {
		t.Fatal(err)
	}
	if err := c.Upsert("COMP1210", "Fundamentals I", nil); err != nil {
		t.Fatal(err)
	}

	raw, err := json.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"COMP1210":{"name":"Fundamentals I","prerequisites":[]},"COMP2210":{"name":"Fundamentals II","prerequisites":[[{"COMP1210":{"minimumGrade":"C"}}]]}}`
	if string(raw) != want {
		t.Fatalf("unexpected JSON.\nwant: %s\ngot:  %s", want, raw)
	}

	back := New()
	if err := json.Unmarshal(raw, back); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back.Entries(), []Entry{
		{Code: "COMP1210", Name: "Fundamentals I"},
		{Code: "COMP2210", Name: "Fundamentals II", Prerequisites: prereq.Expression{{{Code: "COMP1210", MinimumGrade: "C"}}}},
	}) {
		t.Fatalf("round trip mismatch: %#v", back.Entries())
	}
}

package catalog

import "github.com/alpha216/dwroadmap/pkg/audit"

// Status is the availability tag of one course in the roadmap.
type Status string

const (
	StatusTaken     Status = "taken"
	StatusAvailable Status = "available"
	StatusLocked    Status = "locked"
)

// Lookup is the read side of a Catalog.
type Lookup interface {
	Get(code audit.CourseCode) (Entry, bool)
}

// IsSatisfied reports whether the prerequisites of code are met by taken.
// A course with no catalog entry counts as having no known prerequisites,
// so the result is true while data is still missing. Minimum grades are
// not checked.
func IsSatisfied(lookup Lookup, code audit.CourseCode, taken audit.TakenSet) bool {
	if lookup == nil {
		return true
	}
	e, ok := lookup.Get(code)
	if !ok {
		return true
	}
	return e.Prerequisites.SatisfiedBy(taken.Has)
}

// Evaluator binds a lookup to the taken set of one session.
type Evaluator struct {
	Catalog Lookup
	Taken   audit.TakenSet
}

func (ev Evaluator) IsSatisfied(code audit.CourseCode) bool {
	return IsSatisfied(ev.Catalog, code, ev.Taken)
}

// Status tags a course. isTaken comes from the node the course sits on.
func (ev Evaluator) Status(code audit.CourseCode, isTaken bool) Status {
	if isTaken {
		return StatusTaken
	}
	if ev.IsSatisfied(code) {
		return StatusAvailable
	}
	return StatusLocked
}

// PrerequisiteCodes returns the flattened prerequisite codes of code, or nil
// when the course is unknown.
func PrerequisiteCodes(lookup Lookup, code audit.CourseCode) []audit.CourseCode {
	if lookup == nil {
		return nil
	}
	e, ok := lookup.Get(code)
	if !ok {
		return nil
	}
	return e.Prerequisites.Codes()
}

package audit

import (
	"fmt"
	"regexp"
	"sort"
)

// CourseCode is a course identifier in canonical form: discipline letters
// followed by the course number, e.g. "COMP3700".
type CourseCode string

var courseCodePattern = regexp.MustCompile(`^([A-Z]+)([0-9]+)$`)

// InvalidCourseCodeError reports a value that is not a canonical course code.
type InvalidCourseCodeError struct {
	Value string
}

func (e *InvalidCourseCodeError) Error() string {
	return fmt.Sprintf("invalid course code %q (want letters followed by digits, e.g. COMP3700)", e.Value)
}

// NewCourseCode renders discipline+number and validates the result.
func NewCourseCode(discipline, number string) (CourseCode, error) {
	return ParseCourseCode(discipline + number)
}

func ParseCourseCode(s string) (CourseCode, error) {
	if !courseCodePattern.MatchString(s) {
		return "", &InvalidCourseCodeError{Value: s}
	}
	return CourseCode(s), nil
}

func (c CourseCode) Valid() bool {
	return courseCodePattern.MatchString(string(c))
}

// Split returns the discipline and number parts. Both are empty for an
// invalid code.
func (c CourseCode) Split() (discipline, number string) {
	m := courseCodePattern.FindStringSubmatch(string(c))
	if m == nil {
		return "", ""
	}
	return m[1], m[2]
}

func (c CourseCode) String() string { return string(c) }

// TakenSet is the set of courses a student has completed or is taking.
type TakenSet map[CourseCode]struct{}

func NewTakenSet(codes ...CourseCode) TakenSet {
	s := make(TakenSet, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

func (s TakenSet) Add(c CourseCode) { s[c] = struct{}{} }

func (s TakenSet) Has(c CourseCode) bool {
	_, ok := s[c]
	return ok
}

func (s TakenSet) Len() int { return len(s) }

// Sorted returns the members in lexical order.
func (s TakenSet) Sorted() []CourseCode {
	out := make([]CourseCode, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CollectTaken gathers every taken list of the tree into a set.
func CollectTaken(root *RequirementNode) TakenSet {
	s := make(TakenSet)
	root.Walk(func(_ []string, n *RequirementNode) {
		for _, c := range n.Taken {
			s.Add(c)
		}
	})
	return s
}

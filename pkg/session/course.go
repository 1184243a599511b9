package session

import (
	"github.com/alpha216/dwroadmap/pkg/audit"
	"github.com/alpha216/dwroadmap/pkg/catalog"
)

// PrerequisiteOption is one alternative of a prerequisite group as shown to
// the user.
type PrerequisiteOption struct {
	Code         audit.CourseCode `json:"code"`
	Name         string           `json:"name,omitempty"`
	MinimumGrade string           `json:"minimumGrade,omitempty"`
	Taken        bool             `json:"taken"`
}

// CourseDetail describes one course. Known is false when no catalog data was
// fetched for it, which is different from a course without prerequisites.
type CourseDetail struct {
	Code          audit.CourseCode       `json:"code"`
	Name          string                 `json:"name,omitempty"`
	Known         bool                   `json:"known"`
	Status        catalog.Status         `json:"status"`
	Prerequisites [][]PrerequisiteOption `json:"prerequisites"`
}

func (s *Snapshot) Course(code audit.CourseCode) CourseDetail {
	taken := s.TakenSet()
	d := CourseDetail{Code: code, Prerequisites: [][]PrerequisiteOption{}}

	ev := catalog.Evaluator{Catalog: s.ClassInfo, Taken: taken}
	d.Status = ev.Status(code, taken.Has(code))

	e, ok := s.ClassInfo.Get(code)
	if !ok {
		return d
	}
	d.Known = true
	d.Name = e.Name
	for _, g := range e.Prerequisites {
		group := make([]PrerequisiteOption, 0, len(g))
		for _, o := range g {
			group = append(group, PrerequisiteOption{
				Code:         o.Code,
				Name:         s.ClassInfo.Name(o.Code),
				MinimumGrade: o.MinimumGrade,
				Taken:        taken.Has(o.Code),
			})
		}
		d.Prerequisites = append(d.Prerequisites, group)
	}
	return d
}

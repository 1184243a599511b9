// Package session holds the persisted result of one audit ingestion and the
// views derived from it.
package session

import (
	"github.com/alpha216/dwroadmap/pkg/audit"
	"github.com/alpha216/dwroadmap/pkg/catalog"
	"github.com/alpha216/dwroadmap/pkg/roadmap"
)

// Snapshot is everything one ingestion produced. It is replaced as a whole by
// the next ingestion.
type Snapshot struct {
	Classes    *audit.RequirementNode `json:"classes"`
	ClassInfo  *catalog.Catalog       `json:"classInfo"`
	InProgress []audit.CourseCode     `json:"inProgress"`
}

func New(a *audit.Audit, info *catalog.Catalog) *Snapshot {
	if info == nil {
		info = catalog.New()
	}
	s := &Snapshot{ClassInfo: info, InProgress: []audit.CourseCode{}}
	if a != nil {
		s.Classes = a.Classes
		s.InProgress = append(s.InProgress, a.InProgress...)
	}
	if s.Classes == nil {
		s.Classes = &audit.RequirementNode{}
	}
	return s
}

// TakenSet collects every course applied to a rule anywhere in the tree.
func (s *Snapshot) TakenSet() audit.TakenSet {
	return audit.CollectTaken(s.Classes)
}

// Roadmap renders every non-empty section.
func (s *Snapshot) Roadmap() []roadmap.Section {
	return roadmap.Build(s.Classes, s.ClassInfo, s.TakenSet())
}

// SummaryCourse is one line of the summary listing.
type SummaryCourse struct {
	Code  audit.CourseCode `json:"code"`
	Taken bool             `json:"taken"`
}

// SummarySection lists the courses of the direct rules of one block.
type SummarySection struct {
	Name    string          `json:"name"`
	Courses []SummaryCourse `json:"courses"`
}

// Summary is the short listing: every block, with the taken then available
// courses of each of its direct rules. Nested rules are not descended into.
func (s *Snapshot) Summary() []SummarySection {
	if s.Classes == nil {
		return nil
	}
	out := make([]SummarySection, 0, len(s.Classes.Children))
	for _, block := range s.Classes.Children {
		sec := SummarySection{Name: block.Label, Courses: []SummaryCourse{}}
		if block.Node != nil {
			for _, rule := range block.Node.Children {
				if rule.Node == nil {
					continue
				}
				for _, c := range rule.Node.Taken {
					sec.Courses = append(sec.Courses, SummaryCourse{Code: c, Taken: true})
				}
				for _, c := range rule.Node.Available {
					sec.Courses = append(sec.Courses, SummaryCourse{Code: c})
				}
			}
		}
		out = append(out, sec)
	}
	return out
}

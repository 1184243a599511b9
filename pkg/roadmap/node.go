// Package roadmap turns a normalized requirement tree into per-section
// visualization forests ordered by prerequisite chains.
package roadmap

import (
	"strings"

	"github.com/alpha216/dwroadmap/pkg/audit"
	"github.com/alpha216/dwroadmap/pkg/catalog"
)

// VisualNode is one box of the roadmap. A node holding exactly one course is
// a course node; anything else is a category. Ids are unique within one
// rendering pass only.
type VisualNode struct {
	ID        int                `json:"id" yaml:"id"`
	Title     string             `json:"title" yaml:"title"`
	Taken     []audit.CourseCode `json:"taken" yaml:"taken"`
	Available []audit.CourseCode `json:"available" yaml:"available"`
	Status    catalog.Status     `json:"status,omitempty" yaml:"status,omitempty"`
	Name      string             `json:"name,omitempty" yaml:"name,omitempty"`
	Children  []*VisualNode      `json:"children" yaml:"children"`
}

func newNode(id int, title string) *VisualNode {
	return &VisualNode{
		ID:        id,
		Title:     title,
		Taken:     []audit.CourseCode{},
		Available: []audit.CourseCode{},
		Children:  []*VisualNode{},
	}
}

// CourseCount is the number of courses held directly by n.
func (n *VisualNode) CourseCount() int {
	return len(n.Taken) + len(n.Available)
}

// IsCourse reports whether n stands for a single course. A course node may
// have children once the reorganizer has hung dependent courses below it.
func (n *VisualNode) IsCourse() bool {
	return n.CourseCount() == 1
}

// IsLeafCourse is a course node without children.
func (n *VisualNode) IsLeafCourse() bool {
	return n.IsCourse() && len(n.Children) == 0
}

// Code returns the course of a course node, or "" for a category.
func (n *VisualNode) Code() audit.CourseCode {
	if !n.IsCourse() {
		return ""
	}
	if len(n.Taken) > 0 {
		return n.Taken[0]
	}
	return n.Available[0]
}

// Heading is the last segment of a merged title.
func (n *VisualNode) Heading() string {
	parts := strings.Split(n.Title, "\n")
	return parts[len(parts)-1]
}

// Breadcrumb joins the merged-away title segments with " > ".
func (n *VisualNode) Breadcrumb() string {
	parts := strings.Split(n.Title, "\n")
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts[:len(parts)-1], " > ")
}

// DisplayName prefers the rule title a course was collapsed from and falls
// back to the catalog name.
func (n *VisualNode) DisplayName() string {
	if n.Title != "" {
		return n.Heading()
	}
	return n.Name
}

// TotalCourses counts the courses held by n and all of its descendants.
func (n *VisualNode) TotalCourses() int {
	total := n.CourseCount()
	for _, ch := range n.Children {
		total += ch.TotalCourses()
	}
	return total
}

// Walk visits n and its descendants depth first. depth is 0 for n.
func (n *VisualNode) Walk(fn func(depth int, node *VisualNode)) {
	var walk func(int, *VisualNode)
	walk = func(depth int, node *VisualNode) {
		fn(depth, node)
		for _, ch := range node.Children {
			walk(depth+1, ch)
		}
	}
	walk(0, n)
}

// idGen hands out node ids for one rendering pass.
type idGen struct {
	n int
}

func (g *idGen) next() int {
	id := g.n
	g.n++
	return id
}

func maxID(nodes []*VisualNode) int {
	m := -1
	for _, n := range nodes {
		n.Walk(func(_ int, node *VisualNode) {
			if node.ID > m {
				m = node.ID
			}
		})
	}
	return m
}

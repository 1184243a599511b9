package roadmap

import (
	"github.com/alpha216/dwroadmap/pkg/audit"
	"github.com/alpha216/dwroadmap/pkg/catalog"
)

// Section is the roadmap of one top-level requirement block.
type Section struct {
	ID   int         `json:"id" yaml:"id"`
	Name string      `json:"name" yaml:"name"`
	Root *VisualNode `json:"root" yaml:"root"`
	// Report lists the prerequisite edges refused while ordering the section.
	Report Report `json:"report" yaml:"report"`
}

// Branches returns what hangs off the section title: the root's children,
// or the root itself when it is a bare course list. Titles merged into a
// collapsed root are not shown.
func (s Section) Branches() []*VisualNode {
	switch {
	case s.Root == nil:
		return nil
	case len(s.Root.Children) > 0:
		return s.Root.Children
	case s.Root.CourseCount() > 0:
		return []*VisualNode{s.Root}
	default:
		return nil
	}
}

// Builder runs one rendering pass. The zero value renders without catalog
// data, so every course not taken reads as available.
type Builder struct {
	Catalog catalog.Lookup
	Taken   audit.TakenSet

	ids idGen
}

// Build renders every non-empty block of classes in document order.
func Build(classes *audit.RequirementNode, lookup catalog.Lookup, taken audit.TakenSet) []Section {
	b := &Builder{Catalog: lookup, Taken: taken}
	return b.Build(classes)
}

func (b *Builder) Build(classes *audit.RequirementNode) []Section {
	b.ids = idGen{}
	if classes == nil {
		return nil
	}
	var out []Section
	for _, ch := range classes.Children {
		if ch.Node == nil {
			continue
		}
		out = append(out, b.section(ch.Label, ch.Node))
	}
	return out
}

func (b *Builder) section(name string, node *audit.RequirementNode) Section {
	s := Section{ID: b.ids.next(), Name: name}
	processed := b.process(node, "")

	r := &reorganizer{lookup: b.Catalog, ids: &b.ids}
	ordered := r.group([]*VisualNode{processed})
	s.Root = ordered[0]
	s.Report = r.report

	ev := catalog.Evaluator{Catalog: b.Catalog, Taken: b.Taken}
	s.Root.Walk(func(_ int, n *VisualNode) {
		if !n.IsCourse() {
			return
		}
		code := n.Code()
		n.Status = ev.Status(code, len(n.Taken) > 0)
		n.Name = catalogName(b.Catalog, code)
	})
	return s
}

func catalogName(lookup catalog.Lookup, code audit.CourseCode) string {
	if lookup == nil {
		return ""
	}
	e, _ := lookup.Get(code)
	return e.Name
}

// process converts a requirement node into a visual node. A category with a
// single non-empty child is collapsed into it, joining the titles with a
// newline.
func (b *Builder) process(node *audit.RequirementNode, title string) *VisualNode {
	if node == nil {
		return nil
	}
	id := b.ids.next()

	children := node.NonEmptyChildren()
	if !node.HasCourses() && len(children) == 1 {
		return b.process(children[0].Node, mergeTitle(title, children[0].Label))
	}

	out := newNode(id, title)
	out.Taken = append(out.Taken, node.Taken...)
	out.Available = append(out.Available, node.Available...)
	for _, ch := range children {
		out.Children = append(out.Children, b.process(ch.Node, ch.Label))
	}
	return out
}

func mergeTitle(title, label string) string {
	if title == "" {
		return label
	}
	return title + "\n" + label
}

// FindSection returns the section called name.
func FindSection(sections []Section, name string) (Section, bool) {
	for _, s := range sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

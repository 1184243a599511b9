package roadmap

import (
	"github.com/alpha216/dwroadmap/pkg/audit"
	"github.com/alpha216/dwroadmap/pkg/catalog"
)

// Edge is a refused attachment: Child requires Parent, but hanging Child
// below Parent would have made Child its own ancestor.
type Edge struct {
	Parent audit.CourseCode `json:"parent" yaml:"parent"`
	Child  audit.CourseCode `json:"child" yaml:"child"`
}

// Report collects what a reorganization could not express as a tree.
type Report struct {
	Cycles []Edge `json:"cycles,omitempty" yaml:"cycles,omitempty"`
}

// Reorganize orders one sibling group by prerequisites. A course whose
// prerequisite is also present among the siblings is hung below it. The
// input nodes are left untouched; new synthetic nodes get ids above the
// largest id in siblings.
func Reorganize(siblings []*VisualNode, lookup catalog.Lookup) ([]*VisualNode, Report) {
	r := &reorganizer{lookup: lookup, ids: &idGen{n: maxID(siblings) + 1}}
	out := r.group(siblings)
	return out, r.report
}

type reorganizer struct {
	lookup catalog.Lookup
	ids    *idGen
	report Report
}

// group returns the forest roots in first-observed order followed by the
// category blocks in input order.
func (r *reorganizer) group(siblings []*VisualNode) []*VisualNode {
	var (
		leaves     []*VisualNode
		categories []*VisualNode
	)
	for _, s := range siblings {
		switch {
		case s == nil:
		case s.IsLeafCourse():
			leaves = append(leaves, clone(s))
		default:
			categories = append(categories, r.block(s))
		}
	}
	out := make([]*VisualNode, 0, len(siblings))
	out = append(out, r.chain(leaves)...)
	return append(out, categories...)
}

// block reorganizes a category. Courses listed directly on it are expanded
// into one synthetic course node each and ordered together with its nested
// children.
func (r *reorganizer) block(n *VisualNode) *VisualNode {
	out := clone(n)
	out.Taken = []audit.CourseCode{}
	out.Available = []audit.CourseCode{}

	members := make([]*VisualNode, 0, n.CourseCount()+len(n.Children))
	for _, code := range n.Taken {
		leaf := newNode(r.ids.next(), "")
		leaf.Taken = append(leaf.Taken, code)
		members = append(members, leaf)
	}
	for _, code := range n.Available {
		leaf := newNode(r.ids.next(), "")
		leaf.Available = append(leaf.Available, code)
		members = append(members, leaf)
	}
	members = append(members, n.Children...)
	out.Children = r.group(members)
	return out
}

type entry struct {
	node     *VisualNode
	parent   *entry
	children []*entry
}

// chain builds the prerequisite forest over leaf course nodes. Each leaf is
// attached below the first of its prerequisites, in declaration order, that
// is present in the group and would not close a cycle.
func (r *reorganizer) chain(leaves []*VisualNode) []*VisualNode {
	entries := make([]*entry, len(leaves))
	byCode := make(map[audit.CourseCode]*entry, len(leaves))
	for i, leaf := range leaves {
		e := &entry{node: leaf}
		entries[i] = e
		// Repeated codes: the first node is the attachment target.
		if _, dup := byCode[leaf.Code()]; !dup {
			byCode[leaf.Code()] = e
		}
	}

	for _, e := range entries {
		code := e.node.Code()
		for _, p := range catalog.PrerequisiteCodes(r.lookup, code) {
			if p == code {
				continue
			}
			parent, ok := byCode[p]
			if !ok || parent == e {
				continue
			}
			if parent.descendsFrom(e) {
				r.report.Cycles = append(r.report.Cycles, Edge{Parent: p, Child: code})
				continue
			}
			parent.children = append(parent.children, e)
			e.parent = parent
			break
		}
	}

	var roots []*VisualNode
	for _, e := range entries {
		if e.parent == nil {
			roots = append(roots, e.build())
		}
	}
	return roots
}

func (e *entry) descendsFrom(ancestor *entry) bool {
	for cur := e; cur != nil; cur = cur.parent {
		if cur == ancestor {
			return true
		}
	}
	return false
}

func (e *entry) build() *VisualNode {
	for _, ch := range e.children {
		e.node.Children = append(e.node.Children, ch.build())
	}
	return e.node
}

func clone(n *VisualNode) *VisualNode {
	out := newNode(n.ID, n.Title)
	out.Taken = append(out.Taken, n.Taken...)
	out.Available = append(out.Available, n.Available...)
	out.Status = n.Status
	out.Name = n.Name
	return out
}

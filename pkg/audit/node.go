package audit

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Kind classifies a RequirementNode once it has been built.
type Kind int

const (
	// KindEmpty is a rule with neither nested rules nor courses. It is stored
	// as a nil node and is never rendered.
	KindEmpty Kind = iota
	// KindCourseList is a leaf category carrying taken/available courses.
	KindCourseList
	// KindCategory groups nested entries. A category may also carry courses
	// directly when the source rule had both nested rules and applied classes.
	KindCategory
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindCourseList:
		return "courses"
	case KindCategory:
		return "category"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Child is one labelled entry of a category. A nil Node is the explicit
// empty marker, distinct from an absent label.
type Child struct {
	Label string
	Node  *RequirementNode
}

// RequirementNode is one requirement category of a normalized audit.
type RequirementNode struct {
	Label     string
	Taken     []CourseCode
	Available []CourseCode
	Children  []Child
}

func (n *RequirementNode) Kind() Kind {
	switch {
	case n == nil:
		return KindEmpty
	case len(n.Children) > 0:
		return KindCategory
	case n.HasCourses():
		return KindCourseList
	default:
		return KindCategory
	}
}

func (n *RequirementNode) HasCourses() bool {
	return n != nil && len(n.Taken)+len(n.Available) > 0
}

// Child returns the entry stored under label. ok is false when the label is
// absent; node is nil with ok true for an empty entry.
func (n *RequirementNode) Child(label string) (node *RequirementNode, ok bool) {
	if n == nil {
		return nil, false
	}
	for _, ch := range n.Children {
		if ch.Label == label {
			return ch.Node, true
		}
	}
	return nil, false
}

// NonEmptyChildren returns the children that are not empty markers, in
// document order.
func (n *RequirementNode) NonEmptyChildren() []Child {
	if n == nil {
		return nil
	}
	out := make([]Child, 0, len(n.Children))
	for _, ch := range n.Children {
		if ch.Node != nil {
			out = append(out, ch)
		}
	}
	return out
}

// set stores node under label. A repeated label replaces the earlier value
// and keeps its position.
func (n *RequirementNode) set(label string, node *RequirementNode) {
	for i := range n.Children {
		if n.Children[i].Label == label {
			n.Children[i].Node = node
			return
		}
	}
	n.Children = append(n.Children, Child{Label: label, Node: node})
}

func (n *RequirementNode) isBare() bool {
	return len(n.Children) == 0 && !n.HasCourses()
}

// Walk visits n and every non-empty descendant in document order. path holds
// the labels from the root down to the visited node.
func (n *RequirementNode) Walk(fn func(path []string, node *RequirementNode)) {
	var walk func(path []string, node *RequirementNode)
	walk = func(path []string, node *RequirementNode) {
		if node == nil {
			return
		}
		fn(path, node)
		for _, ch := range node.Children {
			p := make([]string, len(path)+1)
			copy(p, path)
			p[len(path)] = ch.Label
			walk(p, ch.Node)
		}
	}
	walk(nil, n)
}

// Codes lists every taken and available course once, in first-seen order.
func (n *RequirementNode) Codes() []CourseCode {
	seen := make(map[CourseCode]bool)
	var out []CourseCode
	n.Walk(func(_ []string, node *RequirementNode) {
		for _, list := range [][]CourseCode{node.Taken, node.Available} {
			for _, c := range list {
				if !seen[c] {
					seen[c] = true
					out = append(out, c)
				}
			}
		}
	})
	return out
}

// MarshalJSON writes the node as an object whose keys are the child labels
// in document order, followed by "taken" and "available" when non-empty.
// Empty children are written as null.
func (n *RequirementNode) MarshalJSON() ([]byte, error) {
	if n == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(key string, raw []byte) error {
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(raw)
		return nil
	}

	for _, ch := range n.Children {
		raw, err := ch.Node.MarshalJSON()
		if err != nil {
			return nil, err
		}
		if err := write(ch.Label, raw); err != nil {
			return nil, err
		}
	}
	if len(n.Taken) > 0 {
		raw, err := json.Marshal(n.Taken)
		if err != nil {
			return nil, err
		}
		if err := write("taken", raw); err != nil {
			return nil, err
		}
	}
	if len(n.Available) > 0 {
		raw, err := json.Marshal(n.Available)
		if err != nil {
			return nil, err
		}
		if err := write("available", raw); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the shape written by MarshalJSON. Key order is kept.
func (n *RequirementNode) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("requirement node: invalid JSON")
	}
	parsed, err := nodeFromResult("", gjson.ParseBytes(data))
	if err != nil {
		return err
	}
	if parsed == nil {
		*n = RequirementNode{}
		return nil
	}
	label := n.Label
	*n = *parsed
	n.Label = label
	return nil
}

func nodeFromResult(label string, r gjson.Result) (*RequirementNode, error) {
	if r.Type == gjson.Null {
		return nil, nil
	}
	if !r.IsObject() {
		return nil, fmt.Errorf("requirement node %q: expected object or null", label)
	}
	node := &RequirementNode{Label: label}
	var err error
	r.ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		if (k == "taken" || k == "available") && value.IsArray() {
			var codes []CourseCode
			for _, v := range value.Array() {
				code, cerr := ParseCourseCode(v.String())
				if cerr != nil {
					err = fmt.Errorf("requirement node %q: %w", label, cerr)
					return false
				}
				codes = append(codes, code)
			}
			if k == "taken" {
				node.Taken = codes
			} else {
				node.Available = codes
			}
			return true
		}
		child, cerr := nodeFromResult(k, value)
		if cerr != nil {
			err = cerr
			return false
		}
		node.set(k, child)
		return true
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

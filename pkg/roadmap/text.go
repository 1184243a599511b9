package roadmap

import (
	"fmt"
	"io"
	"strings"
)

// WriteText prints sections as an indented tree, one course per line.
func WriteText(w io.Writer, sections []Section) error {
	for i, s := range sections {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w, s.Name); err != nil {
			return err
		}
		for _, b := range s.Branches() {
			if err := writeNode(w, b, 1); err != nil {
				return err
			}
		}
		for _, c := range s.Report.Cycles {
			if _, err := fmt.Fprintf(w, "  ! %s not placed under %s: circular prerequisites\n", c.Child, c.Parent); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeNode(w io.Writer, n *VisualNode, depth int) error {
	indent := strings.Repeat("  ", depth)
	var line string
	if n.IsCourse() {
		line = fmt.Sprintf("%s%s [%s]", indent, n.Code(), n.Status)
		if name := n.DisplayName(); name != "" {
			line += " " + name
		}
	} else {
		line = indent + n.Heading()
		if bc := n.Breadcrumb(); bc != "" {
			line += " (" + bc + ")"
		}
	}
	if _, err := fmt.Fprintln(w, line); err != nil {
		return err
	}
	for _, ch := range n.Children {
		if err := writeNode(w, ch, depth+1); err != nil {
			return err
		}
	}
	return nil
}

package audit

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// StructuralError reports a malformed audit document. Path points at the
// offending field, e.g. "blockArray[2].ruleArray[0].label".
type StructuralError struct {
	Path   string
	Reason string
	Err    error
}

func (e *StructuralError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed audit at %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed audit at %s: %s", e.Path, e.Reason)
}

func (e *StructuralError) Unwrap() error { return e.Err }

// Audit is the normalized form of one audit document.
type Audit struct {
	// Classes holds one child per block, keyed by block title.
	Classes    *RequirementNode
	InProgress []CourseCode
}

// Normalizer turns a raw audit document into a requirement tree.
type Normalizer struct {
	// LenientCodes drops course entries whose code is not canonical (advice
	// placeholders such as "COMP3@") instead of rejecting the document.
	LenientCodes bool
	// OnSkip is called for every entry dropped in lenient mode.
	OnSkip func(path, value string)
}

// Normalize runs a strict Normalizer.
func Normalize(doc []byte) (*Audit, error) {
	return (&Normalizer{}).Normalize(doc)
}

func (n *Normalizer) Normalize(doc []byte) (*Audit, error) {
	if !gjson.ValidBytes(doc) {
		return nil, &StructuralError{Path: "$", Reason: "document is not valid JSON"}
	}
	root := gjson.ParseBytes(doc)
	if !root.IsObject() {
		return nil, &StructuralError{Path: "$", Reason: "document is not an object"}
	}

	blocks := root.Get("blockArray")
	if !blocks.IsArray() {
		return nil, &StructuralError{Path: "blockArray", Reason: "missing or not an array"}
	}

	a := &Audit{Classes: &RequirementNode{}}
	for i, block := range blocks.Array() {
		path := fmt.Sprintf("blockArray[%d]", i)
		if !block.IsObject() {
			return nil, &StructuralError{Path: path, Reason: "block is not an object"}
		}
		title := block.Get("title")
		if title.Type != gjson.String {
			return nil, &StructuralError{Path: path + ".title", Reason: "missing block title"}
		}
		node := &RequirementNode{Label: title.Str}
		if rules := block.Get("ruleArray"); rules.Exists() {
			if !rules.IsArray() {
				return nil, &StructuralError{Path: path + ".ruleArray", Reason: "not an array"}
			}
			if err := n.rules(path+".ruleArray", rules.Array(), node); err != nil {
				return nil, err
			}
		}
		a.Classes.set(title.Str, node)
	}

	if inProgress := root.Get("inProgress.classArray"); inProgress.Exists() {
		if !inProgress.IsArray() {
			return nil, &StructuralError{Path: "inProgress.classArray", Reason: "not an array"}
		}
		codes, err := n.courses("inProgress.classArray", inProgress.Array())
		if err != nil {
			return nil, err
		}
		a.InProgress = codes
	}
	return a, nil
}

func (n *Normalizer) rules(path string, rules []gjson.Result, parent *RequirementNode) error {
	for i, rule := range rules {
		rp := fmt.Sprintf("%s[%d]", path, i)
		if !rule.IsObject() {
			return &StructuralError{Path: rp, Reason: "rule is not an object"}
		}
		label := rule.Get("label")
		if label.Type != gjson.String {
			return &StructuralError{Path: rp + ".label", Reason: "missing rule label"}
		}
		node := &RequirementNode{Label: label.Str}

		if nested := rule.Get("ruleArray"); nested.Exists() {
			if !nested.IsArray() {
				return &StructuralError{Path: rp + ".ruleArray", Reason: "not an array"}
			}
			if err := n.rules(rp+".ruleArray", nested.Array(), node); err != nil {
				return err
			}
		}

		// Nested rules and applied classes are not exclusive: both land on
		// the same entry.
		if applied := rule.Get("classesAppliedToRule"); applied.Exists() {
			if classes := applied.Get("classArray"); classes.Exists() {
				if !classes.IsArray() {
					return &StructuralError{Path: rp + ".classesAppliedToRule.classArray", Reason: "not an array"}
				}
				taken, err := n.courses(rp+".classesAppliedToRule.classArray", classes.Array())
				if err != nil {
					return err
				}
				node.Taken = taken
			}
		}
		if advice := rule.Get("advice"); advice.Exists() {
			if courses := advice.Get("courseArray"); courses.Exists() {
				if !courses.IsArray() {
					return &StructuralError{Path: rp + ".advice.courseArray", Reason: "not an array"}
				}
				available, err := n.courses(rp+".advice.courseArray", courses.Array())
				if err != nil {
					return err
				}
				node.Available = available
			}
		}

		if node.isBare() {
			parent.set(label.Str, nil)
		} else {
			parent.set(label.Str, node)
		}
	}
	return nil
}

func (n *Normalizer) courses(path string, items []gjson.Result) ([]CourseCode, error) {
	var out []CourseCode
	for i, item := range items {
		ip := fmt.Sprintf("%s[%d]", path, i)
		discipline, number := item.Get("discipline"), item.Get("number")
		if !discipline.Exists() {
			return nil, &StructuralError{Path: ip + ".discipline", Reason: "missing discipline"}
		}
		if !number.Exists() {
			return nil, &StructuralError{Path: ip + ".number", Reason: "missing number"}
		}
		code, err := NewCourseCode(discipline.String(), number.String())
		if err != nil {
			if n.LenientCodes {
				if n.OnSkip != nil {
					n.OnSkip(ip, discipline.String()+number.String())
				}
				continue
			}
			return nil, &StructuralError{Path: ip, Reason: "bad course code", Err: err}
		}
		out = append(out, code)
	}
	return out, nil
}

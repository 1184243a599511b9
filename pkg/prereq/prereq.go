// Package prereq parses course-link prerequisite token lists into an
// AND-of-OR expression.
package prereq

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alpha216/dwroadmap/pkg/audit"
	"github.com/tidwall/gjson"
)

const (
	ConnectorAnd = "A"
	ConnectorOr  = "O"
)

// Token is one entry of a course-link "prerequisites" array. Connector joins
// the token to the one before it.
type Token struct {
	SubjectCode      string `json:"subjectCodePrerequisite"`
	CourseNumber     string `json:"courseNumberPrerequisite"`
	MinimumGrade     string `json:"minimumGrade,omitempty"`
	Connector        string `json:"connector,omitempty"`
	RightParenthesis string `json:"rightParenthesis,omitempty"`
}

func (t Token) isAnd() bool {
	c := strings.ToUpper(strings.TrimSpace(t.Connector))
	return c == ConnectorAnd || c == "AND"
}

func (t Token) closesGroup() bool {
	return strings.Contains(t.RightParenthesis, ")")
}

func (t Token) code() (audit.CourseCode, error) {
	subject := strings.TrimSpace(t.SubjectCode)
	number := strings.TrimSpace(t.CourseNumber)
	if subject == "" {
		return "", fmt.Errorf("missing subject code")
	}
	if number == "" {
		return "", fmt.Errorf("missing course number")
	}
	return audit.NewCourseCode(subject, number)
}

// MalformedPrerequisiteError reports a token that cannot be rendered into a
// course code.
type MalformedPrerequisiteError struct {
	Index int
	Token Token
	Err   error
}

func (e *MalformedPrerequisiteError) Error() string {
	return fmt.Sprintf("prerequisite token %d (%q %q): %v", e.Index, e.Token.SubjectCode, e.Token.CourseNumber, e.Err)
}

func (e *MalformedPrerequisiteError) Unwrap() error { return e.Err }

// Option is one alternative of an OR-group.
type Option struct {
	Code audit.CourseCode
	// MinimumGrade is descriptive only; it never gates satisfaction.
	MinimumGrade string
}

// Group is satisfied when any one of its options is taken.
type Group []Option

// Expression is satisfied when every group is satisfied. An empty
// expression is always satisfied.
type Expression []Group

// Parse groups tokens in a single left-to-right pass. A group closes on a
// token carrying ')', on the last token, or when the next token's connector
// is AND. Parentheses are only a group-end signal; nesting is not rebuilt.
func Parse(tokens []Token) (Expression, error) {
	var (
		result  Expression
		current Group
	)
	for i, tok := range tokens {
		code, err := tok.code()
		if err != nil {
			return nil, &MalformedPrerequisiteError{Index: i, Token: tok, Err: err}
		}
		current = append(current, Option{Code: code, MinimumGrade: strings.TrimSpace(tok.MinimumGrade)})

		last := i == len(tokens)-1
		if tok.closesGroup() || last || tokens[i+1].isAnd() {
			result = append(result, current)
			current = nil
		}
	}
	return result, nil
}

func (e Expression) Empty() bool { return len(e) == 0 }

// Codes flattens every option across groups, in declaration order.
func (e Expression) Codes() []audit.CourseCode {
	var out []audit.CourseCode
	for _, g := range e {
		for _, o := range g {
			out = append(out, o.Code)
		}
	}
	return out
}

// SatisfiedBy reports whether every group has at least one option for
// which has returns true.
func (e Expression) SatisfiedBy(has func(audit.CourseCode) bool) bool {
	for _, g := range e {
		ok := false
		for _, o := range g {
			if has(o.Code) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// String renders the expression as "(A OR B) AND C".
func (e Expression) String() string {
	parts := make([]string, 0, len(e))
	for _, g := range e {
		codes := make([]string, 0, len(g))
		for _, o := range g {
			codes = append(codes, string(o.Code))
		}
		s := strings.Join(codes, " OR ")
		if len(g) > 1 && len(e) > 1 {
			s = "(" + s + ")"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " AND ")
}

// MarshalJSON writes [[{"CODE": {"minimumGrade": "D"}}, ...], ...] with a
// null grade when none was given.
func (e Expression) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, g := range e {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('[')
		for j, o := range g {
			if j > 0 {
				buf.WriteByte(',')
			}
			var grade interface{}
			if o.MinimumGrade != "" {
				grade = o.MinimumGrade
			}
			raw, err := json.Marshal(map[string]map[string]interface{}{
				string(o.Code): {"minimumGrade": grade},
			})
			if err != nil {
				return nil, err
			}
			buf.Write(raw)
		}
		buf.WriteByte(']')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (e *Expression) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("prerequisite expression: invalid JSON")
	}
	r := gjson.ParseBytes(data)
	if r.Type == gjson.Null {
		*e = nil
		return nil
	}
	if !r.IsArray() {
		return fmt.Errorf("prerequisite expression: expected array")
	}
	var out Expression
	for _, rg := range r.Array() {
		if !rg.IsArray() {
			return fmt.Errorf("prerequisite expression: group is not an array")
		}
		var g Group
		for _, ro := range rg.Array() {
			var err error
			ro.ForEach(func(key, value gjson.Result) bool {
				code, cerr := audit.ParseCourseCode(key.String())
				if cerr != nil {
					err = cerr
					return false
				}
				g = append(g, Option{Code: code, MinimumGrade: value.Get("minimumGrade").String()})
				return false
			})
			if err != nil {
				return fmt.Errorf("prerequisite expression: %w", err)
			}
		}
		if len(g) > 0 {
			out = append(out, g)
		}
	}
	*e = out
	return nil
}

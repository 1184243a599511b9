package degreeworks

import (
	"errors"
	"fmt"

	"github.com/alpha216/dwroadmap/pkg/audit"
	"github.com/alpha216/dwroadmap/pkg/prereq"
	"github.com/tidwall/gjson"
)

// ErrNoCourseData is returned for a course-link response without
// courseInformation.courses[0].
var ErrNoCourseData = errors.New("no course data in course-link response")

// CourseLink is the part of a course-link response the catalog needs.
type CourseLink struct {
	Code          audit.CourseCode
	Title         string
	Prerequisites []prereq.Token
}

// ParseCourseLink extracts the first course of a course-link response. The
// code is taken from the response, not from the request.
func ParseCourseLink(body []byte) (*CourseLink, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("course-link response is not valid JSON")
	}
	course := gjson.GetBytes(body, "courseInformation.courses.0")
	if !course.IsObject() {
		return nil, ErrNoCourseData
	}

	code, err := audit.NewCourseCode(course.Get("subjectCode").String(), course.Get("courseNumber").String())
	if err != nil {
		return nil, err
	}
	link := &CourseLink{Code: code, Title: course.Get("title").String()}

	prereqs := course.Get("prerequisites")
	if prereqs.Exists() && !prereqs.IsArray() {
		return nil, fmt.Errorf("course %s: prerequisites is not an array", code)
	}
	for _, p := range prereqs.Array() {
		link.Prerequisites = append(link.Prerequisites, prereq.Token{
			SubjectCode:      p.Get("subjectCodePrerequisite").String(),
			CourseNumber:     p.Get("courseNumberPrerequisite").String(),
			MinimumGrade:     p.Get("minimumGrade").String(),
			Connector:        p.Get("connector").String(),
			RightParenthesis: p.Get("rightParenthesis").String(),
		})
	}
	return link, nil
}

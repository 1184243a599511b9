package degreeworks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alpha216/dwroadmap/pkg/audit"
	"github.com/alpha216/dwroadmap/pkg/prereq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCourseLink(t *testing.T) {
	body, err := os.ReadFile("testdata/courses/COMP3270.json")
	require.NoError(t, err)

	link, err := ParseCourseLink(body)
	require.NoError(t, err)
	assert.Equal(t, audit.CourseCode("COMP3270"), link.Code)
	assert.Equal(t, "Introduction to Algorithms", link.Title)
	require.Len(t, link.Prerequisites, 3)
	assert.Equal(t, prereq.Token{SubjectCode: "COMP", CourseNumber: "2213", MinimumGrade: "C", Connector: "O", RightParenthesis: ")"}, link.Prerequisites[1])

	expr, err := prereq.Parse(link.Prerequisites)
	require.NoError(t, err)
	assert.Equal(t, "(COMP2210 OR COMP2213) AND MATH2030", expr.String())
}

func TestParseCourseLinkErrors(t *testing.T) {
	_, err := ParseCourseLink([]byte(`{"courseInformation": {"courses": []}}`))
	assert.ErrorIs(t, err, ErrNoCourseData)

	_, err = ParseCourseLink([]byte(`{}`))
	assert.ErrorIs(t, err, ErrNoCourseData)

	_, err = ParseCourseLink([]byte(`not json`))
	assert.Error(t, err)

	var ce *audit.InvalidCourseCodeError
	_, err = ParseCourseLink([]byte(`{"courseInformation": {"courses": [{"subjectCode": "COMP", "courseNumber": "32X0"}]}}`))
	assert.True(t, errors.As(err, &ce), "got %v", err)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/DashboardApplication/api/students/myself", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cookie") != "JSESSIONID=ok" {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html><head><title>Sign In</title></head></html>"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"_embedded": {"students": [{"id": "903000000", "goals": [{"school": {"key": "UG"}, "degree": {"key": "BS"}}]}]}}`))
	})
	mux.HandleFunc("/DashboardApplication/api/audit", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "903000000", q.Get("studentId"))
		assert.Equal(t, "UG", q.Get("school"))
		assert.Equal(t, "BS", q.Get("degree"))
		assert.Equal(t, "AA", q.Get("audit-type"))
		assert.Equal(t, "true", q.Get("include-inprogress"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"blockArray": []}`))
	})
	mux.HandleFunc("/DashboardApplication/api/course-link", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		body, err := os.ReadFile("testdata/courses/" + q.Get("discipline") + q.Get("number") + ".json")
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testClient(url, cookie string) *Client {
	return NewClient(Options{BaseURL: url + "/", Cookie: cookie, Timeout: 5 * time.Second})
}

func TestClientFetchUserInfoAndAudit(t *testing.T) {
	srv := newTestServer(t)
	c := testClient(srv.URL, "JSESSIONID=ok")

	student, err := c.FetchUserInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Student{ID: "903000000", School: "UG", Degree: "BS"}, student)

	doc, err := c.FetchAudit(context.Background(), student)
	require.NoError(t, err)
	assert.JSONEq(t, `{"blockArray": []}`, string(doc))
}

func TestClientExpiredSession(t *testing.T) {
	srv := newTestServer(t)
	c := testClient(srv.URL, "JSESSIONID=stale")

	_, err := c.FetchUserInfo(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Contains(t, err.Error(), "Sign In")
}

func TestClientFetchCourseLink(t *testing.T) {
	srv := newTestServer(t)
	c := testClient(srv.URL, "JSESSIONID=ok")

	link, err := c.FetchCourseLink(context.Background(), "COMP1210")
	require.NoError(t, err)
	assert.Equal(t, "Fundamentals of Computing I", link.Title)
	assert.Empty(t, link.Prerequisites)

	_, err = c.FetchCourseLink(context.Background(), "COMP9999")
	var fe *FetchError
	require.True(t, errors.As(err, &fe), "got %v", err)
	assert.Equal(t, audit.CourseCode("COMP9999"), fe.Code)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Equal(t, "fetch COMP9999: status 404", fe.Error())
}

func TestClientRateLimitHonoursContext(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(Options{BaseURL: srv.URL, Cookie: "JSESSIONID=ok", Rate: 0.001})

	_, err := c.FetchCourseLink(context.Background(), "COMP1210")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.FetchCourseLink(ctx, "COMP1210")
	var fe *FetchError
	require.True(t, errors.As(err, &fe), "got %v", err)
}

func TestDir(t *testing.T) {
	var f CourseFetcher = Dir{Path: "testdata/courses"}

	link, err := f.FetchCourseLink(context.Background(), "COMP3270")
	require.NoError(t, err)
	assert.Equal(t, audit.CourseCode("COMP3270"), link.Code)

	_, err = f.FetchCourseLink(context.Background(), "COMP0001")
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

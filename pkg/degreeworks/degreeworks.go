// Package degreeworks talks to the DegreeWorks dashboard API, or reads saved
// responses from disk.
package degreeworks

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alpha216/dwroadmap/pkg/audit"
	"github.com/alpha216/dwroadmap/pkg/whttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://dw.auburn.edu"

const apiPrefix = "/DashboardApplication/api"

// ErrSessionExpired means DegreeWorks answered with its login page.
var ErrSessionExpired = errors.New("degreeworks session expired, refresh the cookie")

// FetchError is a failed request. Code is empty for requests that are not
// about a single course.
type FetchError struct {
	Code       audit.CourseCode
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	b.WriteString("fetch")
	if e.Code != "" {
		b.WriteString(" " + string(e.Code))
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *FetchError) Unwrap() error { return e.Err }

// CourseFetcher supplies course-link data for one course at a time. It must
// be safe for concurrent use.
type CourseFetcher interface {
	Name() string
	FetchCourseLink(ctx context.Context, code audit.CourseCode) (*CourseLink, error)
}

type Options struct {
	BaseURL string
	Cookie  string
	Retries int
	Timeout time.Duration
	// Rate is the request budget per second. Zero means unlimited.
	Rate   float64
	Logger logrus.FieldLogger
}

// Client is the HTTP collaborator. Requests carry the session cookie copied
// from a logged-in browser.
type Client struct {
	baseURL string
	cookie  string
	http    *retryablehttp.Client
	limiter *rate.Limiter
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	return &Client{
		baseURL: base,
		cookie:  opts.Cookie,
		http:    whttp.NewClient(opts.Retries, opts.Timeout, opts.Logger),
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (c *Client) Name() string { return "degreeworks" }

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{URL: u, Err: err}
	}

	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		URL:     u,
		Method:  "GET",
		Headers: []whttp.WHTTPHeader{{Name: "Cookie", Value: c.cookie}},
	}, c.http)
	if err != nil {
		return nil, &FetchError{URL: u, Err: err}
	}
	if res.StatusCode == 401 || res.StatusCode == 403 {
		return nil, &FetchError{URL: u, StatusCode: res.StatusCode, Err: ErrSessionExpired}
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &FetchError{URL: u, StatusCode: res.StatusCode}
	}
	if res.IsHTML() {
		return nil, &FetchError{URL: u, StatusCode: res.StatusCode, Err: fmt.Errorf("%w (got page %q)", ErrSessionExpired, res.HTTPTitle)}
	}
	return res.Body, nil
}

// Student identifies whose audit to fetch.
type Student struct {
	ID     string
	School string
	Degree string
}

// FetchUserInfo resolves the logged-in student and their first goal.
func (c *Client) FetchUserInfo(ctx context.Context) (*Student, error) {
	body, err := c.get(ctx, "/students/myself", nil)
	if err != nil {
		return nil, err
	}
	student := gjson.GetBytes(body, "_embedded.students.0")
	if !student.Exists() {
		return nil, fmt.Errorf("user info: no student record")
	}
	s := &Student{
		ID:     student.Get("id").String(),
		School: student.Get("goals.0.school.key").String(),
		Degree: student.Get("goals.0.degree.key").String(),
	}
	if s.ID == "" {
		return nil, fmt.Errorf("user info: student id missing")
	}
	return s, nil
}

// FetchAudit returns the raw audit document of s, including in-progress and
// preregistered classes.
func (c *Client) FetchAudit(ctx context.Context, s *Student) ([]byte, error) {
	q := url.Values{}
	q.Set("studentId", s.ID)
	q.Set("school", s.School)
	q.Set("degree", s.Degree)
	q.Set("is-process-new", "false")
	q.Set("audit-type", "AA")
	q.Set("auditId", "")
	q.Set("include-inprogress", "true")
	q.Set("include-preregistered", "true")
	q.Set("aid-term", "")
	return c.get(ctx, "/audit", q)
}

func (c *Client) FetchCourseLink(ctx context.Context, code audit.CourseCode) (*CourseLink, error) {
	discipline, number := code.Split()
	q := url.Values{}
	q.Set("discipline", discipline)
	q.Set("number", number)

	body, err := c.get(ctx, "/course-link", q)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			fe.Code = code
		}
		return nil, err
	}
	return ParseCourseLink(body)
}

// Dir reads saved course-link responses named <CODE>.json.
type Dir struct {
	Path string
}

func (d Dir) Name() string { return "dir:" + d.Path }

func (d Dir) FetchCourseLink(ctx context.Context, code audit.CourseCode) (*CourseLink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := os.ReadFile(filepath.Join(d.Path, string(code)+".json"))
	if err != nil {
		return nil, &FetchError{Code: code, Err: err}
	}
	return ParseCourseLink(body)
}

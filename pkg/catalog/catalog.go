package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/alpha216/dwroadmap/pkg/audit"
	"github.com/alpha216/dwroadmap/pkg/prereq"
)

// Entry is everything known about one course.
type Entry struct {
	Code          audit.CourseCode  `json:"-"`
	Name          string            `json:"name"`
	Prerequisites prereq.Expression `json:"prerequisites"`
}

// Catalog maps course codes to entries. It is safe for concurrent use;
// upserts for the same code simply overwrite each other.
type Catalog struct {
	mu      sync.RWMutex
	entries map[audit.CourseCode]Entry
}

func New() *Catalog {
	return &Catalog{entries: make(map[audit.CourseCode]Entry)}
}

// Upsert parses the raw prerequisite tokens and stores the entry. On a parse
// error nothing is stored, so the course keeps reading as unknown.
func (c *Catalog) Upsert(code audit.CourseCode, name string, tokens []prereq.Token) error {
	if !code.Valid() {
		return &audit.InvalidCourseCodeError{Value: string(code)}
	}
	expr, err := prereq.Parse(tokens)
	if err != nil {
		return fmt.Errorf("course %s: %w", code, err)
	}
	c.Put(Entry{Code: code, Name: name, Prerequisites: expr})
	return nil
}

// Put stores an already parsed entry.
func (c *Catalog) Put(e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[audit.CourseCode]Entry)
	}
	c.entries[e.Code] = e
}

// Get returns the entry for code. ok is false when no data has been fetched
// for the course, which is not the same as a course without prerequisites.
func (c *Catalog) Get(code audit.CourseCode) (e Entry, ok bool) {
	if c == nil {
		return Entry{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok = c.entries[code]
	return e, ok
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Entries returns a copy of all entries sorted by code.
func (c *Catalog) Entries() []Entry {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Name returns the display name of code, or "" when unknown.
func (c *Catalog) Name(code audit.CourseCode) string {
	e, _ := c.Get(code)
	return e.Name
}

// MarshalJSON writes the catalog as an object keyed by course code.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return json.Marshal(c.entries)
}

func (c *Catalog) UnmarshalJSON(data []byte) error {
	var raw map[audit.CourseCode]Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	entries := make(map[audit.CourseCode]Entry, len(raw))
	for code, e := range raw {
		if !code.Valid() {
			return &audit.InvalidCourseCodeError{Value: string(code)}
		}
		e.Code = code
		entries[code] = e
	}
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}

package storage

import (
	"time"

	"github.com/alpha216/dwroadmap/pkg/audit"
	"github.com/alpha216/dwroadmap/pkg/session"
)

// Record is one stored ingestion.
type Record struct {
	ID        string
	CreatedAt time.Time
	// Source says where the audit came from, e.g. "file:audit.json".
	Source   string
	Snapshot *session.Snapshot
	Failures []FetchFailure
}

// FetchFailure is a course whose prerequisite data was missing at ingestion.
type FetchFailure struct {
	Code    audit.CourseCode `json:"code"`
	Message string           `json:"message"`
}

// SnapshotInfo is a row of the snapshot history.
type SnapshotInfo struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Source    string    `json:"source"`
	Courses   int       `json:"courses"`
	Failures  int       `json:"failures"`
}

type Stats struct {
	Snapshots int `json:"snapshots"`
	// Latest is nil when the database is empty.
	Latest *SnapshotInfo `json:"latest"`
	// DistinctCourses counts course codes with catalog data across all
	// snapshots.
	DistinctCourses int `json:"distinctCourses"`
}

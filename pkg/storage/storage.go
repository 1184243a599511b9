package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alpha216/dwroadmap/pkg/audit"
	"github.com/alpha216/dwroadmap/pkg/catalog"
	"github.com/alpha216/dwroadmap/pkg/prereq"
	"github.com/alpha216/dwroadmap/pkg/session"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNoSnapshot is returned when the requested snapshot does not exist, or
// when nothing has been ingested yet.
var ErrNoSnapshot = errors.New("no snapshot found")

// Fixed width so that timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS snapshots (
  id          TEXT PRIMARY KEY,
  created_at  TEXT NOT NULL,
  source      TEXT NOT NULL DEFAULT '',
  classes     TEXT NOT NULL,
  in_progress TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_created ON snapshots(created_at);
CREATE TABLE IF NOT EXISTS course_info (
  snapshot_id   TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
  code          TEXT NOT NULL,
  name          TEXT NOT NULL DEFAULT '',
  prerequisites TEXT NOT NULL,
  PRIMARY KEY (snapshot_id, code)
);
CREATE TABLE IF NOT EXISTS fetch_failures (
  id          INTEGER PRIMARY KEY,
  snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
  code        TEXT NOT NULL,
  message     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_failures_snapshot ON fetch_failures(snapshot_id);
    `); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// SaveSnapshot stores snap as a new snapshot in one transaction. Earlier
// snapshots are kept.
func (d *DB) SaveSnapshot(ctx context.Context, snap *session.Snapshot, source string, failures []FetchFailure) (rec *Record, err error) {
	classes, err := json.Marshal(snap.Classes)
	if err != nil {
		return nil, fmt.Errorf("encode classes: %w", err)
	}
	inProgress := snap.InProgress
	if inProgress == nil {
		inProgress = []audit.CourseCode{}
	}
	inProgressJSON, err := json.Marshal(inProgress)
	if err != nil {
		return nil, fmt.Errorf("encode in-progress: %w", err)
	}

	rec = &Record{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Source:    source,
		Snapshot:  snap,
		Failures:  failures,
	}

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `INSERT INTO snapshots(id, created_at, source, classes, in_progress) VALUES(?,?,?,?,?)`,
		rec.ID, rec.CreatedAt.Format(timeLayout), source, string(classes), string(inProgressJSON)); err != nil {
		return nil, err
	}

	for _, e := range snap.ClassInfo.Entries() {
		var prereqs []byte
		prereqs, err = json.Marshal(e.Prerequisites)
		if err != nil {
			return nil, fmt.Errorf("encode prerequisites of %s: %w", e.Code, err)
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO course_info(snapshot_id, code, name, prerequisites) VALUES(?,?,?,?)`,
			rec.ID, string(e.Code), e.Name, string(prereqs)); err != nil {
			return nil, err
		}
	}

	for _, f := range failures {
		if _, err = tx.ExecContext(ctx, `INSERT INTO fetch_failures(snapshot_id, code, message) VALUES(?,?,?)`,
			rec.ID, string(f.Code), f.Message); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

// LatestSnapshot returns the most recent snapshot.
func (d *DB) LatestSnapshot(ctx context.Context) (*Record, error) {
	var id string
	err := d.sql.QueryRowContext(ctx, `SELECT id FROM snapshots ORDER BY created_at DESC, rowid DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	return d.GetSnapshot(ctx, id)
}

// GetSnapshot loads the snapshot with the given id.
func (d *DB) GetSnapshot(ctx context.Context, id string) (*Record, error) {
	var (
		createdAt, classesJSON, inProgressJSON string
		rec                                    = &Record{ID: id}
	)
	err := d.sql.QueryRowContext(ctx, `SELECT created_at, source, classes, in_progress FROM snapshots WHERE id = ?`, id).
		Scan(&createdAt, &rec.Source, &classesJSON, &inProgressJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, id)
	}
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = parseTime(createdAt)

	var classes audit.RequirementNode
	if err := json.Unmarshal([]byte(classesJSON), &classes); err != nil {
		return nil, fmt.Errorf("snapshot %s: decode classes: %w", id, err)
	}
	var inProgress []audit.CourseCode
	if err := json.Unmarshal([]byte(inProgressJSON), &inProgress); err != nil {
		return nil, fmt.Errorf("snapshot %s: decode in-progress: %w", id, err)
	}

	info, err := d.loadCatalog(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.Snapshot = &session.Snapshot{Classes: &classes, ClassInfo: info, InProgress: inProgress}

	rec.Failures, err = d.loadFailures(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (d *DB) loadCatalog(ctx context.Context, id string) (*catalog.Catalog, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT code, name, prerequisites FROM course_info WHERE snapshot_id = ? ORDER BY code`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	info := catalog.New()
	for rows.Next() {
		var code, name, prereqJSON string
		if err := rows.Scan(&code, &name, &prereqJSON); err != nil {
			return nil, err
		}
		cc, err := audit.ParseCourseCode(code)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", id, err)
		}
		var expr prereq.Expression
		if err := json.Unmarshal([]byte(prereqJSON), &expr); err != nil {
			return nil, fmt.Errorf("snapshot %s: course %s: %w", id, code, err)
		}
		info.Put(catalog.Entry{Code: cc, Name: name, Prerequisites: expr})
	}
	return info, rows.Err()
}

func (d *DB) loadFailures(ctx context.Context, id string) ([]FetchFailure, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT code, message FROM fetch_failures WHERE snapshot_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FetchFailure
	for rows.Next() {
		var f FetchFailure
		var code string
		if err := rows.Scan(&code, &f.Message); err != nil {
			return nil, err
		}
		f.Code = audit.CourseCode(code)
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListSnapshots returns the most recent snapshots first.
func (d *DB) ListSnapshots(ctx context.Context, limit int) ([]SnapshotInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `
		SELECT
			s.id, s.created_at, s.source,
			(SELECT COUNT(*) FROM course_info c WHERE c.snapshot_id = s.id),
			(SELECT COUNT(*) FROM fetch_failures f WHERE f.snapshot_id = s.id)
		FROM snapshots s
		ORDER BY s.created_at DESC, s.rowid DESC
		LIMIT ?`
	rows, err := d.sql.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []SnapshotInfo{}
	for rows.Next() {
		var s SnapshotInfo
		var createdAt string
		if err := rows.Scan(&s.ID, &createdAt, &s.Source, &s.Courses, &s.Failures); err != nil {
			return nil, err
		}
		s.CreatedAt = parseTime(createdAt)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DB) GetStats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	if err := d.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&st.Snapshots); err != nil {
		return nil, err
	}
	if err := d.sql.QueryRowContext(ctx, `SELECT COUNT(DISTINCT code) FROM course_info`).Scan(&st.DistinctCourses); err != nil {
		return nil, err
	}
	latest, err := d.ListSnapshots(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(latest) > 0 {
		st.Latest = &latest[0]
	}
	return st, nil
}

// Prune keeps the newest keep snapshots and deletes the rest. It returns the
// number of snapshots removed.
func (d *DB) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 1 {
		return 0, fmt.Errorf("keep must be at least 1")
	}
	res, err := d.sql.ExecContext(ctx, `
		DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

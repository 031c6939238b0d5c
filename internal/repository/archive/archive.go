package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Registers the "sqlite" driver.

	"github.com/oshokin/mova-viewer/internal/domain/mova"
)

// Repository defines persistence operations for finalized snapshots.
type Repository interface {
	Save(ctx context.Context, sessionID string, snapshot *mova.Snapshot) error
	Load(ctx context.Context, sessionID string, sequenceID int64) (*mova.Snapshot, error)
	List(ctx context.Context, sessionID string) ([]Entry, error)
	Sessions(ctx context.Context) ([]Session, error)
}

// Entry is one archived snapshot without its body.
type Entry struct {
	SequenceID int64     `json:"sequence_id"`
	Stage      int       `json:"stage"`
	Records    int       `json:"records"`
	Links      int       `json:"links"`
	StartedAt  time.Time `json:"started_at"`
	ArchivedAt time.Time `json:"archived_at"`
}

// Session summarizes one daemon run stored in the archive.
type Session struct {
	ID        string    `json:"id"`
	Snapshots int       `json:"snapshots"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// SQLiteRepository stores snapshots as JSON rows in a SQLite database.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
	// closeOnce guards db.Close.
	closeOnce sync.Once
	closeErr  error
}

var (
	// ErrNotFound is returned when the requested snapshot is not archived.
	ErrNotFound = errors.New("snapshot not found")
	// ErrEmptySession is returned when a session id is empty.
	ErrEmptySession = errors.New("session id is empty")
	// ErrDisabled is returned by callers that run without an archive.
	ErrDisabled = errors.New("archive is disabled")
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	session_id  TEXT    NOT NULL,
	sequence_id INTEGER NOT NULL,
	stage       INTEGER NOT NULL,
	records     INTEGER NOT NULL,
	links       INTEGER NOT NULL,
	started_at  TEXT    NOT NULL,
	archived_at TEXT    NOT NULL,
	body        TEXT    NOT NULL,
	PRIMARY KEY (session_id, sequence_id)
);
CREATE INDEX IF NOT EXISTS idx_snapshots_archived ON snapshots(archived_at);
`

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=10000",
	"PRAGMA synchronous=NORMAL",
}

// Open opens or creates the archive at path and applies the schema.
// The parent directory is created when missing.
func Open(ctx context.Context, path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create archive dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite serializes writers anyway; one connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	for _, pragma := range pragmas {
		if _, err = db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()

			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	if _, err = db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteRepository{
		db:  db,
		now: time.Now,
	}, nil
}

// Save stores snapshot under sessionID. Saving the same sequence twice
// replaces the earlier row.
func (r *SQLiteRepository) Save(ctx context.Context, sessionID string, snapshot *mova.Snapshot) error {
	if sessionID == "" {
		return ErrEmptySession
	}

	if snapshot == nil {
		return nil
	}

	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot %d: %w", snapshot.SequenceID, err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshots
			(session_id, sequence_id, stage, records, links, started_at, archived_at, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID,
		snapshot.SequenceID,
		snapshot.Stage,
		len(snapshot.Records),
		len(snapshot.Links),
		formatTime(snapshot.StartedAt),
		formatTime(r.now()),
		string(body),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot %d: %w", snapshot.SequenceID, err)
	}

	return nil
}

// Load reads one snapshot back.
func (r *SQLiteRepository) Load(ctx context.Context, sessionID string, sequenceID int64) (*mova.Snapshot, error) {
	var body string

	err := r.db.QueryRowContext(ctx,
		`SELECT body FROM snapshots WHERE session_id = ? AND sequence_id = ?`,
		sessionID, sequenceID,
	).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("query snapshot %d: %w", sequenceID, err)
	}

	var snapshot mova.Snapshot
	if err = json.Unmarshal([]byte(body), &snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot %d: %w", sequenceID, err)
	}

	return &snapshot, nil
}

// List returns the archived snapshots of sessionID in sequence order.
func (r *SQLiteRepository) List(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT sequence_id, stage, records, links, started_at, archived_at
		FROM snapshots WHERE session_id = ? ORDER BY sequence_id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var entries []Entry

	for rows.Next() {
		var (
			entry               Entry
			startedAt, archived string
		)

		if err = rows.Scan(
			&entry.SequenceID, &entry.Stage, &entry.Records, &entry.Links, &startedAt, &archived,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}

		entry.StartedAt = parseTime(startedAt)
		entry.ArchivedAt = parseTime(archived)
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}

	return entries, nil
}

// Sessions lists every session in the archive, most recent first.
func (r *SQLiteRepository) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT session_id, COUNT(*), MIN(archived_at), MAX(archived_at)
		FROM snapshots GROUP BY session_id ORDER BY MAX(archived_at) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session

	for rows.Next() {
		var (
			session     Session
			first, last string
		)

		if err = rows.Scan(&session.ID, &session.Snapshots, &first, &last); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}

		session.FirstSeen = parseTime(first)
		session.LastSeen = parseTime(last)
		sessions = append(sessions, session)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// Close releases the database. Safe to call more than once.
func (r *SQLiteRepository) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.db.Close()
	})

	return r.closeErr
}

// timeLayout has a fixed width so that stored values sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}

	return t
}

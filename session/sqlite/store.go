// Package sqlite provides a durable core.SessionStore backed by SQLite via
// modernc.org/sqlite (pure Go, no cgo).
//
// Session state and events are stored as JSON. Values read back from state
// therefore carry JSON types: numbers are float64 and lists are []any.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/weathermesh/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id      TEXT PRIMARY KEY,
	state   TEXT NOT NULL DEFAULT '{}',
	created TEXT NOT NULL,
	updated TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL,
	session_id TEXT NOT NULL,
	payload    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, seq);
`

// Store implements core.SessionStore on top of a SQLite database.
type Store struct {
	db *sql.DB
	mu sync.Mutex // serializes read-modify-write cycles
}

// New opens or creates a SQLite database at path and creates the schema.
// Use ":memory:" for a throwaway database.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// a single connection keeps ":memory:" databases coherent and avoids
	// SQLITE_BUSY between our own writers
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent readers of file databases.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Create creates (or resets) the session with the given id.
func (s *Store) Create(id string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := core.NewSession(id)

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM events WHERE session_id = ?`, id); err != nil {
		return nil, fmt.Errorf("reset events: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO sessions (id, state, created, updated) VALUES (?, '{}', ?, ?)`,
		id, formatTime(sess.Created), formatTime(sess.Updated),
	); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return sess, nil
}

// Get loads a session with its state and full event history.
func (s *Store) Get(id string) (*core.Session, error) {
	var (
		rawState         string
		created, updated string
	)

	err := s.db.QueryRow(`SELECT state, created, updated FROM sessions WHERE id = ?`, id).
		Scan(&rawState, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	sess := core.NewSession(id)

	state := map[string]any{}
	if err := json.Unmarshal([]byte(rawState), &state); err != nil {
		return nil, fmt.Errorf("decode state of session %s: %w", id, err)
	}
	sess.State = state

	events, err := s.loadEvents(id)
	if err != nil {
		return nil, err
	}
	sess.Events = events

	if sess.Created, err = parseTime(created); err != nil {
		return nil, err
	}
	if sess.Updated, err = parseTime(updated); err != nil {
		return nil, err
	}

	return sess, nil
}

func (s *Store) loadEvents(sessionID string) ([]core.Event, error) {
	rows, err := s.db.Query(`SELECT payload FROM events WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	events := []core.Event{}

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}

		var ev core.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}

		events = append(events, ev)
	}

	return events, rows.Err()
}

// AppendEvent stores an event at the end of the session history, creating
// the session if needed.
func (s *Store) AppendEvent(sessionID string, ev core.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	now := formatTime(time.Now().UTC())

	if err := ensureSession(tx, sessionID, now); err != nil {
		return err
	}

	if _, err := tx.Exec(
		`INSERT INTO events (id, session_id, payload) VALUES (?, ?, ?)`,
		ev.ID, sessionID, string(payload),
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if _, err := tx.Exec(`UPDATE sessions SET updated = ? WHERE id = ?`, now, sessionID); err != nil {
		return err
	}

	return tx.Commit()
}

// ApplyDelta merges delta into the persisted session state.
func (s *Store) ApplyDelta(sessionID string, delta map[string]any) error {
	if len(delta) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	now := formatTime(time.Now().UTC())

	if err := ensureSession(tx, sessionID, now); err != nil {
		return err
	}

	var rawState string
	if err := tx.QueryRow(`SELECT state FROM sessions WHERE id = ?`, sessionID).Scan(&rawState); err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	state := map[string]any{}
	if err := json.Unmarshal([]byte(rawState), &state); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}

	for k, v := range delta {
		state[k] = v
	}

	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if _, err := tx.Exec(`UPDATE sessions SET state = ?, updated = ? WHERE id = ?`, string(encoded), now, sessionID); err != nil {
		return fmt.Errorf("update state: %w", err)
	}

	return tx.Commit()
}

// Delete removes a session and its events.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM events WHERE session_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return err
	}

	return tx.Commit()
}

func ensureSession(tx *sql.Tx, id, now string) error {
	_, err := tx.Exec(
		`INSERT OR IGNORE INTO sessions (id, state, created, updated) VALUES (?, '{}', ?, ?)`,
		id, now, now,
	)
	if err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// Package activity keeps the dashboard's operator-facing activity log in SQLite.
package activity

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultLimit is used by Recent when limit <= 0.
const DefaultLimit = 50

// Entry is one activity log line.
type Entry struct {
	ID      int64     `json:"id"`
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// Store persists activity entries. An empty path keeps them in memory for the
// lifetime of the process.
type Store struct {
	db *sql.DB

	mu        sync.RWMutex
	listeners []func(Entry)
}

// Open opens (and creates if needed) the activity database at path.
func Open(path string) (*Store, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open activity db: %w", err)
	}
	// a single connection keeps :memory: databases shared and serialises writers
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS activity (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			created_ns BIGINT NOT NULL,
			message    TEXT NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create activity table: %w", err)
	}

	return &Store{db: db}, nil
}

// OnRecord registers fn to be called with every new entry.
func (s *Store) OnRecord(fn func(Entry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Record appends a message stamped with the current time.
func (s *Store) Record(message string) (Entry, error) {
	now := time.Now()
	res, err := s.db.Exec(`INSERT INTO activity (created_ns, message) VALUES (?, ?)`, now.UnixNano(), message)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to record activity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Entry{}, fmt.Errorf("failed to read activity id: %w", err)
	}

	entry := Entry{ID: id, Time: now, Message: message}

	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(entry)
	}
	return entry, nil
}

// Recordf is Record with fmt.Sprintf formatting. Failures are returned, not logged.
func (s *Store) Recordf(format string, args ...interface{}) error {
	_, err := s.Record(fmt.Sprintf(format, args...))
	return err
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.db.Query(`SELECT id, created_ns, message FROM activity ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e  Entry
			ns int64
		)
		if err := rows.Scan(&e.ID, &ns, &e.Message); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		e.Time = time.Unix(0, ns)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

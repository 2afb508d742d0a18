// Package fetchstate records per-portal fetch bookkeeping in SQLite:
// when a portal was last scraped, its conditional-request validators, and
// its recent failure history. This state is local to the machine running
// the scraper and is never mirrored remotely.
package fetchstate

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// State is one portal's fetch bookkeeping.
type State struct {
	PortalID      string
	LastFetchedAt *time.Time
	ETag          *string
	LastModified  *string
	ErrorCount    int
	LastError     *string
}

// Store manages fetch state using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a fetch-state store with the given database path.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the fetch_state table if it doesn't exist.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS fetch_state (
		portal_id TEXT PRIMARY KEY,
		last_fetched_at TEXT,
		etag TEXT,
		last_modified TEXT,
		error_count INTEGER DEFAULT 0,
		last_error TEXT
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get retrieves fetch state for a portal. Returns nil (not an error) when
// the portal has never been fetched.
func (s *Store) Get(portalID string) (*State, error) {
	query := `
		SELECT portal_id, last_fetched_at, etag, last_modified,
		       error_count, last_error
		FROM fetch_state
		WHERE portal_id = ?
	`

	var idStr string
	var lastFetchedAt, etag, lastModified, lastError sql.NullString
	var errorCount int

	err := s.db.QueryRow(query, portalID).Scan(
		&idStr, &lastFetchedAt, &etag, &lastModified,
		&errorCount, &lastError,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query fetch state: %w", err)
	}

	return scanState(idStr, lastFetchedAt, etag, lastModified, errorCount, lastError), nil
}

// List returns fetch state for every known portal.
func (s *Store) List() ([]State, error) {
	query := `
		SELECT portal_id, last_fetched_at, etag, last_modified,
		       error_count, last_error
		FROM fetch_state
		ORDER BY portal_id
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query fetch state: %w", err)
	}
	defer rows.Close()

	var states []State
	for rows.Next() {
		var idStr string
		var lastFetchedAt, etag, lastModified, lastError sql.NullString
		var errorCount int

		if err := rows.Scan(&idStr, &lastFetchedAt, &etag, &lastModified, &errorCount, &lastError); err != nil {
			return nil, fmt.Errorf("failed to scan fetch state: %w", err)
		}

		states = append(states, *scanState(idStr, lastFetchedAt, etag, lastModified, errorCount, lastError))
	}

	return states, nil
}

// RecordSuccess marks a portal as fetched, storing its conditional
// validators and resetting the error counter.
func (s *Store) RecordSuccess(portalID string, fetchedAt time.Time, etag, lastModified *string) error {
	query := `
		INSERT INTO fetch_state (portal_id, last_fetched_at, etag, last_modified, error_count, last_error)
		VALUES (?, ?, ?, ?, 0, NULL)
		ON CONFLICT(portal_id) DO UPDATE SET
			last_fetched_at = excluded.last_fetched_at,
			etag = excluded.etag,
			last_modified = excluded.last_modified,
			error_count = 0,
			last_error = NULL
	`

	_, err := s.db.Exec(query, portalID, formatTime(&fetchedAt), nullable(etag), nullable(lastModified))
	if err != nil {
		return fmt.Errorf("failed to record fetch success: %w", err)
	}
	return nil
}

// RecordFailure increments a portal's consecutive error count and stores
// the failure message.
func (s *Store) RecordFailure(portalID string, failure error) error {
	query := `
		INSERT INTO fetch_state (portal_id, error_count, last_error)
		VALUES (?, 1, ?)
		ON CONFLICT(portal_id) DO UPDATE SET
			error_count = error_count + 1,
			last_error = excluded.last_error
	`

	_, err := s.db.Exec(query, portalID, failure.Error())
	if err != nil {
		return fmt.Errorf("failed to record fetch failure: %w", err)
	}
	return nil
}

// Delete removes a portal's fetch state. Used when the portal itself is
// deleted. Deleting unknown state is not an error.
func (s *Store) Delete(portalID string) error {
	if _, err := s.db.Exec("DELETE FROM fetch_state WHERE portal_id = ?", portalID); err != nil {
		return fmt.Errorf("failed to delete fetch state: %w", err)
	}
	return nil
}

// scanState parses SQL row data into a State.
func scanState(
	portalID string,
	lastFetchedAt, etag, lastModified sql.NullString,
	errorCount int,
	lastError sql.NullString,
) *State {
	state := &State{
		PortalID:   portalID,
		ErrorCount: errorCount,
	}

	if lastFetchedAt.Valid {
		t := parseTime(lastFetchedAt.String)
		state.LastFetchedAt = &t
	}
	if etag.Valid {
		state.ETag = &etag.String
	}
	if lastModified.Valid {
		state.LastModified = &lastModified.String
	}
	if lastError.Valid {
		state.LastError = &lastError.String
	}

	return state
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// Helper functions for time formatting
func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	// Strip monotonic clock for consistent storage and comparisons
	return t.Truncate(0).Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	// Try RFC3339Nano first, fall back to RFC3339 for compatibility
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	// Strip monotonic clock for consistent comparisons
	return t.Truncate(0)
}

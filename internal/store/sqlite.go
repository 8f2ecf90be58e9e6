// Package store is the local custody journal: an append-only SQLite log of the
// investigator actions taken on each case.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Journal actions.
const (
	ActionAnalysisSubmitted = "analysis_submitted"
	ActionAnalysisFailed    = "analysis_failed"
	ActionCaseOpened        = "case_opened"
	ActionFootprintViewed   = "footprint_viewed"
	ActionComplaintDrafted  = "complaint_drafted"
	ActionVerifyLookup      = "verify_lookup"
	ActionReportFetched     = "report_fetched"
)

// Store is the SQLite custody journal.
type Store struct {
	db *sql.DB
}

// Entry is one journal line.
type Entry struct {
	ID        string            `json:"id"`
	CaseID    string            `json:"case_id"`
	Action    string            `json:"action"`
	Actor     string            `json:"actor"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewStore opens (creating if needed) the journal at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open(sqliteDriver, dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS custody_entries (
			id TEXT PRIMARY KEY,
			case_id TEXT NOT NULL,
			action TEXT NOT NULL,
			actor TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '{}',
			timestamp INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_custody_case_id ON custody_entries(case_id)`,
		`CREATE INDEX IF NOT EXISTS idx_custody_timestamp ON custody_entries(timestamp)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}

// AddEntry appends an entry. ID and Timestamp are filled in when empty; the
// stored entry is returned.
func (s *Store) AddEntry(ctx context.Context, e Entry) (Entry, error) {
	if strings.TrimSpace(e.Action) == "" {
		return Entry{}, errors.New("journal entry requires an action")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.Actor == "" {
		e.Actor = "investigator"
	}
	details := []byte("{}")
	if len(e.Details) > 0 {
		var err error
		if details, err = json.Marshal(e.Details); err != nil {
			return Entry{}, fmt.Errorf("failed to marshal entry details: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO custody_entries (id, case_id, action, actor, details, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.CaseID, e.Action, e.Actor, string(details), e.Timestamp.UnixMilli())
	if err != nil {
		return Entry{}, fmt.Errorf("failed to insert journal entry: %w", err)
	}
	e.Timestamp = time.UnixMilli(e.Timestamp.UnixMilli())
	return e, nil
}

// GetEntries returns a case's entries, newest first. limit <= 0 returns all.
func (s *Store) GetEntries(ctx context.Context, caseID string, limit int) ([]Entry, error) {
	query := `SELECT id, case_id, action, actor, details, timestamp
		FROM custody_entries WHERE case_id = ? ORDER BY timestamp DESC, rowid DESC`
	args := []interface{}{caseID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

// RecentEntries returns the newest entries across all cases.
func (s *Store) RecentEntries(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.query(ctx, `SELECT id, case_id, action, actor, details, timestamp
		FROM custody_entries ORDER BY timestamp DESC, rowid DESC LIMIT ?`, limit)
}

// CountEntries returns the number of journal entries.
func (s *Store) CountEntries(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM custody_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count journal entries: %w", err)
	}
	return n, nil
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var details string
		var ts int64
		if err := rows.Scan(&e.ID, &e.CaseID, &e.Action, &e.Actor, &details, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.Timestamp = time.UnixMilli(ts)
		if details != "" && details != "{}" {
			if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
				e.Details = map[string]string{"raw": details}
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	return entries, nil
}

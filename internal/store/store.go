// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/neolog/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when a session id is not archived.
var ErrNotFound = errors.New("session not found")

// Store wraps SQLite access for archived sessions.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			age TEXT NOT NULL,
			gender TEXT NOT NULL,
			session_date TEXT NOT NULL,
			word_count TEXT NOT NULL,
			lang TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at TEXT NOT NULL,
			saved_at TEXT NOT NULL,
			trials_completed INTEGER NOT NULL,
			trials_total INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS keystrokes (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			trial INTEGER NOT NULL,
			attempt INTEGER NOT NULL,
			word TEXT NOT NULL,
			definition_position TEXT NOT NULL,
			input TEXT NOT NULL,
			char TEXT NOT NULL,
			correct INTEGER NOT NULL,
			interval_s REAL NOT NULL,
			class TEXT NOT NULL,
			newness TEXT NOT NULL,
			PRIMARY KEY (session_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_saved_at ON sessions(saved_at);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_name ON sessions(name);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// WriteLog archives a session snapshot, replacing any earlier snapshot of the
// same session.
func (s *Store) WriteLog(ctx context.Context, rec model.Record) (err error) {
	if rec.SessionID == "" {
		return errors.New("session id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	p := rec.Participant
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, name, age, gender, session_date, word_count, lang, status, started_at, saved_at, trials_completed, trials_total)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			saved_at = excluded.saved_at,
			trials_completed = excluded.trials_completed,
			trials_total = excluded.trials_total`,
		rec.SessionID,
		p.Name,
		p.Age,
		p.Gender,
		p.SessionDate,
		p.WordCount,
		p.Language,
		string(rec.Status),
		rec.StartedAt.UTC().Format(timeLayout),
		rec.SavedAt.UTC().Format(timeLayout),
		rec.TrialsCompleted,
		rec.TrialsTotal,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM keystrokes WHERE session_id = ?`, rec.SessionID); err != nil {
		return fmt.Errorf("failed to clear keystrokes: %w", err)
	}

	if len(rec.Events) > 0 {
		stmt, perr := tx.PrepareContext(ctx,
			`INSERT INTO keystrokes (session_id, seq, trial, attempt, word, definition_position, input, char, correct, interval_s, class, newness)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if perr != nil {
			err = perr
			return err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for i, e := range rec.Events {
			if _, err = stmt.ExecContext(ctx, rec.SessionID, i, e.Trial, e.Attempt, e.Word,
				string(e.DefinitionPosition), e.Input, e.Char, e.Correct, e.Interval, e.Class, e.Newness); err != nil {
				return fmt.Errorf("failed to insert keystroke: %w", err)
			}
		}
	}

	return tx.Commit()
}

const sessionColumns = `s.id, s.name, s.age, s.gender, s.session_date, s.word_count, s.lang, s.status,
	s.started_at, s.saved_at, s.trials_completed, s.trials_total,
	(SELECT COUNT(*) FROM keystrokes k WHERE k.session_id = s.id)`

// ListSessions returns archived sessions matching the filter, oldest first.
func (s *Store) ListSessions(ctx context.Context, filter model.SessionFilter) ([]model.SessionSummary, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.Name != "" {
		clauses = append(clauses, "s.name = ?")
		args = append(args, filter.Name)
	}
	if filter.Language != "" {
		clauses = append(clauses, "s.lang = ?")
		args = append(args, filter.Language)
	}
	if filter.Status != "" {
		clauses = append(clauses, "s.status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Since != nil {
		clauses = append(clauses, "s.saved_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}
	query := fmt.Sprintf(`SELECT %s FROM sessions s WHERE %s ORDER BY s.saved_at DESC`,
		sessionColumns, strings.Join(clauses, " AND "))
	if filter.Last > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Last)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var sessions []model.SessionSummary
	for rows.Next() {
		summary, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Newest rows were selected for LIMIT; present them chronologically.
	for i, j := 0, len(sessions)-1; i < j; i, j = i+1, j-1 {
		sessions[i], sessions[j] = sessions[j], sessions[i]
	}
	return sessions, nil
}

// GetSession returns one archived session header.
func (s *Store) GetSession(ctx context.Context, id string) (model.SessionSummary, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM sessions s WHERE s.id = ?`, sessionColumns), id)
	summary, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SessionSummary{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return summary, err
}

// ListEvents returns the keystrokes of a session in logging order. Participant
// columns are filled from the session header.
func (s *Store) ListEvents(ctx context.Context, id string) ([]model.InputEvent, error) {
	summary, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT trial, attempt, word, definition_position, input, char, correct, interval_s, class, newness
		 FROM keystrokes
		 WHERE session_id = ?
		 ORDER BY seq ASC`, id)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var events []model.InputEvent
	for rows.Next() {
		var e model.InputEvent
		var position string
		if err := rows.Scan(&e.Trial, &e.Attempt, &e.Word, &position, &e.Input, &e.Char,
			&e.Correct, &e.Interval, &e.Class, &e.Newness); err != nil {
			return nil, err
		}
		e.DefinitionPosition = model.DefinitionPosition(position)
		e.Name = summary.Participant.Name
		e.Language = summary.Participant.Language
		e.Age = summary.Participant.Age
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (model.SessionSummary, error) {
	var summary model.SessionSummary
	var status, startedAt, savedAt string
	p := &summary.Participant
	if err := row.Scan(&summary.ID, &p.Name, &p.Age, &p.Gender, &p.SessionDate, &p.WordCount, &p.Language,
		&status, &startedAt, &savedAt, &summary.TrialsCompleted, &summary.TrialsTotal, &summary.Keystrokes); err != nil {
		return model.SessionSummary{}, err
	}
	summary.Status = model.Status(status)
	var err error
	if summary.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return model.SessionSummary{}, err
	}
	if summary.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt); err != nil {
		return model.SessionSummary{}, err
	}
	return summary, nil
}

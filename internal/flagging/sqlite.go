package flagging

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"educore/internal/integrity"
)

// SQLite keeps flags in a single local database file. Suits the review
// workload: low write volume, durable across restarts, no server to run.
type SQLite struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

var _ Store = (*SQLite)(nil)

// Fixed-width, so the TEXT column sorts chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// OpenSQLite opens (creating if needed) the flag database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("flagging: sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("flagging: open sqlite: %w", err)
	}
	// One writer at a time keeps modernc's driver out of SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("flagging: db is nil")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS integrity_flags (
    id TEXT PRIMARY KEY,
    turn_id TEXT NOT NULL DEFAULT '',
    user_id TEXT NOT NULL DEFAULT '',
    role TEXT NOT NULL DEFAULT '',
    query TEXT NOT NULL DEFAULT '',
    answer TEXT NOT NULL DEFAULT '',
    score INTEGER NOT NULL DEFAULT 0,
    summary TEXT NOT NULL DEFAULT '',
    verdict TEXT NOT NULL DEFAULT '{}',
    status TEXT NOT NULL DEFAULT 'open',
    created_at TEXT NOT NULL,
    resolved_by TEXT NOT NULL DEFAULT '',
    resolved_at TEXT,
    resolution TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_flags_status ON integrity_flags(status);
CREATE INDEX IF NOT EXISTS idx_flags_created ON integrity_flags(created_at);
`)
	})
	return s.schemaErr
}

func (s *SQLite) Record(ctx context.Context, e Entry) (Entry, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return Entry{}, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = StatusOpen
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	verdict, err := json.Marshal(e.Verdict)
	if err != nil {
		return Entry{}, fmt.Errorf("flagging: encode verdict: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO integrity_flags (id, turn_id, user_id, role, query, answer, score, summary, verdict, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TurnID, e.UserID, e.Role, e.Query, e.Answer, e.Score, e.Summary,
		string(verdict), string(e.Status), e.CreatedAt.Format(sqliteTimeLayout))
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

const flagColumns = `id, turn_id, user_id, role, query, answer, score, summary, verdict, status, created_at, resolved_by, resolved_at, resolution`

func scanFlag(row interface{ Scan(...any) error }) (Entry, error) {
	var (
		e          Entry
		verdict    string
		status     string
		createdAt  string
		resolvedAt sql.NullString
	)
	err := row.Scan(&e.ID, &e.TurnID, &e.UserID, &e.Role, &e.Query, &e.Answer,
		&e.Score, &e.Summary, &verdict, &status, &createdAt, &e.ResolvedBy, &resolvedAt, &e.Resolution)
	if err != nil {
		return Entry{}, err
	}
	e.Status = Status(status)
	if err := json.Unmarshal([]byte(verdict), &e.Verdict); err != nil {
		e.Verdict = integrity.Verdict{}
	}
	if t, err := time.Parse(sqliteTimeLayout, createdAt); err == nil {
		e.CreatedAt = t
	}
	if resolvedAt.Valid && resolvedAt.String != "" {
		if t, err := time.Parse(sqliteTimeLayout, resolvedAt.String); err == nil {
			e.ResolvedAt = &t
		}
	}
	return e, nil
}

func (s *SQLite) Get(ctx context.Context, id string) (Entry, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return Entry{}, err
	}
	e, err := scanFlag(s.db.QueryRowContext(ctx,
		`SELECT `+flagColumns+` FROM integrity_flags WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

func (s *SQLite) List(ctx context.Context, status Status, limit int) ([]Entry, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	var (
		rows *sql.Rows
		err  error
	)
	if status == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+flagColumns+` FROM integrity_flags ORDER BY created_at DESC LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+flagColumns+` FROM integrity_flags WHERE status = ? ORDER BY created_at DESC LIMIT ?`,
			string(status), limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		e, err := scanFlag(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLite) Resolve(ctx context.Context, id, by, note string, dismiss bool) (Entry, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return Entry{}, err
	}
	status := StatusResolved
	if dismiss {
		status = StatusDismissed
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE integrity_flags SET status = ?, resolved_by = ?, resolved_at = ?, resolution = ?
WHERE id = ?`,
		string(status), by, time.Now().UTC().Format(sqliteTimeLayout), note, id)
	if err != nil {
		return Entry{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Entry{}, err
	}
	if n == 0 {
		return Entry{}, ErrNotFound
	}
	return s.Get(ctx, id)
}

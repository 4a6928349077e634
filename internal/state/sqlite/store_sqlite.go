package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"perp-ftx-arb/internal/state"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

var (
	_ state.Store   = (*Store)(nil)
	_ state.Journal = (*Store)(nil)
)

func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps :memory: databases shared across calls
	db.SetMaxOpenConns(1)
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS executions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			venue TEXT NOT NULL,
			market TEXT NOT NULL,
			purpose TEXT NOT NULL,
			side TEXT NOT NULL,
			size TEXT NOT NULL,
			amount_type TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			reference TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			created_at_ms INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}

func (s *Store) AppendExecution(ctx context.Context, e state.Execution) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO executions
		(id, venue, market, purpose, side, size, amount_type, outcome, reference, error, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Venue, e.Market, e.Purpose, e.Side, e.Size, e.AmountType, e.Outcome, e.Reference, e.Error, e.CreatedAtMS)
	return err
}

// RecentExecutions returns the newest executions first.
func (s *Store) RecentExecutions(ctx context.Context, limit int) ([]state.Execution, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, venue, market, purpose, side, size, amount_type, outcome, reference, error, created_at_ms
		FROM executions ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []state.Execution
	for rows.Next() {
		var e state.Execution
		if err := rows.Scan(&e.ID, &e.Venue, &e.Market, &e.Purpose, &e.Side, &e.Size, &e.AmountType, &e.Outcome, &e.Reference, &e.Error, &e.CreatedAtMS); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

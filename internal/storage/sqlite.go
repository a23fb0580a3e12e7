package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"repeatbot/internal/task"
	logx "repeatbot/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = "./repeatbot.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &sqliteStore{db: db, log: log}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AddUser(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO users(name) VALUES(?)`, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %q: %w", name, ErrConflict)
	}
	return nil
}

func (s *sqliteStore) RemoveUser(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE name = ?`, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %q: %w", name, ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE user = ?`, name); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) UserNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *sqliteStore) userExists(ctx context.Context, name string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE name = ?`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("user %q: %w", name, ErrNotFound)
	}
	return err
}

func (s *sqliteStore) AddTask(ctx context.Context, t task.Task) error {
	if err := s.userExists(ctx, t.User); err != nil {
		return err
	}
	completions, err := encodeCompletions(t.Completions)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO tasks(user, shortcut, text, due, period, reschedule, completions)
		 VALUES(?,?,?,?,?,?,?)`,
		t.User, t.Shortcut, t.Text, t.Due.Format(time.RFC3339Nano), t.Period, boolInt(t.Reschedule), completions,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %q: %w", t.Shortcut, ErrConflict)
	}
	return nil
}

func (s *sqliteStore) GetTask(ctx context.Context, user, shortcut string) (task.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user, shortcut, text, due, period, reschedule, completions
		 FROM tasks WHERE user = ? AND shortcut = ?`, user, shortcut)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return task.Task{}, fmt.Errorf("task %q: %w", shortcut, ErrNotFound)
	}
	return t, err
}

func (s *sqliteStore) UpdateTask(ctx context.Context, t task.Task) error {
	completions, err := encodeCompletions(t.Completions)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET text = ?, due = ?, period = ?, reschedule = ?, completions = ?
		 WHERE user = ? AND shortcut = ?`,
		t.Text, t.Due.Format(time.RFC3339Nano), t.Period, boolInt(t.Reschedule), completions,
		t.User, t.Shortcut,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %q: %w", t.Shortcut, ErrNotFound)
	}
	return nil
}

func (s *sqliteStore) RemoveTask(ctx context.Context, user, shortcut string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE user = ? AND shortcut = ?`, user, shortcut)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %q: %w", shortcut, ErrNotFound)
	}
	return nil
}

func (s *sqliteStore) UserTasks(ctx context.Context, user string) ([]task.Task, error) {
	if err := s.userExists(ctx, user); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT user, shortcut, text, due, period, reschedule, completions
		 FROM tasks WHERE user = ?`, user)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (task.Task, error) {
	var (
		t           task.Task
		due         string
		reschedule  int
		completions string
	)
	if err := row.Scan(&t.User, &t.Shortcut, &t.Text, &due, &t.Period, &reschedule, &completions); err != nil {
		return task.Task{}, err
	}
	d, err := time.Parse(time.RFC3339Nano, due)
	if err != nil {
		return task.Task{}, fmt.Errorf("task %q: bad due date: %w", t.Shortcut, err)
	}
	t.Due = d
	t.Reschedule = reschedule != 0
	t.Completions, err = decodeCompletions(completions)
	if err != nil {
		return task.Task{}, fmt.Errorf("task %q: %w", t.Shortcut, err)
	}
	return t, nil
}

func encodeCompletions(in []time.Time) (string, error) {
	ss := make([]string, 0, len(in))
	for _, c := range in {
		ss = append(ss, c.Format(time.RFC3339Nano))
	}
	b, err := json.Marshal(ss)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeCompletions(raw string) ([]time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var ss []string
	if err := json.Unmarshal([]byte(raw), &ss); err != nil {
		return nil, fmt.Errorf("bad completions: %w", err)
	}
	var out []time.Time
	for _, s := range ss {
		at, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("bad completion date %q: %w", s, err)
		}
		out = append(out, at)
	}
	return out, nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

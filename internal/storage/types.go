package storage

import (
	"context"
	"errors"
	"time"

	"repeatbot/internal/task"
)

var (
	// ErrNotFound marks a missing user or shortcut.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a duplicate user registration or shortcut.
	ErrConflict = errors.New("conflict")
)

// Config selects and tunes the persistence backend.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//   - "file": dependency-free JSON snapshot
//   - "memory": process-local, lost on exit
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the repository contract the engine runs against. Shortcut
// uniqueness per user is enforced here, not by callers; AddTask and
// UserTasks report ErrNotFound for users that never registered.
type Store interface {
	AddUser(ctx context.Context, name string) error
	RemoveUser(ctx context.Context, name string) error
	UserNames(ctx context.Context) ([]string, error)

	AddTask(ctx context.Context, t task.Task) error
	GetTask(ctx context.Context, user, shortcut string) (task.Task, error)
	UpdateTask(ctx context.Context, t task.Task) error
	RemoveTask(ctx context.Context, user, shortcut string) error
	// UserTasks returns a user's tasks in no guaranteed order.
	UserTasks(ctx context.Context, user string) ([]task.Task, error)

	Close() error
}

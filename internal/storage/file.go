package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"repeatbot/internal/task"
	logx "repeatbot/pkg/logx"
)

// fileStore is a dependency-free persistence backend: one JSON snapshot
// holding every user and task, rewritten atomically (temp file + rename)
// on each mutation. Fine for the small per-user task sets this bot sees.
type fileStore struct {
	log  logx.Logger
	path string

	mu    sync.Mutex
	users map[string]map[string]taskRecord
}

type taskRecord struct {
	User        string   `json:"user"`
	Shortcut    string   `json:"shortcut"`
	Text        string   `json:"text,omitempty"`
	Due         string   `json:"due"`
	Period      int      `json:"period"`
	Reschedule  bool     `json:"reschedule,omitempty"`
	Completions []string `json:"completions,omitempty"`
}

func toRecord(t task.Task) taskRecord {
	r := taskRecord{
		User:       t.User,
		Shortcut:   t.Shortcut,
		Text:       t.Text,
		Due:        t.Due.Format(time.RFC3339Nano),
		Period:     t.Period,
		Reschedule: t.Reschedule,
	}
	for _, c := range t.Completions {
		r.Completions = append(r.Completions, c.Format(time.RFC3339Nano))
	}
	return r
}

func (r taskRecord) toTask() (task.Task, error) {
	due, err := time.Parse(time.RFC3339Nano, r.Due)
	if err != nil {
		return task.Task{}, fmt.Errorf("task %q: bad due date: %w", r.Shortcut, err)
	}
	t := task.Task{
		User:       r.User,
		Shortcut:   r.Shortcut,
		Text:       r.Text,
		Due:        due,
		Period:     r.Period,
		Reschedule: r.Reschedule,
	}
	for _, c := range r.Completions {
		at, err := time.Parse(time.RFC3339Nano, c)
		if err != nil {
			return task.Task{}, fmt.Errorf("task %q: bad completion date: %w", r.Shortcut, err)
		}
		t.Completions = append(t.Completions, at)
	}
	return t, nil
}

type fileSnapshot struct {
	Users map[string][]taskRecord `json:"users"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{log: log, path: path, users: map[string]map[string]taskRecord{}}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *fileStore) load() error {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var snap fileSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return fmt.Errorf("corrupt store %s: %w", s.path, err)
	}
	for name, recs := range snap.Users {
		tasks := map[string]taskRecord{}
		for _, r := range recs {
			tasks[r.Shortcut] = r
		}
		s.users[name] = tasks
	}
	return nil
}

// save must be called with s.mu held.
func (s *fileStore) save() error {
	snap := fileSnapshot{Users: map[string][]taskRecord{}}
	for name, tasks := range s.users {
		recs := make([]taskRecord, 0, len(tasks))
		for _, r := range tasks {
			recs = append(recs, r)
		}
		snap.Users[name] = recs
	}
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *fileStore) AddUser(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[name]; ok {
		return fmt.Errorf("user %q: %w", name, ErrConflict)
	}
	s.users[name] = map[string]taskRecord{}
	return s.save()
}

func (s *fileStore) RemoveUser(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[name]; !ok {
		return fmt.Errorf("user %q: %w", name, ErrNotFound)
	}
	delete(s.users, name)
	return s.save()
}

func (s *fileStore) UserNames(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.users))
	for name := range s.users {
		names = append(names, name)
	}
	return names, nil
}

func (s *fileStore) AddTask(ctx context.Context, t task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks, ok := s.users[t.User]
	if !ok {
		return fmt.Errorf("user %q: %w", t.User, ErrNotFound)
	}
	if _, ok := tasks[t.Shortcut]; ok {
		return fmt.Errorf("task %q: %w", t.Shortcut, ErrConflict)
	}
	tasks[t.Shortcut] = toRecord(t)
	return s.save()
}

func (s *fileStore) GetTask(ctx context.Context, user, shortcut string) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.users[user][shortcut]
	if !ok {
		return task.Task{}, fmt.Errorf("task %q: %w", shortcut, ErrNotFound)
	}
	return r.toTask()
}

func (s *fileStore) UpdateTask(ctx context.Context, t task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := s.users[t.User]
	if _, ok := tasks[t.Shortcut]; !ok {
		return fmt.Errorf("task %q: %w", t.Shortcut, ErrNotFound)
	}
	tasks[t.Shortcut] = toRecord(t)
	return s.save()
}

func (s *fileStore) RemoveTask(ctx context.Context, user, shortcut string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := s.users[user]
	if _, ok := tasks[shortcut]; !ok {
		return fmt.Errorf("task %q: %w", shortcut, ErrNotFound)
	}
	delete(tasks, shortcut)
	return s.save()
}

func (s *fileStore) UserTasks(ctx context.Context, user string) ([]task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks, ok := s.users[user]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", user, ErrNotFound)
	}
	out := make([]task.Task, 0, len(tasks))
	for _, r := range tasks {
		t, err := r.toTask()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *fileStore) Close() error { return nil }

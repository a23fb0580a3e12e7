package storage

import (
	"context"
	"fmt"
	"sync"

	"repeatbot/internal/task"
)

// memStore keeps everything in process memory. It backs the "memory"
// driver and the package's tests.
type memStore struct {
	mu    sync.RWMutex
	users map[string]map[string]task.Task // user -> shortcut -> task
}

// NewMemory returns an empty in-memory store.
func NewMemory() Store {
	return &memStore{users: map[string]map[string]task.Task{}}
}

func (s *memStore) AddUser(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[name]; ok {
		return fmt.Errorf("user %q: %w", name, ErrConflict)
	}
	s.users[name] = map[string]task.Task{}
	return nil
}

func (s *memStore) RemoveUser(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[name]; !ok {
		return fmt.Errorf("user %q: %w", name, ErrNotFound)
	}
	delete(s.users, name)
	return nil
}

func (s *memStore) UserNames(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.users))
	for name := range s.users {
		names = append(names, name)
	}
	return names, nil
}

func (s *memStore) AddTask(ctx context.Context, t task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks, ok := s.users[t.User]
	if !ok {
		return fmt.Errorf("user %q: %w", t.User, ErrNotFound)
	}
	if _, ok := tasks[t.Shortcut]; ok {
		return fmt.Errorf("task %q: %w", t.Shortcut, ErrConflict)
	}
	tasks[t.Shortcut] = t
	return nil
}

func (s *memStore) GetTask(ctx context.Context, user, shortcut string) (task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.users[user][shortcut]
	if !ok {
		return task.Task{}, fmt.Errorf("task %q: %w", shortcut, ErrNotFound)
	}
	return t, nil
}

func (s *memStore) UpdateTask(ctx context.Context, t task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := s.users[t.User]
	if _, ok := tasks[t.Shortcut]; !ok {
		return fmt.Errorf("task %q: %w", t.Shortcut, ErrNotFound)
	}
	tasks[t.Shortcut] = t
	return nil
}

func (s *memStore) RemoveTask(ctx context.Context, user, shortcut string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := s.users[user]
	if _, ok := tasks[shortcut]; !ok {
		return fmt.Errorf("task %q: %w", shortcut, ErrNotFound)
	}
	delete(tasks, shortcut)
	return nil
}

func (s *memStore) UserTasks(ctx context.Context, user string) ([]task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tasks, ok := s.users[user]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", user, ErrNotFound)
	}
	out := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t)
	}
	return out, nil
}

func (s *memStore) Close() error { return nil }

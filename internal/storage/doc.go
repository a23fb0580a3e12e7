// Package storage persists users and their recurring tasks, keyed by user
// name then task shortcut. Backends: sqlite (default), a dependency-free
// JSON file store and an in-memory store for tests and throwaway runs.
package storage

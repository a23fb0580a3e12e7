package actualizer

import (
	"context"
	"testing"
	"time"

	"repeatbot/internal/storage"
	"repeatbot/internal/task"
	logx "repeatbot/pkg/logx"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func seed(t *testing.T, st storage.Store, tasks ...task.Task) {
	t.Helper()
	ctx := context.Background()
	seen := map[string]bool{}
	for _, tk := range tasks {
		if !seen[tk.User] {
			if err := st.AddUser(ctx, tk.User); err != nil {
				t.Fatalf("AddUser: %v", err)
			}
			seen[tk.User] = true
		}
		if err := st.AddTask(ctx, tk); err != nil {
			t.Fatalf("AddTask: %v", err)
		}
	}
}

func TestSweepAdvancesEveryOverdueTask(t *testing.T) {
	t.Parallel()
	st := storage.NewMemory()
	now := day(2024, time.February, 1)
	seed(t, st,
		task.Task{User: "alice", Shortcut: "a", Due: day(2024, time.January, 1), Period: 3},
		task.Task{User: "alice", Shortcut: "b", Due: day(2024, time.January, 20), Period: 7, Reschedule: true},
		task.Task{User: "bob", Shortcut: "c", Due: day(2024, time.March, 1), Period: 2},
		task.Task{User: "bob", Shortcut: "d", Due: day(2024, time.January, 31), Period: 1},
	)

	s := New(st, task.ClockFunc(func() time.Time { return now }), logx.Nop())
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	ctx := context.Background()
	for _, key := range []struct{ user, shortcut string }{
		{"alice", "a"}, {"alice", "b"}, {"bob", "c"}, {"bob", "d"},
	} {
		got, err := st.GetTask(ctx, key.user, key.shortcut)
		if err != nil {
			t.Fatalf("GetTask(%s/%s): %v", key.user, key.shortcut, err)
		}
		if task.DayBefore(got.Due, now) {
			t.Fatalf("%s/%s still overdue: %v", key.user, key.shortcut, got.Due)
		}
	}

	// the future task must be untouched
	future, _ := st.GetTask(ctx, "bob", "c")
	if !future.Due.Equal(day(2024, time.March, 1)) {
		t.Fatalf("future task moved to %v", future.Due)
	}
	// the reschedule-flagged task snapped to now
	snapped, _ := st.GetTask(ctx, "alice", "b")
	if !snapped.Due.Equal(now) {
		t.Fatalf("reschedule task Due = %v, want %v", snapped.Due, now)
	}
}

func TestEnsureCurrentRunsOncePerDay(t *testing.T) {
	t.Parallel()
	st := &countingStore{Store: storage.NewMemory()}
	now := day(2024, time.February, 1)
	seed(t, st, task.Task{User: "alice", Shortcut: "a", Due: day(2024, time.January, 1), Period: 3})

	clock := task.ClockFunc(func() time.Time { return now })
	s := New(st, clock, logx.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.EnsureCurrent(ctx); err != nil {
			t.Fatalf("EnsureCurrent: %v", err)
		}
	}
	if st.listCalls != 1 {
		t.Fatalf("sweeps on same day = %d, want 1", st.listCalls)
	}

	now = now.AddDate(0, 0, 1)
	if err := s.EnsureCurrent(ctx); err != nil {
		t.Fatalf("EnsureCurrent next day: %v", err)
	}
	if st.listCalls != 2 {
		t.Fatalf("sweeps after day change = %d, want 2", st.listCalls)
	}
}

type countingStore struct {
	storage.Store
	listCalls int
}

func (c *countingStore) UserNames(ctx context.Context) ([]string, error) {
	c.listCalls++
	return c.Store.UserNames(ctx)
}

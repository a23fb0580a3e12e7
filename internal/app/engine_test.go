package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"repeatbot/internal/dateparse"
	"repeatbot/internal/services/actualizer"
	"repeatbot/internal/storage"
	"repeatbot/internal/task"
	logx "repeatbot/pkg/logx"
)

func logTest() logx.Logger { return logx.Nop() }

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newTestEngine(t *testing.T, now time.Time) (*Engine, *testClock, storage.Store) {
	t.Helper()
	clock := &testClock{now: now}
	store := storage.NewMemory()
	t.Cleanup(func() { _ = store.Close() })
	resolver := &task.Resolver{Parser: dateparse.New(), Clock: clock}
	act := actualizer.New(store, clock, logTest())
	return NewEngine(store, resolver, act, clock, logTest()), clock, store
}

func mustReply(t *testing.T, got string, err error, want string) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, want) {
		t.Fatalf("reply %q does not contain %q", got, want)
	}
}

func TestUserLifecycle(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t, time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))

	got, err := e.Start(ctx, "alice")
	mustReply(t, got, err, "Hello, alice")

	got, err = e.Start(ctx, "alice")
	mustReply(t, got, err, "already active")

	got, err = e.Stop(ctx, "alice")
	mustReply(t, got, err, "Goodbye")

	got, err = e.Stop(ctx, "alice")
	mustReply(t, got, err, "No user alice")
}

func TestAddRequiresRegistration(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t, time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))

	got, err := e.Add(ctx, "bob", "abc water plants")
	mustReply(t, got, err, "not registered")
}

func TestAddSpillsToNextFreeDay(t *testing.T) {
	ctx := context.Background()
	e, _, store := newTestEngine(t, time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))

	if _, err := e.Start(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	for _, sc := range []string{"a1", "a2", "a3"} {
		got, err := e.Add(ctx, "alice", sc+" chore")
		mustReply(t, got, err, "05 Jan")
	}
	// day is full, the fourth lands on the 6th
	got, err := e.Add(ctx, "alice", "a4 chore")
	mustReply(t, got, err, "06 Jan")

	tk, err := store.GetTask(ctx, "alice", "a4")
	if err != nil {
		t.Fatal(err)
	}
	if tk.Period != task.DefaultPeriod {
		t.Fatalf("period = %d, want default %d", tk.Period, task.DefaultPeriod)
	}
}

func TestAddExplicitFields(t *testing.T) {
	ctx := context.Background()
	e, _, store := newTestEngine(t, time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))

	if _, err := e.Start(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	got, err := e.Add(ctx, "alice", "rent pay the rent date:2026-02-01 period:30 reschedule:true")
	mustReply(t, got, err, "Added rent")

	tk, err := store.GetTask(ctx, "alice", "rent")
	if err != nil {
		t.Fatal(err)
	}
	if tk.Text != "pay the rent" || tk.Period != 30 || !tk.Reschedule {
		t.Fatalf("task = %+v", tk)
	}
	if task.DayKey(tk.Due) != "2026-02-01" {
		t.Fatalf("due = %s", task.DayKey(tk.Due))
	}

	got, err = e.Add(ctx, "alice", "rent again")
	mustReply(t, got, err, "already exists")

	got, err = e.Add(ctx, "alice", "bad chore period:zero")
	mustReply(t, got, err, "Period must be an integer")
}

func TestUpdateMergesFields(t *testing.T) {
	ctx := context.Background()
	e, _, store := newTestEngine(t, time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))

	if _, err := e.Start(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Add(ctx, "alice", "abc water plants period:3"); err != nil {
		t.Fatal(err)
	}

	got, err := e.Update(ctx, "alice", "abc period:7")
	mustReply(t, got, err, "Updated abc")

	tk, err := store.GetTask(ctx, "alice", "abc")
	if err != nil {
		t.Fatal(err)
	}
	if tk.Text != "water plants" {
		t.Fatalf("text lost on update: %q", tk.Text)
	}
	if tk.Period != 7 {
		t.Fatalf("period = %d", tk.Period)
	}

	got, err = e.Update(ctx, "alice", "nope period:2")
	mustReply(t, got, err, "No task nope")
}

func TestCompleteAdvancesDue(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	e, _, store := newTestEngine(t, now)

	if _, err := e.Start(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Add(ctx, "alice", "abc water plants period:3"); err != nil {
		t.Fatal(err)
	}

	got, err := e.Complete(ctx, "alice", "abc")
	mustReply(t, got, err, "Done: abc")

	tk, err := store.GetTask(ctx, "alice", "abc")
	if err != nil {
		t.Fatal(err)
	}
	if task.DayKey(tk.Due) != "2026-01-08" {
		t.Fatalf("due = %s, want 2026-01-08", task.DayKey(tk.Due))
	}
	if len(tk.Completions) != 1 {
		t.Fatalf("completions = %d", len(tk.Completions))
	}
}

func TestListFiltersByDay(t *testing.T) {
	ctx := context.Background()
	e, clock, _ := newTestEngine(t, time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))

	if _, err := e.Start(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Add(ctx, "alice", "today1 morning chore"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Add(ctx, "alice", "later far away date:2026-03-01"); err != nil {
		t.Fatal(err)
	}

	got, err := e.List(ctx, "alice", "")
	mustReply(t, got, err, "today1: morning chore")
	if strings.Contains(got, "later") {
		t.Fatalf("future task leaked into today: %q", got)
	}

	got, err = e.List(ctx, "alice", "2026-03-01")
	mustReply(t, got, err, "later")

	// empty day
	clock.now = clock.now.Add(time.Hour)
	got, err = e.List(ctx, "alice", "2026-02-14")
	mustReply(t, got, err, "nothing")
}

func TestListAllOrdersByDue(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t, time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))

	if _, err := e.Start(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Add(ctx, "alice", "far date:2026-03-01"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Add(ctx, "alice", "near date:2026-01-10"); err != nil {
		t.Fatal(err)
	}

	got, err := e.ListAll(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Index(got, "near") > strings.Index(got, "far") {
		t.Fatalf("not ordered by due date:\n%s", got)
	}
}

func TestOverdueTaskCaughtUpBeforeList(t *testing.T) {
	ctx := context.Background()
	e, clock, store := newTestEngine(t, time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))

	if _, err := e.Start(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Add(ctx, "alice", "abc water plants period:3"); err != nil {
		t.Fatal(err)
	}

	// a week passes without completions
	clock.now = time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)
	if _, err := e.List(ctx, "alice", ""); err != nil {
		t.Fatal(err)
	}

	tk, err := store.GetTask(ctx, "alice", "abc")
	if err != nil {
		t.Fatal(err)
	}
	if task.DayBefore(tk.Due, clock.now) {
		t.Fatalf("task still overdue after list: due %s", task.DayKey(tk.Due))
	}
}

package task

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultPeriod is the fallback recurrence period in days when a task
	// is created without an explicit one.
	DefaultPeriod = 4

	// PerDayLimit caps how many tasks the resolver will place on a single
	// calendar day when picking a default due date. Explicit user-supplied
	// dates bypass the cap.
	PerDayLimit = 3
)

// Task is one recurring entry owned by a user. Operations treat Task as a
// value: they take a snapshot and return the advanced copy; the store keeps
// the canonical state.
type Task struct {
	User        string
	Shortcut    string
	Text        string
	Due         time.Time
	Period      int  // days between recurrences; >= 1 once resolved
	Reschedule  bool // overdue policy: snap to today instead of walking by period
	Completions []time.Time
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DayBefore reports whether a's calendar date is strictly before b's.
// Time of day is ignored; scheduling decisions compare whole days.
func DayBefore(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}

// DayKey returns the canonical per-day bucket key for a moment.
func DayKey(t time.Time) string { return t.Format("2006-01-02") }

// CatchUp advances an overdue task past now. A task already due today or
// later is returned unchanged, so applying CatchUp twice is the same as
// applying it once.
//
// With the reschedule flag set the task snaps to now in a single jump no
// matter how many cycles were missed; otherwise the due date walks forward
// one period at a time until it is no longer in the past.
func CatchUp(t Task, now time.Time) Task {
	if !DayBefore(t.Due, now) {
		return t
	}
	cp := t
	if cp.Reschedule {
		cp.Due = now
		return cp
	}
	step := cp.Period
	if step < 1 {
		// Corrupt or legacy rows must not spin the loop forever.
		step = 1
	}
	for DayBefore(cp.Due, now) {
		cp.Due = cp.Due.AddDate(0, 0, step)
	}
	return cp
}

// Complete records a completion at the given moment and advances the due
// date exactly one period from it. The previous due date does not matter:
// finishing late or early restarts the cycle from when the work was
// actually done, unlike CatchUp which preserves the original rhythm.
func Complete(t Task, at time.Time) Task {
	cp := t
	cp.Completions = append(append([]time.Time(nil), t.Completions...), at)
	cp.Due = at.AddDate(0, 0, cp.Period)
	return cp
}

// Describe renders the full task card shown by the get command.
func (t Task) Describe() string {
	var b strings.Builder
	b.WriteString(t.Shortcut)
	if strings.TrimSpace(t.Text) != "" {
		b.WriteString(": ")
		b.WriteString(t.Text)
	}
	fmt.Fprintf(&b, "\ndue %s, every %d day(s)", t.Due.Format("Mon, 02 Jan 2006"), t.Period)
	if t.Reschedule {
		b.WriteString("\nreschedules to today when missed")
	}
	if n := len(t.Completions); n > 0 {
		fmt.Fprintf(&b, "\ncompleted %d time(s), last on %s", n, t.Completions[n-1].Format("02 Jan 2006"))
	}
	return b.String()
}

// FieldNames lists the attribute names accepted in task messages,
// in the order help shows them.
func FieldNames() []string {
	return []string{"shortcut", "text", "date", "period", "reschedule"}
}

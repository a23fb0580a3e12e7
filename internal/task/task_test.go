package task

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func TestCatchUpCurrentTaskIsNoop(t *testing.T) {
	t.Parallel()
	now := day(2024, time.January, 8)
	tests := []struct {
		name string
		due  time.Time
	}{
		{name: "due today", due: day(2024, time.January, 8)},
		{name: "due today earlier hour", due: time.Date(2024, time.January, 8, 0, 30, 0, 0, time.UTC)},
		{name: "due in the future", due: day(2024, time.February, 1)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			in := Task{Shortcut: "abc", Due: tt.due, Period: 3}
			got := CatchUp(in, now)
			if !got.Due.Equal(tt.due) {
				t.Fatalf("Due = %v, want unchanged %v", got.Due, tt.due)
			}
			again := CatchUp(got, now)
			if !again.Due.Equal(got.Due) {
				t.Fatalf("second CatchUp moved Due to %v", again.Due)
			}
		})
	}
}

func TestCatchUpWalksForwardByPeriod(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		due    time.Time
		period int
		now    time.Time
		want   time.Time
	}{
		{
			// one missed cycle plus a remainder: lands past today
			name: "midway between cycles",
			due:  day(2024, time.January, 1), period: 3,
			now:  day(2024, time.January, 8),
			want: day(2024, time.January, 10),
		},
		{
			// now exactly on a cycle boundary: lands on today
			name: "on cycle boundary",
			due:  day(2024, time.January, 1), period: 3,
			now:  day(2024, time.January, 7),
			want: day(2024, time.January, 7),
		},
		{
			name: "many missed cycles",
			due:  day(2024, time.January, 1), period: 2,
			now:  day(2024, time.March, 1),
			want: day(2024, time.March, 1),
		},
		{
			name: "single day overdue",
			due:  day(2024, time.January, 7), period: 4,
			now:  day(2024, time.January, 8),
			want: day(2024, time.January, 11),
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := CatchUp(Task{Due: tt.due, Period: tt.period}, tt.now)
			if !SameDay(got.Due, tt.want) {
				t.Fatalf("Due = %v, want day %v", got.Due, tt.want)
			}
			// the walk preserves the time of day
			if got.Due.Hour() != tt.due.Hour() {
				t.Fatalf("Due hour = %d, want %d", got.Due.Hour(), tt.due.Hour())
			}
		})
	}
}

func TestCatchUpRescheduleSnapsToNow(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, time.January, 8, 14, 30, 0, 0, time.UTC)
	in := Task{Due: day(2023, time.November, 2), Period: 3, Reschedule: true}
	got := CatchUp(in, now)
	if !got.Due.Equal(now) {
		t.Fatalf("Due = %v, want snap to %v", got.Due, now)
	}
}

func TestCatchUpGuardsZeroPeriod(t *testing.T) {
	t.Parallel()
	got := CatchUp(Task{Due: day(2024, time.January, 1)}, day(2024, time.January, 3))
	if DayBefore(got.Due, day(2024, time.January, 3)) {
		t.Fatalf("Due = %v, still in the past", got.Due)
	}
}

func TestCompleteAdvancesFromCompletionMoment(t *testing.T) {
	t.Parallel()
	in := Task{
		Shortcut: "abc",
		Due:      day(2024, time.January, 2), // prior due must not matter
		Period:   5,
	}
	at := day(2024, time.January, 20)
	got := Complete(in, at)

	if want := day(2024, time.January, 25); !got.Due.Equal(want) {
		t.Fatalf("Due = %v, want %v", got.Due, want)
	}
	if len(got.Completions) != 1 || !got.Completions[0].Equal(at) {
		t.Fatalf("Completions = %v, want [%v]", got.Completions, at)
	}
	// input snapshot stays untouched
	if len(in.Completions) != 0 || !in.Due.Equal(day(2024, time.January, 2)) {
		t.Fatalf("input mutated: %+v", in)
	}

	second := Complete(got, day(2024, time.February, 1))
	if len(second.Completions) != 2 {
		t.Fatalf("Completions = %d, want 2", len(second.Completions))
	}
}

func TestDayHelpers(t *testing.T) {
	t.Parallel()
	a := time.Date(2024, time.January, 8, 23, 59, 0, 0, time.UTC)
	b := time.Date(2024, time.January, 8, 0, 1, 0, 0, time.UTC)
	if !SameDay(a, b) {
		t.Fatal("SameDay = false for same calendar day")
	}
	if DayBefore(a, b) || DayBefore(b, a) {
		t.Fatal("DayBefore = true within one day")
	}
	if !DayBefore(b, b.AddDate(0, 0, 1)) {
		t.Fatal("DayBefore = false across days")
	}
}

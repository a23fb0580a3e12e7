package task

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

type parserFunc func(text string, base time.Time) (time.Time, error)

func (f parserFunc) Parse(text string, base time.Time) (time.Time, error) { return f(text, base) }

func fixedClock(at time.Time) Clock { return ClockFunc(func() time.Time { return at }) }

func layoutParser() DateParser {
	return parserFunc(func(text string, base time.Time) (time.Time, error) {
		d, err := time.Parse("2006-01-02", text)
		if err != nil {
			return time.Time{}, fmt.Errorf("unrecognized date %q", text)
		}
		return d, nil
	})
}

func TestResolveSuitableDateSkipsFullDays(t *testing.T) {
	t.Parallel()
	now := day(2024, time.January, 1)
	existing := []Task{
		{Shortcut: "a", Due: day(2024, time.January, 1)},
		{Shortcut: "b", Due: time.Date(2024, time.January, 1, 22, 0, 0, 0, time.UTC)},
		{Shortcut: "c", Due: day(2024, time.January, 1)},
	}
	r := &Resolver{Parser: layoutParser(), Clock: fixedClock(now)}

	got, err := r.Resolve("alice", Fields{Shortcut: "d"}, existing)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if want := day(2024, time.January, 2); !SameDay(got.Due, want) {
		t.Fatalf("Due = %v, want day %v", got.Due, want)
	}
	if got.Period != DefaultPeriod {
		t.Fatalf("Period = %d, want default %d", got.Period, DefaultPeriod)
	}
}

func TestResolveSuitableDateWalksSeveralDays(t *testing.T) {
	t.Parallel()
	now := day(2024, time.January, 1)
	var existing []Task
	for d := 1; d <= 3; d++ {
		for i := 0; i < 3; i++ {
			existing = append(existing, Task{Due: day(2024, time.January, d)})
		}
	}
	r := &Resolver{Parser: layoutParser(), Clock: fixedClock(now)}

	got, err := r.Resolve("alice", Fields{Shortcut: "x"}, existing)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if want := day(2024, time.January, 4); !SameDay(got.Due, want) {
		t.Fatalf("Due = %v, want day %v", got.Due, want)
	}
}

func TestResolveExplicitDateBypassesCap(t *testing.T) {
	t.Parallel()
	now := day(2024, time.January, 1)
	existing := []Task{
		{Due: day(2024, time.January, 1)},
		{Due: day(2024, time.January, 1)},
		{Due: day(2024, time.January, 1)},
	}
	r := &Resolver{Parser: layoutParser(), Clock: fixedClock(now)}

	got, err := r.Resolve("alice", Fields{Shortcut: "x", Date: strp("2024-01-01")}, existing)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if want := day(2024, time.January, 1); !SameDay(got.Due, want) {
		t.Fatalf("Due = %v, want the explicit day %v", got.Due, want)
	}
}

func TestResolveFieldValidation(t *testing.T) {
	t.Parallel()
	r := &Resolver{Parser: layoutParser(), Clock: fixedClock(day(2024, time.January, 1))}
	tests := []struct {
		name   string
		fields Fields
	}{
		{name: "bad date", fields: Fields{Shortcut: "x", Date: strp("not a date at all %%")}},
		{name: "non-integer period", fields: Fields{Shortcut: "x", Period: strp("two")}},
		{name: "zero period", fields: Fields{Shortcut: "x", Period: strp("0")}},
		{name: "negative period", fields: Fields{Shortcut: "x", Period: strp("-3")}},
		{name: "bad reschedule", fields: Fields{Shortcut: "x", Reschedule: strp("maybe")}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.Resolve("alice", tt.fields, nil); !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestResolveExplicitFields(t *testing.T) {
	t.Parallel()
	r := &Resolver{Parser: layoutParser(), Clock: fixedClock(day(2024, time.January, 1))}
	got, err := r.Resolve("alice", Fields{
		Shortcut:   "gym",
		Text:       strp("leg day"),
		Date:       strp("2024-02-14"),
		Period:     strp("7"),
		Reschedule: strp("true"),
	}, nil)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got.User != "alice" || got.Shortcut != "gym" || got.Text != "leg day" {
		t.Fatalf("unexpected identity fields: %+v", got)
	}
	if !SameDay(got.Due, day(2024, time.February, 14)) {
		t.Fatalf("Due = %v, want 2024-02-14", got.Due)
	}
	if got.Period != 7 || !got.Reschedule {
		t.Fatalf("Period/Reschedule = %d/%v, want 7/true", got.Period, got.Reschedule)
	}
}

func TestChangesKeepsAbsentFieldsNil(t *testing.T) {
	t.Parallel()
	r := &Resolver{Parser: layoutParser(), Clock: fixedClock(day(2024, time.January, 1))}
	c, err := r.Changes(Fields{Shortcut: "gym", Period: strp("2")})
	if err != nil {
		t.Fatalf("Changes error: %v", err)
	}
	if c.Period == nil || *c.Period != 2 {
		t.Fatalf("Period = %v, want 2", c.Period)
	}
	if c.Text != nil || c.Due != nil || c.Reschedule != nil {
		t.Fatalf("unexpected non-nil fields: %+v", c)
	}

	base := Task{User: "alice", Shortcut: "gym", Text: "leg day", Due: day(2024, time.March, 1), Period: 7}
	merged := Apply(base, c)
	if merged.Period != 2 {
		t.Fatalf("merged Period = %d, want 2", merged.Period)
	}
	if merged.Text != base.Text || !merged.Due.Equal(base.Due) {
		t.Fatalf("merge touched absent fields: %+v", merged)
	}
}

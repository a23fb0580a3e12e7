package task

import (
	"fmt"
	"strconv"
	"time"
)

// DateParser turns loosely written human text into a concrete moment.
// base anchors relative expressions such as "tomorrow".
type DateParser interface {
	Parse(text string, base time.Time) (time.Time, error)
}

// Resolver turns tokenized fields into well-typed task values, filling in
// a due date and period when the user left them out.
type Resolver struct {
	Parser DateParser
	Clock  Clock

	// DefaultPeriod and PerDayLimit override the package constants when > 0.
	DefaultPeriod int
	PerDayLimit   int
}

// Resolve validates fields for a new task. An explicit date goes through
// the date parser; an absent one is picked by SuitableDate. An absent
// period defaults to the resolver's period.
func (r *Resolver) Resolve(user string, f Fields, existing []Task) (Task, error) {
	t := Task{User: user, Shortcut: f.Shortcut}
	if f.Text != nil {
		t.Text = *f.Text
	}

	now := r.Clock.Now()
	if f.Date != nil {
		due, err := r.Parser.Parse(*f.Date, now)
		if err != nil {
			return Task{}, fmt.Errorf("%w: failed to parse date %q", ErrValidation, *f.Date)
		}
		t.Due = due
	} else {
		t.Due = r.SuitableDate(now, existing)
	}

	period, err := r.period(f.Period)
	if err != nil {
		return Task{}, err
	}
	t.Period = period

	if f.Reschedule != nil {
		v, err := strconv.ParseBool(*f.Reschedule)
		if err != nil {
			return Task{}, fmt.Errorf("%w: reschedule must be true or false, got %q", ErrValidation, *f.Reschedule)
		}
		t.Reschedule = v
	}
	return t, nil
}

// Change describes a partial update to an existing task. Nil fields are
// left untouched on merge; unknown attributes were already rejected by the
// tokenizer.
type Change struct {
	Text       *string
	Due        *time.Time
	Period     *int
	Reschedule *bool
}

// Changes validates only the fields the user actually supplied, for the
// update flow. It never invents a date or period the way Resolve does.
func (r *Resolver) Changes(f Fields) (Change, error) {
	var c Change
	c.Text = f.Text
	if f.Date != nil {
		due, err := r.Parser.Parse(*f.Date, r.Clock.Now())
		if err != nil {
			return Change{}, fmt.Errorf("%w: failed to parse date %q", ErrValidation, *f.Date)
		}
		c.Due = &due
	}
	if f.Period != nil {
		p, err := parsePeriod(*f.Period)
		if err != nil {
			return Change{}, err
		}
		c.Period = &p
	}
	if f.Reschedule != nil {
		v, err := strconv.ParseBool(*f.Reschedule)
		if err != nil {
			return Change{}, fmt.Errorf("%w: reschedule must be true or false, got %q", ErrValidation, *f.Reschedule)
		}
		c.Reschedule = &v
	}
	return c, nil
}

// Apply merges a change onto a task snapshot and returns the new value.
func Apply(t Task, c Change) Task {
	cp := t
	if c.Text != nil {
		cp.Text = *c.Text
	}
	if c.Due != nil {
		cp.Due = *c.Due
	}
	if c.Period != nil {
		cp.Period = *c.Period
	}
	if c.Reschedule != nil {
		cp.Reschedule = *c.Reschedule
	}
	return cp
}

// SuitableDate walks forward one day at a time from now until it finds a
// calendar day holding fewer than the per-day limit of existing tasks.
// Each task occupies exactly one day bucket, so the walk terminates.
func (r *Resolver) SuitableDate(now time.Time, existing []Task) time.Time {
	limit := r.PerDayLimit
	if limit <= 0 {
		limit = PerDayLimit
	}
	perDay := make(map[string]int, len(existing))
	for _, t := range existing {
		perDay[DayKey(t.Due)]++
	}
	due := now
	for perDay[DayKey(due)] >= limit {
		due = due.AddDate(0, 0, 1)
	}
	return due
}

func (r *Resolver) period(raw *string) (int, error) {
	if raw == nil {
		return r.suitablePeriod(), nil
	}
	return parsePeriod(*raw)
}

// suitablePeriod picks a period for tasks created without one.
// TODO: estimate the period from the user's current per-day load so dense
// schedules stretch out instead of always landing on the default.
func (r *Resolver) suitablePeriod() int {
	if r.DefaultPeriod > 0 {
		return r.DefaultPeriod
	}
	return DefaultPeriod
}

func parsePeriod(raw string) (int, error) {
	p, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: period must be an integer, got %q", ErrValidation, raw)
	}
	if p < 1 {
		return 0, fmt.Errorf("%w: period must be a positive number of days, got %d", ErrValidation, p)
	}
	return p, nil
}

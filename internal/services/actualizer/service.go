// Package actualizer restores the "no task is due in the past" invariant
// after time has elapsed: every task of every user is pushed through
// catch-up and written back.
package actualizer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"repeatbot/internal/storage"
	"repeatbot/internal/task"
	logx "repeatbot/pkg/logx"
)

type Service struct {
	store storage.Store
	clock task.Clock
	log   logx.Logger

	// mu serializes sweeps; two concurrent catch-ups of the same task
	// could otherwise double-advance it.
	mu      sync.Mutex
	lastDay string

	cron *cron.Cron
}

func New(store storage.Store, clock task.Clock, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{store: store, clock: clock, log: log}
}

// EnsureCurrent runs a sweep when the calendar day has advanced since the
// last completed one. Handlers call it before serving reads; it is cheap
// when the day has not changed and idempotent when it has.
func (s *Service) EnsureCurrent(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := task.DayKey(s.clock.Now())
	if s.lastDay == day {
		return nil
	}
	if err := s.sweep(ctx); err != nil {
		return err
	}
	s.lastDay = day
	return nil
}

// Sweep unconditionally visits every task in the store.
func (s *Service) Sweep(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.sweep(ctx); err != nil {
		return err
	}
	s.lastDay = task.DayKey(s.clock.Now())
	return nil
}

// sweep must be called with s.mu held.
func (s *Service) sweep(ctx context.Context) error {
	now := s.clock.Now()
	start := time.Now()

	users, err := s.store.UserNames(ctx)
	if err != nil {
		return fmt.Errorf("actualize: list users: %w", err)
	}

	visited, advanced := 0, 0
	for _, user := range users {
		tasks, err := s.store.UserTasks(ctx, user)
		if err != nil {
			return fmt.Errorf("actualize: tasks of %q: %w", user, err)
		}
		for _, t := range tasks {
			adv := task.CatchUp(t, now)
			if !adv.Due.Equal(t.Due) {
				advanced++
			}
			if err := s.store.UpdateTask(ctx, adv); err != nil {
				return fmt.Errorf("actualize: update %s/%s: %w", user, t.Shortcut, err)
			}
			visited++
		}
	}

	s.log.Info("tasks actualized",
		logx.Int("users", len(users)),
		logx.Int("visited", visited),
		logx.Int("advanced", advanced),
		logx.Duration("took", time.Since(start)),
	)
	return nil
}

// StartCron schedules a background sweep so a long-idle deployment does
// not wait for the next command to catch up. The lazy EnsureCurrent guard
// stays the correctness mechanism; this just tightens the latency.
func (s *Service) StartCron(spec string, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(cron.WithLocation(loc))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.EnsureCurrent(ctx); err != nil {
			s.log.Warn("scheduled actualize failed", logx.Err(err))
		}
	})
	if err != nil {
		return fmt.Errorf("actualize cron spec %q: %w", spec, err)
	}
	c.Start()
	s.cron = c
	s.log.Info("actualize cron started", logx.String("spec", spec))
	return nil
}

// StopCron waits for an in-flight scheduled sweep to finish.
func (s *Service) StopCron() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
}

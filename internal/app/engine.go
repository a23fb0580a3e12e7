package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"repeatbot/internal/services/actualizer"
	"repeatbot/internal/storage"
	"repeatbot/internal/task"
	logx "repeatbot/pkg/logx"
)

// Engine implements the command semantics on top of the store. Each method
// returns the reply text for the chat; expected user mistakes (bad input,
// unknown shortcut) become reply text, only infrastructure failures come
// back as errors.
type Engine struct {
	store    storage.Store
	resolver *task.Resolver
	act      *actualizer.Service
	clock    task.Clock
	log      logx.Logger
}

func NewEngine(store storage.Store, resolver *task.Resolver, act *actualizer.Service, clock task.Clock, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{store: store, resolver: resolver, act: act, clock: clock, log: log}
}

// ensure lazily pushes overdue tasks forward before any command touches
// the store, so every reply reflects the current calendar day.
func (e *Engine) ensure(ctx context.Context) error {
	return e.act.EnsureCurrent(ctx)
}

func (e *Engine) Start(ctx context.Context, user string) (string, error) {
	if err := e.ensure(ctx); err != nil {
		return "", err
	}
	err := e.store.AddUser(ctx, user)
	switch {
	case errors.Is(err, storage.ErrConflict):
		return fmt.Sprintf("User %s is already active.", user), nil
	case err != nil:
		return "", err
	}
	return fmt.Sprintf("Hello, %s! Send /add <shortcut> to track your first task, or /help for the format.", user), nil
}

func (e *Engine) Stop(ctx context.Context, user string) (string, error) {
	if err := e.ensure(ctx); err != nil {
		return "", err
	}
	err := e.store.RemoveUser(ctx, user)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Sprintf("No user %s.", user), nil
	case err != nil:
		return "", err
	}
	return fmt.Sprintf("Goodbye, %s. Your tasks are gone.", user), nil
}

func (e *Engine) Add(ctx context.Context, user, remainder string) (string, error) {
	if err := e.ensure(ctx); err != nil {
		return "", err
	}
	fields, err := task.Tokenize(remainder)
	if err != nil {
		return userError(err)
	}

	existing, err := e.store.UserTasks(ctx, user)
	if errors.Is(err, storage.ErrNotFound) {
		return notRegistered(user), nil
	}
	if err != nil {
		return "", err
	}

	t, err := e.resolver.Resolve(user, fields, existing)
	if err != nil {
		return userError(err)
	}

	err = e.store.AddTask(ctx, t)
	switch {
	case errors.Is(err, storage.ErrConflict):
		return fmt.Sprintf("Task %s already exists. Use /update to change it.", t.Shortcut), nil
	case errors.Is(err, storage.ErrNotFound):
		return notRegistered(user), nil
	case err != nil:
		return "", err
	}
	e.log.Info("task added",
		logx.String("user", user),
		logx.String("shortcut", t.Shortcut),
		logx.String("due", task.DayKey(t.Due)))
	return fmt.Sprintf("Added %s, due %s, every %d day(s).", t.Shortcut, t.Due.Format("Mon, 02 Jan"), t.Period), nil
}

func (e *Engine) Update(ctx context.Context, user, remainder string) (string, error) {
	if err := e.ensure(ctx); err != nil {
		return "", err
	}
	fields, err := task.Tokenize(remainder)
	if err != nil {
		return userError(err)
	}
	change, err := e.resolver.Changes(fields)
	if err != nil {
		return userError(err)
	}

	current, err := e.store.GetTask(ctx, user, fields.Shortcut)
	if errors.Is(err, storage.ErrNotFound) {
		return noTask(fields.Shortcut), nil
	}
	if err != nil {
		return "", err
	}

	next := task.Apply(current, change)
	if err := e.store.UpdateTask(ctx, next); err != nil {
		return "", err
	}
	return "Updated " + next.Shortcut + ".\n" + next.Describe(), nil
}

func (e *Engine) Remove(ctx context.Context, user, remainder string) (string, error) {
	if err := e.ensure(ctx); err != nil {
		return "", err
	}
	shortcut := firstToken(remainder)
	if shortcut == "" {
		return "Which task? Send /remove <shortcut>.", nil
	}
	err := e.store.RemoveTask(ctx, user, shortcut)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return noTask(shortcut), nil
	case err != nil:
		return "", err
	}
	return "Removed " + shortcut + ".", nil
}

func (e *Engine) Get(ctx context.Context, user, remainder string) (string, error) {
	if err := e.ensure(ctx); err != nil {
		return "", err
	}
	shortcut := firstToken(remainder)
	if shortcut == "" {
		return "Which task? Send /get <shortcut>.", nil
	}
	t, err := e.store.GetTask(ctx, user, shortcut)
	if errors.Is(err, storage.ErrNotFound) {
		return noTask(shortcut), nil
	}
	if err != nil {
		return "", err
	}
	return t.Describe(), nil
}

// Complete records a completion and pushes the due date one period past
// the completion moment. An optional date in the remainder backdates the
// completion, e.g. "/complete abc yesterday".
func (e *Engine) Complete(ctx context.Context, user, remainder string) (string, error) {
	if err := e.ensure(ctx); err != nil {
		return "", err
	}
	shortcut, rest := splitToken(remainder)
	if shortcut == "" {
		return "Which task? Send /complete <shortcut> [date].", nil
	}

	at := e.clock.Now()
	if rest != "" {
		parsed, err := e.resolver.Parser.Parse(rest, at)
		if err != nil {
			return fmt.Sprintf("Could not read %q as a date.", rest), nil
		}
		at = parsed
	}

	t, err := e.store.GetTask(ctx, user, shortcut)
	if errors.Is(err, storage.ErrNotFound) {
		return noTask(shortcut), nil
	}
	if err != nil {
		return "", err
	}

	done := task.Complete(t, at)
	if err := e.store.UpdateTask(ctx, done); err != nil {
		return "", err
	}
	e.log.Info("task completed",
		logx.String("user", user),
		logx.String("shortcut", shortcut),
		logx.String("next_due", task.DayKey(done.Due)))
	return fmt.Sprintf("Done: %s. Next due %s.", shortcut, done.Due.Format("Mon, 02 Jan")), nil
}

// List shows the tasks due on one day, today unless the remainder names
// another date.
func (e *Engine) List(ctx context.Context, user, remainder string) (string, error) {
	if err := e.ensure(ctx); err != nil {
		return "", err
	}
	day := e.clock.Now()
	if s := strings.TrimSpace(remainder); s != "" {
		parsed, err := e.resolver.Parser.Parse(s, day)
		if err != nil {
			return fmt.Sprintf("Could not read %q as a date.", s), nil
		}
		day = parsed
	}

	tasks, err := e.store.UserTasks(ctx, user)
	if errors.Is(err, storage.ErrNotFound) {
		return notRegistered(user), nil
	}
	if err != nil {
		return "", err
	}

	var due []task.Task
	for _, t := range tasks {
		if task.SameDay(t.Due, day) {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].Shortcut < due[j].Shortcut })

	var b strings.Builder
	fmt.Fprintf(&b, "Tasks for %s:", day.Format("Mon, 02 Jan"))
	if len(due) == 0 {
		b.WriteString("\nnothing, enjoy the day")
		return b.String(), nil
	}
	for _, t := range due {
		b.WriteString("\n" + taskLine(t))
	}
	return b.String(), nil
}

// ListAll shows every task the user has, ordered by due date.
func (e *Engine) ListAll(ctx context.Context, user string) (string, error) {
	if err := e.ensure(ctx); err != nil {
		return "", err
	}
	tasks, err := e.store.UserTasks(ctx, user)
	if errors.Is(err, storage.ErrNotFound) {
		return notRegistered(user), nil
	}
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		return "No tasks yet. Send /add <shortcut> to create one.", nil
	}
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].Due.Equal(tasks[j].Due) {
			return tasks[i].Due.Before(tasks[j].Due)
		}
		return tasks[i].Shortcut < tasks[j].Shortcut
	})
	var b strings.Builder
	b.WriteString("All tasks:")
	for _, t := range tasks {
		fmt.Fprintf(&b, "\n%s  %s", t.Due.Format("02 Jan"), taskLine(t))
	}
	return b.String(), nil
}

func taskLine(t task.Task) string {
	if strings.TrimSpace(t.Text) == "" {
		return t.Shortcut
	}
	return t.Shortcut + ": " + t.Text
}

func notRegistered(user string) string {
	return fmt.Sprintf("You are not registered, %s. Send /start first.", user)
}

func noTask(shortcut string) string {
	return fmt.Sprintf("No task %s.", shortcut)
}

// userError converts a validation failure into reply text and swallows the
// error; anything else propagates.
func userError(err error) (string, error) {
	if errors.Is(err, task.ErrValidation) {
		return capitalize(strings.TrimPrefix(err.Error(), task.ErrValidation.Error()+": ")) + ".", nil
	}
	return "", err
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func firstToken(s string) string {
	t, _ := splitToken(s)
	return t
}

func splitToken(s string) (head, rest string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	if i := strings.IndexFunc(s, func(r rune) bool { return r == ' ' || r == '\t' }); i >= 0 {
		return s[:i], strings.TrimSpace(s[i:])
	}
	return s, ""
}

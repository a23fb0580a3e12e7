package app

import (
	"context"
	"strings"

	"repeatbot/internal/task"
	"repeatbot/internal/transport/telegram/router"
)

// reply adapts an engine method to a router handler. Engine methods hand
// back the reply text; errors are left for the router's fallback reply.
func reply(fn func(ctx context.Context, user, remainder string) (string, error)) router.HandlerFunc {
	return func(ctx context.Context, req *router.Request) error {
		text, err := fn(ctx, req.User, req.Remainder)
		if err != nil {
			return err
		}
		return req.Reply(ctx, text)
	}
}

func (a *App) registerCommands() {
	e := a.engine
	noArg := func(fn func(ctx context.Context, user string) (string, error)) router.HandlerFunc {
		return reply(func(ctx context.Context, user, _ string) (string, error) {
			return fn(ctx, user)
		})
	}

	a.router.Register(
		router.Command{
			Name:        "start",
			Description: "register and begin tracking tasks",
			Handle:      noArg(e.Start),
		},
		router.Command{
			Name:        "stop",
			Description: "unregister and delete all your tasks",
			Handle:      noArg(e.Stop),
		},
		router.Command{
			Name:        "add",
			Description: "add a recurring task",
			Usage:       "/add <shortcut> [text] [date:<when>] [period:<days>] [reschedule:<bool>]",
			Handle:      reply(e.Add),
		},
		router.Command{
			Name:        "update",
			Description: "change fields of a task",
			Usage:       "/update <shortcut> [text] [date:<when>] [period:<days>] [reschedule:<bool>]",
			Handle:      reply(e.Update),
		},
		router.Command{
			Name:        "remove",
			Description: "delete a task",
			Usage:       "/remove <shortcut>",
			Handle:      reply(e.Remove),
		},
		router.Command{
			Name:        "get",
			Description: "show one task in full",
			Usage:       "/get <shortcut>",
			Handle:      reply(e.Get),
		},
		router.Command{
			Name:        "complete",
			Description: "mark a task done and move its due date",
			Usage:       "/complete <shortcut> [date]",
			Handle:      reply(e.Complete),
		},
		router.Command{
			Name:        "list",
			Description: "tasks due on a day, today by default",
			Usage:       "/list [date]",
			Handle:      reply(e.List),
		},
		router.Command{
			Name:        "list_all",
			Description: "every task you have",
			Handle:      noArg(e.ListAll),
		},
		router.Command{
			Name:        "help",
			Description: "how to talk to this bot",
			Handle: func(ctx context.Context, req *router.Request) error {
				return req.Reply(ctx, a.helpText())
			},
		},
	)
}

func (a *App) helpText() string {
	var b strings.Builder
	b.WriteString("Commands:")
	for _, c := range a.router.Commands() {
		b.WriteString("\n/")
		b.WriteString(c.Name)
		if c.Description != "" {
			b.WriteString(" - " + c.Description)
		}
		if c.Usage != "" {
			b.WriteString("\n    " + c.Usage)
		}
	}
	b.WriteString("\n\nTask fields: " + strings.Join(task.FieldNames(), ", "))
	b.WriteString("\nExample: /add abc pay rent date:first friday period:30")
	return b.String()
}

// Package router matches incoming /commands to handlers and converts
// handler failures into reply text. Commands run one at a time, in
// arrival order: every handler is a read-modify-write against the store
// and serializing them keeps that trivially safe.
package router

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	kit "repeatbot/internal/transport"
	logx "repeatbot/pkg/logx"
)

type Command struct {
	Name        string
	Description string
	Usage       string
	Timeout     time.Duration // optional per-command override
	Handle      HandlerFunc
}

type Request struct {
	Chat kit.ChatTarget
	// User is the engine-side user key: the Telegram username when set,
	// otherwise the numeric sender id.
	User      string
	FromID    int64
	Command   string
	Remainder string // message text with the command verb stripped
	ReqID     string

	Adapter kit.Adapter
	Logger  logx.Logger
}

// Reply sends plain text back to the requesting chat.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, &kit.SendOptions{DisablePreview: true})
	return err
}

type Router struct {
	mu    sync.RWMutex
	cmds  map[string]Command
	order []string

	log            logx.Logger
	adapter        kit.Adapter
	defaultTimeout time.Duration
}

func New(log logx.Logger, adapter kit.Adapter) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		cmds:           map[string]Command{},
		log:            log,
		adapter:        adapter,
		defaultTimeout: 30 * time.Second,
	}
}

func (r *Router) Register(cmds ...Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range cmds {
		name := strings.TrimSpace(c.Name)
		if name == "" || c.Handle == nil {
			continue
		}
		if _, exists := r.cmds[name]; !exists {
			r.order = append(r.order, name)
		}
		r.cmds[name] = c
	}
}

// Commands returns registered commands in registration order.
func (r *Router) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Command, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.cmds[name])
	}
	return out
}

// UpdateMenu pushes the command list to the platform menu when the
// adapter supports it.
func (r *Router) UpdateMenu(ctx context.Context) {
	up, ok := r.adapter.(kit.CommandMenuUpdater)
	if !ok {
		return
	}
	cmds := r.Commands()
	menu := make([]kit.BotCommand, 0, len(cmds))
	for _, c := range cmds {
		menu = append(menu, kit.BotCommand{Command: c.Name, Description: c.Description})
	}
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := up.UpdateMenuCommands(cctx, menu); err != nil {
		r.log.Warn("menu update failed", logx.Err(err))
	}
}

// DispatchLoop consumes updates until ctx is done or the channel closes.
// Handlers run inline, one update at a time.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) {
	r.log.Info("command dispatcher started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info("command dispatcher stopped")
			return
		case up, ok := <-updates:
			if !ok {
				r.log.Info("command dispatcher stopped (updates channel closed)")
				return
			}
			if up.Kind == kit.UpdateMessage {
				r.routeMessage(ctx, up)
			}
		}
	}
}

func (r *Router) routeMessage(ctx context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}

	verb, remainder := splitVerb(text)
	r.mu.RLock()
	cmd, ok := r.cmds[verb]
	r.mu.RUnlock()

	chat := kit.ChatTarget{ChatID: msg.ChatID}
	if !ok {
		_, _ = r.adapter.SendText(ctx, chat, "Unknown command. Try /help", nil)
		return
	}

	user := msg.FromUsername
	if user == "" {
		user = strconv.FormatInt(msg.FromID, 10)
	}

	rid := newReqID()
	req := &Request{
		Chat:      chat,
		User:      user,
		FromID:    msg.FromID,
		Command:   cmd.Name,
		Remainder: remainder,
		ReqID:     rid,
		Adapter:   r.adapter,
		Logger: r.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.String("user", user),
			logx.String("cmd", cmd.Name),
		),
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	final := Chain(
		cmd.Handle,
		withRecovery(r.log),
		withAccessLog(r.log),
		withTimeout(timeout),
	)

	// Handlers convert expected failures to replies themselves; anything
	// that still comes back here turns into a generic failure reply.
	if err := final(ctx, req); err != nil {
		_ = req.Reply(ctx, "Sorry, that failed: "+err.Error())
	}
}

// splitVerb peels "/verb" (with optional @botname suffix) off the message.
func splitVerb(text string) (verb, remainder string) {
	verb = text
	if i := strings.IndexFunc(text, func(r rune) bool { return r == ' ' || r == '\t' }); i >= 0 {
		verb = text[:i]
		remainder = strings.TrimSpace(text[i:])
	}
	verb = strings.TrimPrefix(verb, "/")
	if i := strings.IndexByte(verb, '@'); i >= 0 {
		verb = verb[:i]
	}
	return verb, remainder
}

func newReqID() string {
	return strings.ToLower(ulid.Make().String())
}

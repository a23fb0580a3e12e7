package router

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	logx "repeatbot/pkg/logx"
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Middleware func(next HandlerFunc) HandlerFunc

// Chain wraps h so that the first middleware listed is the outermost one.
func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

// reqLogger prefers the per-request logger (it carries rid/user/cmd) over
// the router's own.
func reqLogger(fallback logx.Logger, req *Request) logx.Logger {
	if req != nil && !req.Logger.IsZero() {
		return req.Logger
	}
	return fallback
}

// withTimeout bounds one handler run. A stuck Telegram send or storage
// call must not stall the single-threaded dispatch loop forever.
func withTimeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, req *Request) error {
			cctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(cctx, req)
		}
	}
}

// withRecovery turns a handler panic into an error so one bad command
// cannot take the bot down.
func withRecovery(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				reqLogger(log, req).Error("panic recovered",
					logx.Any("panic", r),
					logx.String("stack", string(debug.Stack())),
				)
				err = fmt.Errorf("panic: %v", r)
			}()
			return next(ctx, req)
		}
	}
}

// withAccessLog records the outcome and duration of every handled command.
func withAccessLog(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			err := next(ctx, req)
			l := reqLogger(log, req)
			if err != nil {
				l.Warn("command failed", logx.Duration("took", time.Since(start)), logx.Err(err))
				return err
			}
			l.Debug("command handled", logx.Duration("took", time.Since(start)))
			return nil
		}
	}
}

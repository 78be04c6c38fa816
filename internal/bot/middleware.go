package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	logx "alertbot/pkg/logx"
)

type HandlerFunc func(ctx context.Context, ev Event) error

type Middleware func(next HandlerFunc) HandlerFunc

func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

func MWTimeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, ev Event) error {
			if d <= 0 {
				return next(ctx, ev)
			}
			cctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(cctx, ev)
		}
	}
}

func MWPanicRecover(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, ev Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered",
						logx.String("event", ev.Kind.String()),
						logx.Any("panic", r),
						logx.Stack(string(debug.Stack())),
					)
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return next(ctx, ev)
		}
	}
}

func MWRequestLog(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, ev Event) error {
			start := time.Now()
			err := next(ctx, ev)
			d := time.Since(start)

			fields := []logx.Field{
				logx.String("event", ev.Kind.String()),
				logx.Int64("chat_id", ev.ChatID),
				logx.Int64("from_id", ev.FromID),
				logx.Duration("dur", d),
			}
			switch {
			case err != nil:
				log.Warn("request failed", append(fields, logx.Err(err))...)
			case d >= slowNotice:
				log.Info("request ok (slow)", fields...)
			default:
				log.Debug("request ok", fields...)
			}
			return err
		}
	}
}

package bot

import (
	"context"
	"errors"
	"runtime"
	"strconv"
	"time"

	"alertbot/internal/region"
	"alertbot/internal/runtime/supervisor"
	"alertbot/internal/storage"
	kit "alertbot/internal/transport"
	logx "alertbot/pkg/logx"
)

const (
	DefaultTimeout = 15 * time.Second
	// slowNotice is how long a handler may run before the request log calls it slow.
	slowNotice = 750 * time.Millisecond
)

// Registry is the part of the subscriber store the bot touches.
type Registry interface {
	GetOrCreate(ctx context.Context, id int64) (storage.Subscription, error)
	SetRegion(ctx context.Context, id int64, feedIndex int) error
	ToggleNotifications(ctx context.Context, id int64) (bool, error)
}

// StatusLookup answers manual status checks.
type StatusLookup interface {
	RegionStatus(ctx context.Context, feedIndex int) (region.Reading, error)
}

type Config struct {
	// Workers bounds concurrent handlers. Zero means NumCPU (at least 2).
	Workers int
	// Timeout bounds a single update. Zero means DefaultTimeout.
	Timeout time.Duration
}

type Option func(*Router)

// WithCatalog overrides the built-in region catalog.
func WithCatalog(c *region.Catalog) Option {
	return func(r *Router) {
		if c != nil {
			r.catalog = c
		}
	}
}

// Router turns inbound updates into registry changes and replies.
type Router struct {
	msgr    kit.Messenger
	reg     Registry
	status  StatusLookup
	catalog *region.Catalog
	log     logx.Logger
	workers int

	handle HandlerFunc
}

func New(cfg Config, msgr kit.Messenger, reg Registry, status StatusLookup, log logx.Logger, opts ...Option) *Router {
	r := &Router{
		msgr:    msgr,
		reg:     reg,
		status:  status,
		catalog: region.Default(),
		log:     log.With(logx.String("comp", "bot")),
		workers: cfg.Workers,
	}
	for _, o := range opts {
		if o != nil {
			o(r)
		}
	}
	if r.workers <= 0 {
		r.workers = max(runtime.NumCPU(), 2)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	r.handle = Chain(r.dispatch,
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWTimeout(timeout),
	)
	return r
}

// Handle processes one update synchronously.
func (r *Router) Handle(ctx context.Context, up kit.Update) error {
	return r.handle(ctx, ParseEvent(up))
}

// Run reads updates until ctx is done or the channel is closed, handling them
// on a bounded worker pool. It waits for in-flight handlers before returning.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) error {
	sup := supervisor.New(ctx,
		supervisor.WithLogger(r.log),
		supervisor.WithCancelOnError(false),
	)
	r.log.Info("dispatcher started", logx.Int("workers", r.workers))

	for i := 0; i < r.workers; i++ {
		idx := i
		sup.GoRestart("bot.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case up, ok := <-updates:
					if !ok {
						return nil
					}
					// Errors are already logged by the request log.
					_ = r.Handle(c, up)
				}
			}
		},
			supervisor.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			supervisor.WithStopOnCleanExit(true),
		)
	}

	// Returns once ctx is done or every worker saw the channel close.
	_ = sup.Wait(ctx)
	wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := sup.Stop(wctx)
	r.log.Info("dispatcher stopped")
	if errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

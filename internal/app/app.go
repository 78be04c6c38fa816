package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"alertbot/internal/bot"
	"alertbot/internal/config"
	"alertbot/internal/eventbus"
	"alertbot/internal/feed"
	"alertbot/internal/metrics"
	"alertbot/internal/monitor"
	"alertbot/internal/notifier"
	"alertbot/internal/region"
	"alertbot/internal/runtime/supervisor"
	"alertbot/internal/storage"
	"alertbot/internal/task/scheduler"
	kit "alertbot/internal/transport"
	telegram "alertbot/internal/transport/telegram/adapter"
	logx "alertbot/pkg/logx"
)

const (
	jobMaintenance = "storage.maintenance"
	jobSubscribers = "metrics.subscribers"
)

var menuCommands = []kit.BotCommand{
	{Command: "start", Description: "Обрати область"},
}

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store   storage.Registry
	adapter kit.Adapter
	feed    *feed.Client
	metrics *metrics.Metrics
	server  *metrics.Server
	fanout  *notifier.Fanout
	monitor *monitor.Monitor
	router  *bot.Router
	sched   *scheduler.Service

	sdnotify notifyFunc
	lastOK   atomic.Int64 // unix nanos of the last successful cycle

	updates chan kit.Update
}

// New loads the config at cfgPath and wires every component. Nothing runs
// until Start.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	adCfg, err := mapAdapterConfig(cfg)
	if err != nil {
		return nil, err
	}
	bootLog := logx.NewConsole(cfg.Logging.Level)
	ad, err := telegram.New(adCfg, bootLog)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}

	logSvc, log := logx.New(mapLogConfig(cfg), ad)
	a, err := build(cfg, ad, logSvc, log)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	a.cfgm = cfgm
	return a, nil
}

// build wires components around an already constructed adapter.
func build(cfg *config.Config, ad kit.Adapter, logSvc *logx.Service, log logx.Logger) (*App, error) {
	a := &App{
		log:      log.With(logx.String("comp", "app")),
		logs:     logSvc,
		bus:      eventbus.New(),
		adapter:  ad,
		metrics:  metrics.New(),
		sdnotify: sdNotify,
		updates:  make(chan kit.Update, 256),
	}

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	a.store = store
	a.log.Info("storage opened", logx.String("driver", sc.Driver))

	fc, err := mapFeedConfig(cfg)
	if err != nil {
		return nil, a.abort(err)
	}
	a.feed = feed.New(fc)

	dc, err := mapDeliveryConfig(cfg)
	if err != nil {
		return nil, a.abort(err)
	}
	a.fanout = notifier.New(dc, ad, store, log, notifier.WithMetrics(a.metrics))

	mc, err := mapMonitorConfig(cfg)
	if err != nil {
		return nil, a.abort(err)
	}
	a.monitor = monitor.New(mc, region.Default(), a.feed, a.fanout, log,
		monitor.WithBus(a.bus),
		monitor.WithMetrics(a.metrics),
		monitor.WithCycleHook(a.onCycle),
	)

	bc, err := mapBotConfig(cfg)
	if err != nil {
		return nil, a.abort(err)
	}
	a.router = bot.New(bc, ad, store, a.feed, log)

	msc, err := mapMetricsConfig(cfg)
	if err != nil {
		return nil, a.abort(err)
	}
	a.server = metrics.NewServer(msc, a.metrics, a.health, log)

	a.sched = scheduler.New(scheduler.Config{}, log.With(logx.String("comp", "scheduler")))
	if err := a.registerJobs(cfg); err != nil {
		return nil, a.abort(err)
	}
	return a, nil
}

func (a *App) abort(err error) error {
	if a.store != nil {
		_ = a.store.Close()
	}
	return err
}

// Done is closed when the app context is cancelled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the app supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	runCtx := a.sup.Context()

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		return fmt.Errorf("telegram start: %w", err)
	}
	if mu, ok := a.adapter.(kit.CommandMenuUpdater); ok {
		a.sup.Go0("telegram.menu", func(c context.Context) {
			mctx, cancel := context.WithTimeout(c, 15*time.Second)
			defer cancel()
			if err := mu.UpdateMenuCommands(mctx, menuCommands); err != nil {
				a.log.Warn("command menu update failed", logx.Err(err))
			}
		})
	}

	a.sup.Go("bot.dispatch", func(c context.Context) error {
		return a.router.Run(c, a.updates)
	})

	a.monitor.Start(runCtx)
	a.server.Start(runCtx)
	a.sched.Start(runCtx)
	if err := a.sched.RunNow(runCtx, jobSubscribers); err != nil {
		a.log.Warn("subscriber stats unavailable", logx.Err(err))
	}
	for _, e := range a.sched.Snapshot() {
		a.log.Info("job scheduled", logx.String("job", e.Name), logx.String("spec", e.Spec))
	}

	a.startEventLog()
	if a.cfgm != nil {
		a.startConfigReload()
	}

	a.notifySystemd(sdReady)
	a.logWatchdog()
	a.log.Info("app started", logx.Int("regions", region.Default().Len()))
	return nil
}

func (a *App) startEventLog() {
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time), logx.Any("data", e.Data))
			}
		}
	})
}

func (a *App) startConfigReload() {
	a.cfgm.SetLogger(a.log)
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(c, last, next)
				last = next
			}
		}
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})
}

// applyConfig pushes the live-reloadable sections into running components.
func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	sections, attrs := config.SummarizeChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	a.logs.Apply(mapLogConfig(next))

	if mc, err := mapMonitorConfig(next); err != nil {
		a.log.Warn("invalid monitor config; keeping previous", logx.Err(err))
	} else {
		a.monitor.SetInterval(mc.Interval)
	}
	if dc, err := mapDeliveryConfig(next); err != nil {
		a.log.Warn("invalid delivery config; keeping previous", logx.Err(err))
	} else {
		a.fanout.Apply(dc)
	}
	if msc, err := mapMetricsConfig(next); err != nil {
		a.log.Warn("invalid metrics config; keeping previous", logx.Err(err))
	} else {
		a.server.Reconfigure(ctx, msc)
	}
	if err := a.registerJobs(next); err != nil {
		a.log.Warn("maintenance schedule not updated", logx.Err(err))
	}

	if restart := config.RestartRequired(sections); len(restart) > 0 {
		a.log.Warn("config sections changed that need a restart", logx.Strs("sections", restart))
	}
	a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfig, Data: sections})
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) onCycle(r monitor.CycleReport) {
	if r.Err != nil {
		return
	}
	a.lastOK.Store(r.At.UnixNano())
	a.notifySystemd(sdWatchdog)
}

// health backs /healthz: ready once baselined, unhealthy when the feed goes stale.
func (a *App) health() error {
	if a.monitor.State() != monitor.StateRunning {
		return errors.New("monitor has no baseline yet")
	}
	last := a.lastOK.Load()
	if last == 0 {
		return nil
	}
	limit := max(3*a.monitor.Interval(), time.Minute)
	if age := time.Since(time.Unix(0, last)); age > limit {
		return fmt.Errorf("feed stale: last successful poll %s ago", age.Round(time.Second))
	}
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.notifySystemd(sdStopping)
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		runStep(ctx, a.log, name, max, fn)
	}
	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	// runCtx is already cancelled: an in-flight fanout fails its remaining
	// recipients and the monitor loop exits after that cycle.
	step("monitor", 5*time.Second, a.monitor.Stop)
	step("metrics", time.Second, func(c context.Context) error { a.server.Stop(c); return nil })
	step("adapter", 2*time.Second, a.adapter.Stop)
	step("supervisor", 3*time.Second, a.sup.Wait)
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// runStep bounds one shutdown step by max and by ctx's deadline, whichever
// is sooner. A step that overruns is logged and left behind.
func runStep(ctx context.Context, log logx.Logger, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		max = min(max, time.Until(dl))
	}
	if max <= 0 {
		log.Warn("stop step skipped (no time left)", logx.String("name", name))
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		go func() {
			if err := <-done; err != nil {
				log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err))
			}
		}()
	}
}

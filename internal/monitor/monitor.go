package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"alertbot/internal/eventbus"
	"alertbot/internal/feed"
	"alertbot/internal/messages"
	"alertbot/internal/metrics"
	"alertbot/internal/notifier"
	"alertbot/internal/region"
	rtsup "alertbot/internal/runtime/supervisor"
	logx "alertbot/pkg/logx"
)

const DefaultInterval = 10 * time.Second

// ErrCyclePanic marks a cycle that was aborted by a recovered panic.
var ErrCyclePanic = errors.New("monitor: cycle panicked")

// Source yields the current feed reading.
type Source interface {
	FetchStatuses(ctx context.Context) (feed.Statuses, error)
}

// Notifier fans a message out for one region.
type Notifier interface {
	Notify(ctx context.Context, r region.Region, class messages.Class) (notifier.Report, error)
}

type State int

const (
	StateUninitialized State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "uninitialized"
}

type Config struct {
	Interval time.Duration
}

// CycleReport describes one poll.
type CycleReport struct {
	Seq         uint64
	At          time.Time
	Baseline    bool
	Err         error
	Transitions []Transition
	Fanouts     []notifier.Report
	FanoutErrs  int
	Took        time.Duration
}

// Result is the metrics label for the cycle outcome.
func (r CycleReport) Result() string {
	switch {
	case errors.Is(r.Err, ErrCyclePanic):
		return "panic"
	case r.Err != nil:
		return "fetch_error"
	case r.Baseline:
		return "baseline"
	default:
		return "ok"
	}
}

// Monitor is the single owner of the status snapshot.
type Monitor struct {
	catalog *region.Catalog
	source  Source
	notify  Notifier
	log     logx.Logger
	bus     eventbus.Bus
	metrics *metrics.Metrics
	onCycle func(CycleReport)

	interval  atomic.Int64
	seq       atomic.Uint64
	shortFeed atomic.Bool

	// cycleMu serialises cycles: a new poll never starts before the previous
	// one, fanout included, has finished.
	cycleMu sync.Mutex

	mu        sync.Mutex
	snapshot  map[int]region.Status
	baselined bool

	runMu sync.Mutex
	sup   *rtsup.Supervisor
}

type Option func(*Monitor)

func WithBus(b eventbus.Bus) Option {
	return func(m *Monitor) { m.bus = b }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Monitor) { m.metrics = mt }
}

// WithCycleHook runs fn after every cycle, on the monitor goroutine.
func WithCycleHook(fn func(CycleReport)) Option {
	return func(m *Monitor) { m.onCycle = fn }
}

func New(cfg Config, catalog *region.Catalog, source Source, notify Notifier, log logx.Logger, opts ...Option) *Monitor {
	if log.IsZero() {
		log = logx.Nop()
	}
	m := &Monitor{
		catalog:  catalog,
		source:   source,
		notify:   notify,
		log:      log.With(logx.String("comp", "monitor")),
		snapshot: make(map[int]region.Status, catalog.Len()),
	}
	for _, o := range opts {
		o(m)
	}
	m.SetInterval(cfg.Interval)
	return m
}

// SetInterval changes the sleep between cycles; it applies from the next sleep.
func (m *Monitor) SetInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultInterval
	}
	m.interval.Store(int64(d))
}

func (m *Monitor) Interval() time.Duration { return time.Duration(m.interval.Load()) }

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.baselined {
		return StateRunning
	}
	return StateUninitialized
}

// RunCycle performs one poll: fetch, diff, fanout. It never panics and never
// returns an error; the outcome is in the report.
func (m *Monitor) RunCycle(ctx context.Context) (rep CycleReport) {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	start := time.Now()
	rep.Seq = m.seq.Add(1)
	rep.At = start
	defer func() {
		if r := recover(); r != nil {
			rep.Err = fmt.Errorf("%w: %v", ErrCyclePanic, r)
			m.log.Error("cycle panicked", logx.Uint64("seq", rep.Seq), logx.Any("panic", r), logx.Stack(logx.StackTrace(3, 24)))
		}
		rep.Took = time.Since(start)
		m.finish(rep)
	}()

	st, err := m.source.FetchStatuses(ctx)
	m.metrics.ObserveFetch(time.Since(start))
	if err != nil {
		rep.Err = fmt.Errorf("fetch statuses: %w", err)
		return rep
	}

	m.checkFeedLength(st)
	rep.Transitions, rep.Baseline = m.apply(st)
	for _, tr := range rep.Transitions {
		fr, err := m.fanout(ctx, tr)
		if err != nil {
			rep.FanoutErrs++
			continue
		}
		rep.Fanouts = append(rep.Fanouts, fr)
	}
	return rep
}

// checkFeedLength warns once each time the feed becomes too short to cover
// every tracked region. Missing regions read as None.
func (m *Monitor) checkFeedLength(st feed.Statuses) {
	want := m.catalog.MaxFeedIndex() + 1
	short := st.Len() < want
	if m.shortFeed.Swap(short) == short {
		return
	}
	if short {
		m.log.Warn("feed shorter than region catalog", logx.Int("len", st.Len()), logx.Int("want", want))
	} else {
		m.log.Info("feed length back to normal", logx.Int("len", st.Len()))
	}
}

// apply diffs st against the snapshot and updates it. It reports the
// notification-worthy transitions in catalog order and whether this call
// recorded the baseline.
func (m *Monitor) apply(st feed.Statuses) ([]Transition, bool) {
	regions := m.catalog.All()

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.baselined {
		for _, r := range regions {
			cur := st.At(r.FeedIndex).Status
			m.snapshot[r.FeedIndex] = cur
			m.metrics.SetRegionStatus(r.Key, int(cur))
		}
		m.baselined = true
		return nil, true
	}

	var out []Transition
	for _, r := range regions {
		cur := st.At(r.FeedIndex).Status
		prev, seen := m.snapshot[r.FeedIndex]
		m.snapshot[r.FeedIndex] = cur
		m.metrics.SetRegionStatus(r.Key, int(cur))
		if !seen || prev == cur {
			continue
		}
		m.metrics.ObserveTransition(prev.String(), cur.String())
		if class, ok := ClassifyTransition(prev, cur); ok {
			out = append(out, Transition{Region: r, From: prev, To: cur, Class: class})
		}
	}
	return out, false
}

func (m *Monitor) fanout(ctx context.Context, tr Transition) (rep notifier.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fanout panicked: %v", r)
			m.log.Error("fanout panicked", logx.String("region", tr.Region.Key), logx.Any("panic", r))
		}
	}()

	m.log.Info("alert transition",
		logx.String("region", tr.Region.Key),
		logx.String("from", tr.From.String()),
		logx.String("to", tr.To.String()),
		logx.String("class", tr.Class.String()),
	)
	m.publish(eventbus.TypeTransition, tr)

	rep, err = m.notify.Notify(ctx, tr.Region, tr.Class)
	if err != nil {
		m.log.Error("fanout failed", logx.String("region", tr.Region.Key), logx.Err(err))
		return rep, err
	}
	m.publish(eventbus.TypeFanout, rep)
	return rep, nil
}

func (m *Monitor) finish(rep CycleReport) {
	m.metrics.ObserveCycle(rep.Result())
	m.publish(eventbus.TypeCycle, rep)

	switch {
	case rep.Err != nil:
		m.log.Warn("cycle failed", logx.Uint64("seq", rep.Seq), logx.Duration("dur", rep.Took), logx.Err(rep.Err))
	case rep.Baseline:
		m.publish(eventbus.TypeBaseline, rep)
		m.log.Info("baseline recorded", logx.Int("regions", m.catalog.Len()), logx.Duration("dur", rep.Took))
	default:
		m.log.Debug("cycle done",
			logx.Uint64("seq", rep.Seq),
			logx.Int("transitions", len(rep.Transitions)),
			logx.Int("fanout_errors", rep.FanoutErrs),
			logx.Duration("dur", rep.Took),
		)
	}
	if m.onCycle != nil {
		m.onCycle(rep)
	}
}

func (m *Monitor) publish(typ string, data any) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(eventbus.Event{Type: typ, Data: data})
}

// Run loops cycle, sleep, cycle until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info("monitor loop started", logx.Duration("interval", m.Interval()), logx.Int("regions", m.catalog.Len()))
	for {
		m.RunCycle(ctx)

		t := time.NewTimer(m.Interval())
		select {
		case <-ctx.Done():
			t.Stop()
			m.log.Info("monitor loop stopped")
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Start runs the loop in the background. It is idempotent.
func (m *Monitor) Start(ctx context.Context) {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.sup != nil {
		return
	}
	m.sup = rtsup.New(ctx,
		rtsup.WithLogger(m.log),
		rtsup.WithCancelOnError(false),
	)
	m.sup.GoRestart("monitor.loop", m.Run,
		rtsup.WithRestartBackoff(time.Second, 30*time.Second),
		rtsup.WithPublishFirstError(true),
	)
}

// Stop signals the loop and waits for the in-flight cycle, bounded by ctx.
func (m *Monitor) Stop(ctx context.Context) error {
	m.runMu.Lock()
	sup := m.sup
	m.sup = nil
	m.runMu.Unlock()
	if sup == nil {
		return nil
	}
	return sup.Stop(ctx)
}

// statusOf reads the snapshot; tests only.
func (m *Monitor) statusOf(feedIndex int) (region.Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshot[feedIndex]
	return s, ok
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	logx "alertbot/pkg/logx"
)

var ErrUnknownJob = errors.New("unknown job")

// Config controls trigger evaluation.
type Config struct {
	Timezone string // IANA TZ, e.g. "Europe/Kyiv"; empty means local
}

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// Entry is a point-in-time view of a registered job.
type Entry struct {
	Name     string
	Spec     string
	Next     time.Time
	LastRun  time.Time
	LastErr  string
	Runs     uint64
	Failures uint64
	Skipped  uint64
}

type def struct {
	name    string
	spec    string
	timeout time.Duration
	job     Job
	entryID cron.EntryID

	running  atomic.Bool
	runs     atomic.Uint64
	failures atomic.Uint64
	skipped  atomic.Uint64

	mu      sync.Mutex
	lastRun time.Time
	lastErr string
}

type Service struct {
	mu sync.Mutex

	log    logx.Logger
	cfg    Config
	loc    *time.Location
	parser cron.Parser
	c      *cron.Cron
	defs   map[string]*def

	runCtx context.Context
	cancel context.CancelFunc
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg: cfg,
		log: log,
		// SecondOptional allows both 5-field and 6-field (with seconds) specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		defs:   map[string]*def{},
	}
}

// Validate reports whether spec is accepted by AddCron.
func (s *Service) Validate(spec string) error {
	_, err := s.parser.Parse(strings.TrimSpace(spec))
	return err
}

// AddCron registers or replaces the job called name.
func (s *Service) AddCron(name, spec string, timeout time.Duration, job Job) error {
	name = strings.TrimSpace(name)
	spec = strings.TrimSpace(spec)
	if name == "" || job == nil {
		return errors.New("scheduler: name and job are required")
	}
	if err := s.Validate(spec); err != nil {
		return fmt.Errorf("scheduler: %s: invalid spec %q: %w", name, spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
	d := &def{name: name, spec: spec, timeout: timeout, job: job}
	s.defs[name] = d
	if s.c != nil {
		if err := s.addLocked(d); err != nil {
			delete(s.defs, name)
			return err
		}
	}
	s.log.Debug("job registered", logx.String("job", name), logx.String("spec", spec))
	return nil
}

// Remove unregisters name. It reports whether the job existed.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(name)
}

func (s *Service) removeLocked(name string) bool {
	d, ok := s.defs[name]
	if !ok {
		return false
	}
	if s.c != nil && d.entryID != 0 {
		s.c.Remove(d.entryID)
	}
	delete(s.defs, name)
	return true
}

func (s *Service) addLocked(d *def) error {
	ctx := s.runCtx
	eid, err := s.c.AddFunc(d.spec, func() { s.trigger(ctx, d) })
	if err != nil {
		return fmt.Errorf("scheduler: %s: %w", d.name, err)
	}
	d.entryID = eid
	return nil
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tzChanged := strings.TrimSpace(s.cfg.Timezone) != strings.TrimSpace(cfg.Timezone)
	s.cfg = cfg
	if s.c != nil && tzChanged {
		s.restartLocked()
	}
}

// Start begins triggering. Jobs run with a context derived from ctx.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.restartLocked()
}

func (s *Service) restartLocked() {
	if s.c != nil {
		<-s.c.Stop().Done()
	}
	s.loc = s.loadLocationLocked()
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	for _, d := range s.defs {
		if err := s.addLocked(d); err != nil {
			s.log.Warn("job not scheduled", logx.String("job", d.name), logx.Err(err))
		}
	}
	s.c.Start()
	s.log.Info("service started", logx.String("tz", s.loc.String()), logx.Int("jobs", len(s.defs)))
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; using local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// Stop halts triggering and cancels running jobs, waiting for them until ctx is done.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c, cancel := s.c, s.cancel
	s.c, s.cancel = nil, nil
	for _, d := range s.defs {
		d.entryID = 0
	}
	s.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	select {
	case <-c.Stop().Done():
		s.log.Info("service stopped")
	case <-ctx.Done():
		s.log.Warn("service stop timed out; jobs still running", logx.Err(ctx.Err()))
	}
}

// RunNow executes name synchronously, honouring the no-overlap rule.
func (s *Service) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	d, ok := s.defs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if !d.running.CompareAndSwap(false, true) {
		d.skipped.Add(1)
		return fmt.Errorf("scheduler: %s: already running", name)
	}
	defer d.running.Store(false)
	return s.run(ctx, d)
}

func (s *Service) trigger(ctx context.Context, d *def) {
	if !d.running.CompareAndSwap(false, true) {
		d.skipped.Add(1)
		s.log.Debug("job skipped (still running)", logx.String("job", d.name))
		return
	}
	defer d.running.Store(false)
	_ = s.run(ctx, d)
}

func (s *Service) run(ctx context.Context, d *def) (err error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("job panicked", logx.String("job", d.name), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			err = fmt.Errorf("panic: %v", r)
		}
		d.runs.Add(1)
		d.mu.Lock()
		d.lastRun = start
		d.lastErr = ""
		if err != nil {
			d.lastErr = err.Error()
		}
		d.mu.Unlock()
		took := time.Since(start)
		if err != nil {
			d.failures.Add(1)
			s.log.Warn("job failed", logx.String("job", d.name), logx.Duration("took", took), logx.Err(err))
			return
		}
		s.log.Info("job done", logx.String("job", d.name), logx.Duration("took", took))
	}()
	return d.job(ctx)
}

// Snapshot lists registered jobs sorted by name.
func (s *Service) Snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.defs))
	for _, d := range s.defs {
		e := Entry{
			Name:     d.name,
			Spec:     d.spec,
			Runs:     d.runs.Load(),
			Failures: d.failures.Load(),
			Skipped:  d.skipped.Load(),
		}
		if s.c != nil && d.entryID != 0 {
			e.Next = s.c.Entry(d.entryID).Next
		}
		d.mu.Lock()
		e.LastRun, e.LastErr = d.lastRun, d.lastErr
		d.mu.Unlock()
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

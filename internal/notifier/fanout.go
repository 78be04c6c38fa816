package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"alertbot/internal/messages"
	"alertbot/internal/metrics"
	"alertbot/internal/region"
	kit "alertbot/internal/transport"
	logx "alertbot/pkg/logx"
)

// Fanout delivers rendered notifications through a kit.Sender.
type Fanout struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	sender     kit.Sender
	recipients Recipients
	log        logx.Logger
	metrics    *metrics.Metrics
}

type Option func(*Fanout)

func WithMetrics(m *metrics.Metrics) Option { return func(f *Fanout) { f.metrics = m } }

func New(cfg Config, sender kit.Sender, recipients Recipients, log logx.Logger, opts ...Option) *Fanout {
	if log.IsZero() {
		log = logx.Nop()
	}
	f := &Fanout{
		sender:     sender,
		recipients: recipients,
		log:        log.With(logx.String("comp", "notifier")),
	}
	for _, o := range opts {
		o(f)
	}
	f.Apply(cfg)
	return f
}

// Apply swaps pacing and timeouts; in-flight fanouts keep their snapshot.
func (f *Fanout) Apply(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = DefaultRatePerSec
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	f.mu.Lock()
	f.cfg = cfg
	f.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	f.mu.Unlock()
}

// Notify sends the message for class to every enabled subscriber of r.
// The only returned error is a wrapped ErrRegistry; delivery failures land in
// the Report.
func (f *Fanout) Notify(ctx context.Context, r region.Region, class messages.Class) (Report, error) {
	start := time.Now()
	rep := Report{Region: r, Class: class}

	ids, err := f.recipients.ListEnabledSubscribers(ctx, r.FeedIndex)
	if err != nil {
		f.log.Error("fanout aborted: registry failed", logx.String("region", r.Key), logx.String("class", class.String()), logx.Err(err))
		return rep, fmt.Errorf("%w: region %s: %w", ErrRegistry, r.Key, err)
	}
	rep.Total = len(ids)
	if len(ids) == 0 {
		f.log.Debug("fanout skipped: no subscribers", logx.String("region", r.Key), logx.String("class", class.String()))
		return rep, nil
	}

	f.mu.Lock()
	cfg := f.cfg
	lim := f.limiter
	f.mu.Unlock()

	text := messages.Render(class, r)
	opt := &kit.SendOptions{ParseMode: cfg.ParseMode, DisablePreview: true}

	for _, id := range ids {
		err := f.sendOne(ctx, lim, cfg.SendTimeout, id, text, opt)
		f.metrics.ObserveDelivery(class.String(), err == nil)
		if err != nil {
			rep.Failed++
			if len(rep.Failures) < maxReportedFailures {
				rep.Failures = append(rep.Failures, Delivery{SubscriberID: id, Err: err})
			}
			f.log.Warn("delivery failed", logx.String("region", r.Key), logx.Int64("chat_id", id), logx.Err(err))
			continue
		}
		rep.Sent++
	}
	rep.Took = time.Since(start)

	fields := []logx.Field{
		logx.String("region", r.Key),
		logx.String("class", class.String()),
		logx.Int("total", rep.Total),
		logx.Int("sent", rep.Sent),
		logx.Int("failed", rep.Failed),
		logx.Duration("dur", rep.Took),
	}
	if rep.Failed > 0 {
		f.log.Warn("fanout finished with failures", fields...)
	} else {
		f.log.Info("fanout finished", fields...)
	}
	return rep, nil
}

func (f *Fanout) sendOne(ctx context.Context, lim *rate.Limiter, timeout time.Duration, id int64, text string, opt *kit.SendOptions) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("send panicked: %v", r)
		}
	}()
	if err := lim.Wait(ctx); err != nil {
		return err
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err = f.sender.SendText(sctx, kit.ChatTarget{ChatID: id}, text, opt)
	return err
}

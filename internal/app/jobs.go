package app

import (
	"context"
	"time"

	"alertbot/internal/config"
	"alertbot/internal/storage"
	logx "alertbot/pkg/logx"
)

// registerJobs (re)installs the housekeeping schedule for cfg.
func (a *App) registerJobs(cfg *config.Config) error {
	if spec := mapMaintenanceSpec(cfg); spec == "" {
		if a.sched.Remove(jobMaintenance) {
			a.log.Info("storage maintenance disabled")
		}
	} else if err := a.sched.AddCron(jobMaintenance, spec, 10*time.Minute, a.maintain); err != nil {
		return err
	}
	return a.sched.AddCron(jobSubscribers, "@every 5m", 30*time.Second, a.refreshSubscriberGauges)
}

func (a *App) maintain(ctx context.Context) error {
	if m, ok := a.store.(storage.Maintainer); ok {
		if err := m.Maintain(ctx); err != nil {
			return err
		}
	}
	return a.refreshSubscriberGauges(ctx)
}

func (a *App) refreshSubscriberGauges(ctx context.Context) error {
	sr, ok := a.store.(storage.StatsReader)
	if !ok {
		return nil
	}
	st, err := sr.Stats(ctx)
	if err != nil {
		return err
	}
	a.metrics.SetSubscribers(st.Subscribers, st.Enabled, st.WithRegion)
	a.log.Debug("subscriber stats",
		logx.Int("total", st.Subscribers),
		logx.Int("enabled", st.Enabled),
		logx.Int("with_region", st.WithRegion),
	)
	return nil
}

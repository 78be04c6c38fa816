package app

import (
	"github.com/coreos/go-systemd/v22/daemon"

	logx "alertbot/pkg/logx"
)

const (
	sdReady    = daemon.SdNotifyReady
	sdStopping = daemon.SdNotifyStopping
	sdWatchdog = daemon.SdNotifyWatchdog
)

// notifyFunc reports whether the notification was delivered. It returns
// false, nil when not running under systemd.
type notifyFunc func(state string) (bool, error)

func sdNotify(state string) (bool, error) { return daemon.SdNotify(false, state) }

func (a *App) notifySystemd(state string) {
	if a.sdnotify == nil {
		return
	}
	sent, err := a.sdnotify(state)
	switch {
	case err != nil:
		a.log.Warn("systemd notify failed", logx.String("state", state), logx.Err(err))
	case sent && state != sdWatchdog:
		a.log.Debug("systemd notified", logx.String("state", state))
	}
}

// logWatchdog warns when the poll interval cannot keep a systemd watchdog fed.
func (a *App) logWatchdog() {
	wd, err := daemon.SdWatchdogEnabled(false)
	if err != nil || wd == 0 {
		return
	}
	iv := a.monitor.Interval()
	if iv >= wd/2 {
		a.log.Warn("monitor interval too long for systemd watchdog",
			logx.Duration("interval", iv), logx.Duration("watchdog", wd))
		return
	}
	a.log.Info("systemd watchdog enabled", logx.Duration("watchdog", wd))
}

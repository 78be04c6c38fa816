package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const MinMonitorInterval = time.Second

// Validate checks cfg without touching the network or disk.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		add(errors.New("telegram.token is required (or set " + EnvPrefix + "TELEGRAM_TOKEN)"))
	}
	_, err := ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	add(err)

	if strings.TrimSpace(cfg.Feed.Token) == "" {
		add(errors.New("feed.token is required (or set " + EnvPrefix + "FEED_TOKEN)"))
	}
	_, err = ParseDurationField("feed.timeout", cfg.Feed.Timeout)
	add(err)

	if iv, err := ParseDurationField("monitor.interval", cfg.Monitor.Interval); err != nil {
		add(err)
	} else if iv != 0 && iv < MinMonitorInterval {
		add(fmt.Errorf("monitor.interval: must be >= %s", MinMonitorInterval))
	}

	if cfg.Delivery.RatePerSec < 0 {
		add(errors.New("delivery.rate_per_sec: must be >= 0"))
	}
	_, err = ParseDurationField("delivery.send_timeout", cfg.Delivery.SendTimeout)
	add(err)

	if cfg.Bot.Workers < 0 {
		add(errors.New("bot.workers: must be >= 0"))
	}
	_, err = ParseDurationField("bot.timeout", cfg.Bot.Timeout)
	add(err)

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "memory":
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			add(fmt.Errorf("storage.path is required for driver %q", cfg.Storage.Driver))
		}
	default:
		add(fmt.Errorf("storage.driver: unknown driver %q (memory|file|sqlite)", cfg.Storage.Driver))
	}
	_, err = ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	add(err)
	if spec := strings.TrimSpace(cfg.Storage.Maintenance); spec != "" && !MaintenanceDisabled(spec) {
		if _, err := cron.ParseStandard(spec); err != nil {
			add(fmt.Errorf("storage.maintenance: %w", err))
		}
	}

	if lvl := strings.TrimSpace(cfg.Logging.Level); lvl != "" && !validLevel(lvl) {
		add(fmt.Errorf("logging.level: unknown level %q", lvl))
	}
	if t := cfg.Logging.Telegram; t.Enabled {
		if t.ChatID == 0 {
			add(errors.New("logging.telegram.chat_id is required when enabled"))
		}
		if t.MinLevel != "" && !validLevel(t.MinLevel) {
			add(fmt.Errorf("logging.telegram.min_level: unknown level %q", t.MinLevel))
		}
	}

	if cfg.Metrics.Enabled && strings.TrimSpace(cfg.Metrics.Addr) != "" {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Addr); err != nil {
			add(fmt.Errorf("metrics.addr: %w", err))
		}
	}
	_, err = ParseDurationField("metrics.read_timeout", cfg.Metrics.ReadTimeout)
	add(err)
	_, err = ParseDurationField("metrics.write_timeout", cfg.Metrics.WriteTimeout)
	add(err)

	return errors.Join(errs...)
}

// MaintenanceDisabled reports whether a maintenance spec turns the job off.
func MaintenanceDisabled(spec string) bool {
	switch strings.ToLower(strings.TrimSpace(spec)) {
	case "off", "none", "disabled":
		return true
	}
	return false
}

func validLevel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace", "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

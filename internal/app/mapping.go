package app

import (
	"strings"
	"time"

	"alertbot/internal/bot"
	"alertbot/internal/config"
	"alertbot/internal/feed"
	"alertbot/internal/metrics"
	"alertbot/internal/monitor"
	"alertbot/internal/notifier"
	"alertbot/internal/storage"
	telegram "alertbot/internal/transport/telegram/adapter"
	logx "alertbot/pkg/logx"
)

const defaultMaintenanceSpec = "@daily"

func mapAdapterConfig(cfg *config.Config) (telegram.Config, error) {
	poll, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{
		Token:       strings.TrimSpace(cfg.Telegram.Token),
		PollTimeout: poll,
		APIURL:      strings.TrimSpace(cfg.Telegram.APIURL),
	}, nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Chat: logx.ChatConfig{
			Enabled:    l.Telegram.Enabled,
			ChatID:     l.Telegram.ChatID,
			ThreadID:   l.Telegram.ThreadID,
			MinLevel:   l.Telegram.MinLevel,
			RatePerSec: l.Telegram.RatePerSec,
		},
	}
}

func mapFeedConfig(cfg *config.Config) (feed.Config, error) {
	timeout, err := config.ParseDurationOrDefault("feed.timeout", cfg.Feed.Timeout, feed.DefaultTimeout)
	if err != nil {
		return feed.Config{}, err
	}
	return feed.Config{
		BaseURL:   strings.TrimSpace(cfg.Feed.BaseURL),
		Path:      strings.TrimSpace(cfg.Feed.Path),
		Token:     strings.TrimSpace(cfg.Feed.Token),
		Timeout:   timeout,
		UserAgent: strings.TrimSpace(cfg.Feed.UserAgent),
	}, nil
}

func mapMonitorConfig(cfg *config.Config) (monitor.Config, error) {
	iv, err := config.ParseDurationOrDefault("monitor.interval", cfg.Monitor.Interval, monitor.DefaultInterval)
	if err != nil {
		return monitor.Config{}, err
	}
	return monitor.Config{Interval: iv}, nil
}

func mapDeliveryConfig(cfg *config.Config) (notifier.Config, error) {
	timeout, err := config.ParseDurationOrDefault("delivery.send_timeout", cfg.Delivery.SendTimeout, notifier.DefaultSendTimeout)
	if err != nil {
		return notifier.Config{}, err
	}
	rps := cfg.Delivery.RatePerSec
	if rps <= 0 {
		rps = notifier.DefaultRatePerSec
	}
	return notifier.Config{
		RatePerSec:  rps,
		SendTimeout: timeout,
		ParseMode:   strings.TrimSpace(cfg.Delivery.ParseMode),
	}, nil
}

func mapBotConfig(cfg *config.Config) (bot.Config, error) {
	timeout, err := config.ParseDurationOrDefault("bot.timeout", cfg.Bot.Timeout, bot.DefaultTimeout)
	if err != nil {
		return bot.Config{}, err
	}
	return bot.Config{Workers: cfg.Bot.Workers, Timeout: timeout}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)),
		Path:        strings.TrimSpace(cfg.Storage.Path),
		BusyTimeout: busy,
	}, nil
}

// mapMaintenanceSpec returns the cron spec, or "" when maintenance is off.
func mapMaintenanceSpec(cfg *config.Config) string {
	spec := strings.TrimSpace(cfg.Storage.Maintenance)
	switch {
	case config.MaintenanceDisabled(spec):
		return ""
	case spec == "":
		return defaultMaintenanceSpec
	}
	return spec
}

func mapMetricsConfig(cfg *config.Config) (metrics.ServerConfig, error) {
	m := cfg.Metrics
	rt, err := config.ParseDurationOrDefault("metrics.read_timeout", m.ReadTimeout, 5*time.Second)
	if err != nil {
		return metrics.ServerConfig{}, err
	}
	// pprof profiles can take 30s+, so no write timeout unless configured.
	wt, err := config.ParseDurationField("metrics.write_timeout", m.WriteTimeout)
	if err != nil {
		return metrics.ServerConfig{}, err
	}
	addr := strings.TrimSpace(m.Addr)
	if addr == "" {
		addr = metrics.DefaultAddr
	}
	return metrics.ServerConfig{
		Enabled:      m.Enabled,
		Addr:         addr,
		Token:        strings.TrimSpace(m.Token),
		Pprof:        m.Pprof,
		ReadTimeout:  rt,
		WriteTimeout: wt,
	}, nil
}

package config

import (
	"sort"
	"strings"

	logx "alertbot/pkg/logx"
)

// SummarizeChange lists the sections that differ and safe fields describing
// the new values. Tokens are reported only as "<section>.token_set".
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 24)

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if ot.Token != nt.Token || trim(ot.PollTimeout) != trim(nt.PollTimeout) || trim(ot.APIURL) != trim(nt.APIURL) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_changed", ot.Token != nt.Token),
			logx.String("telegram.poll_timeout", trim(nt.PollTimeout)),
			logx.Bool("telegram.api_url_set", trim(nt.APIURL) != ""),
		)
	}

	of, nf := oldCfg.Feed, newCfg.Feed
	if of != nf {
		changed = append(changed, "feed")
		attrs = append(attrs,
			logx.String("feed.base_url", trim(nf.BaseURL)),
			logx.String("feed.path", trim(nf.Path)),
			logx.Bool("feed.token_set", trim(nf.Token) != ""),
			logx.String("feed.timeout", trim(nf.Timeout)),
		)
	}

	if trim(oldCfg.Monitor.Interval) != trim(newCfg.Monitor.Interval) {
		changed = append(changed, "monitor")
		attrs = append(attrs, logx.String("monitor.interval", trim(newCfg.Monitor.Interval)))
	}

	if oldCfg.Delivery != newCfg.Delivery {
		changed = append(changed, "delivery")
		attrs = append(attrs,
			logx.Int("delivery.rate_per_sec", newCfg.Delivery.RatePerSec),
			logx.String("delivery.send_timeout", trim(newCfg.Delivery.SendTimeout)),
			logx.String("delivery.parse_mode", trim(newCfg.Delivery.ParseMode)),
		)
	}

	if oldCfg.Bot != newCfg.Bot {
		changed = append(changed, "bot")
		attrs = append(attrs,
			logx.Int("bot.workers", newCfg.Bot.Workers),
			logx.String("bot.timeout", trim(newCfg.Bot.Timeout)),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", trim(newCfg.Storage.Driver)),
			logx.Bool("storage.path_set", trim(newCfg.Storage.Path) != ""),
			logx.String("storage.busy_timeout", trim(newCfg.Storage.BusyTimeout)),
			logx.String("storage.maintenance", trim(newCfg.Storage.Maintenance)),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	om, nm := oldCfg.Metrics, newCfg.Metrics
	if om != nm {
		changed = append(changed, "metrics")
		attrs = append(attrs,
			logx.Bool("metrics.enabled", nm.Enabled),
			logx.String("metrics.addr", trim(nm.Addr)),
			logx.Bool("metrics.token_set", trim(nm.Token) != ""),
			logx.Bool("metrics.pprof", nm.Pprof),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// RestartRequired lists changed sections that only take effect after a restart.
func RestartRequired(changed []string) []string {
	var out []string
	for _, s := range changed {
		switch s {
		case "telegram", "feed", "storage", "bot":
			out = append(out, s)
		}
	}
	return out
}

func trim(s string) string { return strings.TrimSpace(s) }

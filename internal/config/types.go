package config

// Config is the on-disk configuration. Durations are Go duration strings
// ("500ms", "10s", "1m"); empty means the component default.
//
// Secrets may come from the environment instead of the file:
//
//	ALERTBOT_TELEGRAM_TOKEN, ALERTBOT_FEED_TOKEN, ALERTBOT_STORAGE_PATH, ALERTBOT_LOG_LEVEL
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Feed     FeedConfig     `json:"feed"`
	Monitor  MonitorConfig  `json:"monitor"`
	Delivery DeliveryConfig `json:"delivery"`
	Bot      BotConfig      `json:"bot"`
	Storage  StorageConfig  `json:"storage"`
	Logging  LoggingConfig  `json:"logging"`
	Metrics  MetricsConfig  `json:"metrics"`
}

type TelegramConfig struct {
	Token       string `json:"token" env:"TELEGRAM_TOKEN, overwrite"`
	PollTimeout string `json:"poll_timeout,omitempty"`
	// APIURL points at a self-hosted Bot API server.
	APIURL string `json:"api_url,omitempty"`
}

// FeedConfig describes the alert status endpoint.
type FeedConfig struct {
	BaseURL   string `json:"base_url,omitempty"`
	Path      string `json:"path,omitempty"`
	Token     string `json:"token" env:"FEED_TOKEN, overwrite"`
	Timeout   string `json:"timeout,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

type MonitorConfig struct {
	// Interval between polls. Minimum 1s.
	Interval string `json:"interval,omitempty"`
}

// DeliveryConfig controls alert fanout to subscribers.
type DeliveryConfig struct {
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
	SendTimeout string `json:"send_timeout,omitempty"`
	ParseMode   string `json:"parse_mode,omitempty"`
}

type BotConfig struct {
	Workers int    `json:"workers,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}

// StorageConfig selects the subscription registry.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./users.db", "maintenance": "@daily" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path" env:"STORAGE_PATH, overwrite"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
	// Maintenance is a cron spec for compaction/optimize. "off" disables it.
	Maintenance string `json:"maintenance,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level" env:"LOG_LEVEL, overwrite"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram mirrors warnings into an operator chat.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// MetricsConfig controls the Prometheus/health HTTP listener.
//
// Prefer a loopback address; a non-loopback bind requires a token.
type MetricsConfig struct {
	Enabled      bool   `json:"enabled"`
	Addr         string `json:"addr,omitempty"`
	Token        string `json:"token,omitempty"` // bearer token (do not log)
	Pprof        bool   `json:"pprof,omitempty"`
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
}

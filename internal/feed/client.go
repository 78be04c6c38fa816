package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"alertbot/internal/region"
)

const (
	DefaultBaseURL = "https://api.alerts.in.ua"
	DefaultPath    = "/v1/iot/active_air_raid_alerts_by_oblast.json"
	DefaultTimeout = 10 * time.Second

	maxErrorBody = 256
)

type Config struct {
	BaseURL   string
	Path      string
	Token     string
	Timeout   time.Duration
	UserAgent string
}

// Client performs single-attempt feed requests. Retrying is the caller's
// business: the monitor simply tries again on its next cycle.
type Client struct {
	cfg  Config
	http *resty.Client
}

func New(cfg Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(cfg.Path) == "" {
		cfg.Path = DefaultPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "alertbot"
	}

	hc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", cfg.UserAgent)
	if cfg.Token != "" {
		hc.SetAuthToken(cfg.Token)
	}
	return &Client{cfg: cfg, http: hc}
}

// FetchStatuses downloads and decodes the current status string.
func (c *Client) FetchStatuses(ctx context.Context) (Statuses, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(c.cfg.Path)
	if err != nil {
		return Statuses{}, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	if resp.StatusCode() != http.StatusOK {
		body := strings.TrimSpace(string(resp.Body()))
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return Statuses{}, &HTTPError{StatusCode: resp.StatusCode(), Body: body}
	}

	var raw string
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return Statuses{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if raw == "" {
		return Statuses{}, fmt.Errorf("%w: empty status string", ErrMalformed)
	}
	return NewStatuses(raw), nil
}

// RegionStatus fetches the feed and reads a single index.
func (c *Client) RegionStatus(ctx context.Context, idx int) (region.Reading, error) {
	st, err := c.FetchStatuses(ctx)
	if err != nil {
		return region.Reading{}, err
	}
	code, ok := st.Code(idx)
	if !ok {
		return region.Reading{}, fmt.Errorf("%w: %d (feed length %d)", ErrIndexOutOfRange, idx, st.Len())
	}
	return region.Read(code), nil
}

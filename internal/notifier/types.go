package notifier

import (
	"context"
	"errors"
	"time"

	"alertbot/internal/messages"
	"alertbot/internal/region"
)

// ErrRegistry wraps failures to resolve a region's recipients.
var ErrRegistry = errors.New("notifier: resolve recipients")

const (
	DefaultRatePerSec  = 25
	DefaultSendTimeout = 10 * time.Second
)

type Config struct {
	RatePerSec  int
	SendTimeout time.Duration
	ParseMode   string
}

// Recipients resolves who should hear about a region.
type Recipients interface {
	ListEnabledSubscribers(ctx context.Context, feedIndex int) ([]int64, error)
}

// Delivery is the outcome for one recipient.
type Delivery struct {
	SubscriberID int64
	Err          error
}

// Report summarises one Notify call.
type Report struct {
	Region   region.Region
	Class    messages.Class
	Total    int
	Sent     int
	Failed   int
	Failures []Delivery
	Took     time.Duration
}

// maxReportedFailures bounds Report.Failures for very large fanouts.
const maxReportedFailures = 200

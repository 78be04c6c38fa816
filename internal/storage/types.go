package storage

import (
	"context"
	"errors"
	"time"
)

var ErrClosed = errors.New("storage closed")

type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Subscription is one subscriber's preferences. FeedIndex is nil until a
// region is chosen. New records start with notifications enabled.
type Subscription struct {
	SubscriberID         int64 `json:"id"`
	FeedIndex            *int  `json:"region,omitempty"`
	NotificationsEnabled bool  `json:"enabled"`
}

// Region returns the chosen feed index, if any.
func (s Subscription) Region() (int, bool) {
	if s.FeedIndex == nil {
		return 0, false
	}
	return *s.FeedIndex, true
}

func (s Subscription) clone() Subscription {
	if s.FeedIndex != nil {
		idx := *s.FeedIndex
		s.FeedIndex = &idx
	}
	return s
}

func newSubscription(id int64) Subscription {
	return Subscription{SubscriberID: id, NotificationsEnabled: true}
}

// Registry is the subscriber store. Every operation is atomic per subscriber.
type Registry interface {
	// GetOrCreate returns the record, creating a default one if absent.
	GetOrCreate(ctx context.Context, id int64) (Subscription, error)
	// SetRegion records the followed region, creating the record if absent.
	SetRegion(ctx context.Context, id int64, feedIndex int) error
	// ToggleNotifications flips the flag and returns the new value.
	// An absent record is created with the default (enabled) and true is returned.
	ToggleNotifications(ctx context.Context, id int64) (bool, error)
	// ListEnabledSubscribers returns ids following feedIndex with notifications on,
	// in ascending order.
	ListEnabledSubscribers(ctx context.Context, feedIndex int) ([]int64, error)
	Close() error
}

// Maintainer is implemented by drivers with periodic housekeeping.
type Maintainer interface {
	Maintain(ctx context.Context) error
}

// Stats summarises the registry; used by the status command and metrics.
type Stats struct {
	Subscribers int
	Enabled     int
	WithRegion  int
}

// StatsReader is implemented by every bundled driver.
type StatsReader interface {
	Stats(ctx context.Context) (Stats, error)
}

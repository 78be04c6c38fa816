package storage

import (
	"context"
	"slices"
	"sync"
)

// Memory is a process-local registry. The file driver builds on it.
type Memory struct {
	mu     sync.RWMutex
	subs   map[int64]Subscription
	closed bool
}

func NewMemory() *Memory {
	return &Memory{subs: map[int64]Subscription{}}
}

func (m *Memory) GetOrCreate(_ context.Context, id int64) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Subscription{}, ErrClosed
	}
	sub, _ := m.getOrCreateLocked(id)
	return sub.clone(), nil
}

func (m *Memory) SetRegion(_ context.Context, id int64, feedIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.setRegionLocked(id, feedIndex)
	return nil
}

func (m *Memory) ToggleNotifications(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}
	return m.toggleLocked(id), nil
}

func (m *Memory) ListEnabledSubscribers(_ context.Context, feedIndex int) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	var out []int64
	for id, sub := range m.subs {
		if idx, ok := sub.Region(); ok && idx == feedIndex && sub.NotificationsEnabled {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (m *Memory) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Stats{}, ErrClosed
	}
	var st Stats
	for _, sub := range m.subs {
		st.Subscribers++
		if sub.NotificationsEnabled {
			st.Enabled++
		}
		if sub.FeedIndex != nil {
			st.WithRegion++
		}
	}
	return st, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// getOrCreateLocked reports whether a record was created.
func (m *Memory) getOrCreateLocked(id int64) (Subscription, bool) {
	if sub, ok := m.subs[id]; ok {
		return sub, false
	}
	sub := newSubscription(id)
	m.subs[id] = sub
	return sub, true
}

func (m *Memory) setRegionLocked(id int64, feedIndex int) Subscription {
	sub, _ := m.getOrCreateLocked(id)
	idx := feedIndex
	sub.FeedIndex = &idx
	m.subs[id] = sub
	return sub
}

func (m *Memory) toggleLocked(id int64) bool {
	sub, created := m.getOrCreateLocked(id)
	if created {
		return true
	}
	sub.NotificationsEnabled = !sub.NotificationsEnabled
	m.subs[id] = sub
	return sub.NotificationsEnabled
}

func (m *Memory) putLocked(sub Subscription) {
	m.subs[sub.SubscriberID] = sub.clone()
}

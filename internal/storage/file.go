package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "alertbot/pkg/logx"
)

// fileRegistry keeps subscriptions in memory and persists them as:
//   - <prefix>.snapshot.json (full state, rewritten on compaction)
//   - <prefix>.journal.jsonl (one record per mutation since the snapshot)
type fileRegistry struct {
	log logx.Logger
	mem *Memory

	mu           sync.Mutex
	snapshotPath string
	journal      *os.File
	writes       int
}

const compactEvery = 1000

func openFile(cfg Config, log logx.Logger) (Registry, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	prefix := filepath.Join(dir, base)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".snapshot.json"
	journalPath := prefix + ".journal.jsonl"

	mem := NewMemory()
	if err := loadSnapshot(snapPath, mem); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if n, err := replayJournal(journalPath, mem); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	} else if n > 0 {
		log.Debug("journal replayed", logx.Int("records", n))
	}

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	f := &fileRegistry{log: log, mem: mem, snapshotPath: snapPath, journal: jf}

	// Start every session on an empty journal so appends never land after
	// a torn record from a previous crash.
	if fi, err := jf.Stat(); err != nil {
		_ = jf.Close()
		return nil, err
	} else if fi.Size() > 0 {
		if err := f.compactLocked(); err != nil {
			_ = jf.Close()
			return nil, err
		}
	}
	return f, nil
}

func (f *fileRegistry) GetOrCreate(ctx context.Context, id int64) (Subscription, error) {
	return f.mutate(id, func(m *Memory) (Subscription, bool) {
		return m.getOrCreateLocked(id)
	})
}

func (f *fileRegistry) SetRegion(ctx context.Context, id int64, feedIndex int) error {
	_, err := f.mutate(id, func(m *Memory) (Subscription, bool) {
		return m.setRegionLocked(id, feedIndex), true
	})
	return err
}

func (f *fileRegistry) ToggleNotifications(ctx context.Context, id int64) (bool, error) {
	sub, err := f.mutate(id, func(m *Memory) (Subscription, bool) {
		m.toggleLocked(id)
		return m.subs[id], true
	})
	return sub.NotificationsEnabled, err
}

func (f *fileRegistry) ListEnabledSubscribers(ctx context.Context, feedIndex int) ([]int64, error) {
	return f.mem.ListEnabledSubscribers(ctx, feedIndex)
}

func (f *fileRegistry) Stats(ctx context.Context) (Stats, error) {
	return f.mem.Stats(ctx)
}

// Maintain folds the journal into a fresh snapshot.
func (f *fileRegistry) Maintain(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.journal == nil {
		return ErrClosed
	}
	return f.compactLocked()
}

func (f *fileRegistry) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.mem.Close()
	if f.journal == nil {
		return nil
	}
	err := f.journal.Close()
	f.journal = nil
	return err
}

// mutate applies fn to the record for id and journals the result. A failed
// journal write restores the previous record.
func (f *fileRegistry) mutate(id int64, fn func(m *Memory) (Subscription, bool)) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.journal == nil {
		return Subscription{}, ErrClosed
	}

	f.mem.mu.Lock()
	prev, had := f.mem.subs[id]
	prev = prev.clone()
	sub, changed := fn(f.mem)
	sub = sub.clone()
	f.mem.mu.Unlock()

	if !changed {
		return sub, nil
	}
	if err := json.NewEncoder(f.journal).Encode(sub); err != nil {
		f.mem.mu.Lock()
		if had {
			f.mem.subs[id] = prev
		} else {
			delete(f.mem.subs, id)
		}
		f.mem.mu.Unlock()
		// Terminate a partial record so the next append starts a fresh line.
		_, _ = f.journal.Write([]byte{'\n'})
		return Subscription{}, fmt.Errorf("journal write: %w", err)
	}
	f.writes++
	if f.writes%compactEvery == 0 {
		if err := f.compactLocked(); err != nil {
			f.log.Warn("journal compaction failed", logx.Err(err))
		}
	}
	return sub, nil
}

func (f *fileRegistry) compactLocked() error {
	f.mem.mu.RLock()
	subs := make([]Subscription, 0, len(f.mem.subs))
	for _, sub := range f.mem.subs {
		subs = append(subs, sub.clone())
	}
	f.mem.mu.RUnlock()

	tmp := f.snapshotPath + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(out).Encode(subs); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, f.snapshotPath); err != nil {
		return err
	}
	if err := f.journal.Truncate(0); err != nil {
		return err
	}
	_, err = f.journal.Seek(0, io.SeekEnd)
	return err
}

func loadSnapshot(path string, mem *Memory) error {
	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fh.Close()
	var subs []Subscription
	if err := json.NewDecoder(fh).Decode(&subs); err != nil {
		return err
	}
	for _, sub := range subs {
		mem.putLocked(sub)
	}
	return nil
}

// replayJournal applies journal records. Lines that do not decode are skipped.
func replayJournal(path string, mem *Memory) (int, error) {
	fh, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer fh.Close()
	n := 0
	sc := bufio.NewScanner(fh)
	for sc.Scan() {
		var sub Subscription
		if err := json.Unmarshal(sc.Bytes(), &sub); err != nil || sub.SubscriberID == 0 {
			continue
		}
		mem.putLocked(sub)
		n++
	}
	return n, sc.Err()
}

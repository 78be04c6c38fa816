package monitor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"alertbot/internal/eventbus"
	"alertbot/internal/feed"
	"alertbot/internal/messages"
	"alertbot/internal/notifier"
	"alertbot/internal/region"
	"alertbot/internal/storage"
	kit "alertbot/internal/transport"
	logx "alertbot/pkg/logx"
)

// scriptedSource replays feed answers in order; an empty string is a failed fetch.
type scriptedSource struct {
	mu    sync.Mutex
	steps []string
}

var errFeedDown = errors.New("feed down")

func (s *scriptedSource) FetchStatuses(context.Context) (feed.Statuses, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.steps) == 0 {
		return feed.Statuses{}, errFeedDown
	}
	raw := s.steps[0]
	s.steps = s.steps[1:]
	if raw == "" {
		return feed.Statuses{}, errFeedDown
	}
	return feed.NewStatuses(raw), nil
}

func (s *scriptedSource) push(raw ...string) {
	s.mu.Lock()
	s.steps = append(s.steps, raw...)
	s.mu.Unlock()
}

type notifyCall struct {
	Region string
	Class  messages.Class
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
	fail  map[string]error
	panic map[string]bool
}

func (n *recordingNotifier) Notify(_ context.Context, r region.Region, class messages.Class) (notifier.Report, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{Region: r.Key, Class: class})
	if n.panic[r.Key] {
		panic("notifier bug")
	}
	if err := n.fail[r.Key]; err != nil {
		return notifier.Report{}, err
	}
	return notifier.Report{Region: r, Class: class}, nil
}

func (n *recordingNotifier) take() []notifyCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.calls
	n.calls = nil
	return out
}

// feedWith returns a 27-char all-N feed with the given index overrides.
func feedWith(over map[int]byte) string {
	b := []byte(strings.Repeat("N", 27))
	for i, c := range over {
		b[i] = c
	}
	return string(b)
}

func newTestMonitor(src Source, n Notifier) *Monitor {
	return New(Config{Interval: time.Millisecond}, region.Default(), src, n, logx.Nop())
}

func TestClassifyTransition(t *testing.T) {
	N, A, P, U := region.StatusNone, region.StatusActive, region.StatusPartial, region.StatusUnknown
	tests := []struct {
		prev, cur region.Status
		want      messages.Class
		ok        bool
	}{
		{N, A, messages.ClassAlertStart, true},
		{N, P, messages.ClassAlertStart, true},
		{A, N, messages.ClassAlertEnd, true},
		{P, N, messages.ClassAlertEnd, true},
		{A, P, 0, false},
		{P, A, 0, false},
		{N, N, 0, false},
		{A, A, 0, false},
		{N, U, 0, false},
		{U, A, 0, false},
		{U, N, 0, false},
		{A, U, 0, false},
	}
	for _, tt := range tests {
		got, ok := ClassifyTransition(tt.prev, tt.cur)
		require.Equal(t, tt.ok, ok, "%s -> %s", tt.prev, tt.cur)
		require.Equal(t, tt.want, got, "%s -> %s", tt.prev, tt.cur)
	}
}

func TestBaselineNeverNotifies(t *testing.T) {
	src := &scriptedSource{}
	n := &recordingNotifier{}
	m := newTestMonitor(src, n)
	require.Equal(t, StateUninitialized, m.State())

	src.push(feedWith(map[int]byte{4: 'A', 9: 'P', 21: 'A'}))
	rep := m.RunCycle(context.Background())

	require.NoError(t, rep.Err)
	require.True(t, rep.Baseline)
	require.Empty(t, n.take())
	require.Equal(t, StateRunning, m.State())
	st, ok := m.statusOf(4)
	require.True(t, ok)
	require.Equal(t, region.StatusActive, st)
}

func TestFailedFirstFetchDefersBaseline(t *testing.T) {
	src := &scriptedSource{}
	n := &recordingNotifier{}
	m := newTestMonitor(src, n)

	src.push("", feedWith(map[int]byte{4: 'A'}))
	rep := m.RunCycle(context.Background())
	require.ErrorIs(t, rep.Err, errFeedDown)
	require.Equal(t, StateUninitialized, m.State())

	rep = m.RunCycle(context.Background())
	require.True(t, rep.Baseline)
	require.Empty(t, n.take())
}

func TestSameCodeTwiceIsSilent(t *testing.T) {
	src := &scriptedSource{}
	n := &recordingNotifier{}
	m := newTestMonitor(src, n)

	f := feedWith(map[int]byte{4: 'A', 10: 'P'})
	src.push(f, f, f)
	for i := 0; i < 3; i++ {
		m.RunCycle(context.Background())
	}
	require.Empty(t, n.take())
}

func TestActivePartialFlipIsSilent(t *testing.T) {
	src := &scriptedSource{}
	n := &recordingNotifier{}
	m := newTestMonitor(src, n)

	src.push(
		feedWith(map[int]byte{4: 'A'}),
		feedWith(map[int]byte{4: 'P'}),
		feedWith(map[int]byte{4: 'A'}),
	)
	for i := 0; i < 3; i++ {
		m.RunCycle(context.Background())
	}
	require.Empty(t, n.take())
	st, _ := m.statusOf(4)
	require.Equal(t, region.StatusActive, st)
}

func TestFlappingNotifiesPerTransition(t *testing.T) {
	src := &scriptedSource{}
	n := &recordingNotifier{}
	m := newTestMonitor(src, n)

	src.push(
		feedWith(nil),
		feedWith(map[int]byte{13: 'A'}),
		feedWith(nil),
		feedWith(map[int]byte{13: 'P'}),
	)
	for i := 0; i < 4; i++ {
		m.RunCycle(context.Background())
	}
	require.Equal(t, []notifyCall{
		{"lviv", messages.ClassAlertStart},
		{"lviv", messages.ClassAlertEnd},
		{"lviv", messages.ClassAlertStart},
	}, n.take())
}

func TestShortFeedFailsOpenToNone(t *testing.T) {
	src := &scriptedSource{}
	n := &recordingNotifier{}
	m := newTestMonitor(src, n)

	src.push(feedWith(map[int]byte{26: 'A'}), feedWith(nil)[:20])
	m.RunCycle(context.Background())
	rep := m.RunCycle(context.Background())

	require.NoError(t, rep.Err)
	// chernihiv (26) and everything from 20 on read as None.
	require.Equal(t, []notifyCall{{"chernihiv", messages.ClassAlertEnd}}, n.take())
	st, _ := m.statusOf(26)
	require.Equal(t, region.StatusNone, st)
}

func TestShortFeedWarnsOnce(t *testing.T) {
	var buf bytes.Buffer
	src := &scriptedSource{}
	m := New(Config{Interval: time.Millisecond}, region.Default(), src, &recordingNotifier{}, logx.NewWriter(&buf, "info"))

	short := feedWith(nil)[:20]
	src.push(short, short, short, feedWith(nil), short)
	for range 5 {
		m.RunCycle(context.Background())
	}

	out := buf.String()
	require.Equal(t, 2, strings.Count(out, "feed shorter than region catalog"))
	require.Equal(t, 1, strings.Count(out, "feed length back to normal"))
}

func TestUnknownCodeParticipatesInNoTransition(t *testing.T) {
	src := &scriptedSource{}
	n := &recordingNotifier{}
	m := newTestMonitor(src, n)

	src.push(
		feedWith(nil),
		feedWith(map[int]byte{5: 'X'}),
		feedWith(map[int]byte{5: 'A'}),
	)
	for i := 0; i < 3; i++ {
		m.RunCycle(context.Background())
	}
	// None -> Unknown -> Active: the snapshot holds Unknown, so no start fires.
	require.Empty(t, n.take())
	st, _ := m.statusOf(5)
	require.Equal(t, region.StatusActive, st)
}

func TestFanoutFailureDoesNotStopOtherRegions(t *testing.T) {
	src := &scriptedSource{}
	n := &recordingNotifier{
		fail:  map[string]error{"volyn": notifier.ErrRegistry},
		panic: map[string]bool{"vinnytsia": true},
	}
	m := newTestMonitor(src, n)

	src.push(feedWith(nil), feedWith(map[int]byte{1: 'A', 2: 'A', 3: 'A'}))
	m.RunCycle(context.Background())
	rep := m.RunCycle(context.Background())

	require.NoError(t, rep.Err)
	require.Len(t, rep.Transitions, 3)
	require.Equal(t, 2, rep.FanoutErrs)
	require.Len(t, rep.Fanouts, 1)
	require.Equal(t, "dnipro", rep.Fanouts[0].Region.Key)
	require.Len(t, n.take(), 3)
}

func TestCyclePanicIsRecovered(t *testing.T) {
	m := newTestMonitor(panicSource{}, &recordingNotifier{})
	rep := m.RunCycle(context.Background())
	require.ErrorIs(t, rep.Err, ErrCyclePanic)
	require.Equal(t, "panic", rep.Result())
}

type panicSource struct{}

func (panicSource) FetchStatuses(context.Context) (feed.Statuses, error) { panic("decoder bug") }

type failingSender struct {
	mu   sync.Mutex
	sent map[int64]int
	fail map[int64]bool
}

func (s *failingSender) SendText(_ context.Context, to kit.ChatTarget, _ string, _ *kit.SendOptions) (kit.MessageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[to.ChatID] {
		return kit.MessageRef{}, errors.New("forbidden")
	}
	s.sent[to.ChatID]++
	return kit.MessageRef{}, nil
}

// TestDonetskScenario walks the documented example end to end through the
// real fanout and an in-memory registry.
func TestDonetskScenario(t *testing.T) {
	ctx := context.Background()
	const u1, u2, u3 = 1001, 1002, 1003

	reg := storage.NewMemory()
	require.NoError(t, reg.SetRegion(ctx, u1, 4))
	require.NoError(t, reg.SetRegion(ctx, u2, 4))
	_, err := reg.ToggleNotifications(ctx, u2)
	require.NoError(t, err)
	// u3 follows Kharkiv and cannot receive messages.
	require.NoError(t, reg.SetRegion(ctx, u3, 21))

	sender := &failingSender{sent: map[int64]int{}, fail: map[int64]bool{u3: true}}
	fan := notifier.New(notifier.Config{}, sender, reg, logx.Nop())
	src := &scriptedSource{}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(64)
	defer unsub()
	m := New(Config{}, region.Default(), src, fan, logx.Nop(), WithBus(bus))

	cycle := func(raw string) CycleReport {
		src.push(raw)
		return m.RunCycle(ctx)
	}

	rep := cycle(strings.Repeat("N", 27))
	require.True(t, rep.Baseline)
	require.Zero(t, sender.sent[u1])

	rep = cycle(feedWith(map[int]byte{4: 'A', 21: 'A'}))
	require.Len(t, rep.Fanouts, 2)
	require.Equal(t, 1, sender.sent[u1])
	require.Zero(t, sender.sent[u2])
	require.Equal(t, 1, rep.Fanouts[1].Failed, "u3 failure is isolated")

	cycle(feedWith(map[int]byte{4: 'P', 21: 'A'}))
	require.Equal(t, 1, sender.sent[u1])
	st, _ := m.statusOf(4)
	require.Equal(t, region.StatusPartial, st)

	cycle(feedWith(map[int]byte{21: 'A'}))
	require.Equal(t, 2, sender.sent[u1])

	rep = cycle("")
	require.Error(t, rep.Err)
	st, _ = m.statusOf(4)
	require.Equal(t, region.StatusNone, st)
	require.Equal(t, 2, sender.sent[u1])

	cycle(feedWith(map[int]byte{4: 'A', 21: 'A'}))
	require.Equal(t, 3, sender.sent[u1])
	require.Zero(t, sender.sent[u2])

	var transitions int
	for {
		select {
		case e := <-events:
			if e.Type == eventbus.TypeTransition {
				transitions++
			}
			continue
		default:
		}
		break
	}
	require.Equal(t, 4, transitions)
}

func TestStartStop(t *testing.T) {
	src := &scriptedSource{}
	src.push(feedWith(nil), feedWith(nil), feedWith(map[int]byte{9: 'A'}))
	n := &recordingNotifier{}

	cycles := make(chan CycleReport, 128)
	m := New(Config{Interval: time.Millisecond}, region.Default(), src, n, logx.Nop(),
		WithCycleHook(func(r CycleReport) {
			select {
			case cycles <- r:
			default:
			}
		}))

	m.Start(context.Background())
	m.Start(context.Background())

	require.Eventually(t, func() bool {
		n.mu.Lock()
		defer n.mu.Unlock()
		return len(n.calls) == 1
	}, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx))
	require.NoError(t, m.Stop(ctx))
	require.Equal(t, []notifyCall{{"kyiv_city", messages.ClassAlertStart}}, n.take())
	require.NotEmpty(t, cycles)
}

// blockingNotifier holds every fanout until its context ends.
type blockingNotifier struct {
	entered chan struct{}
	once    sync.Once
}

func (n *blockingNotifier) Notify(ctx context.Context, r region.Region, class messages.Class) (notifier.Report, error) {
	n.once.Do(func() { close(n.entered) })
	<-ctx.Done()
	return notifier.Report{Region: r, Class: class}, ctx.Err()
}

func TestStopCutsOffInFlightFanout(t *testing.T) {
	src := &scriptedSource{}
	src.push(feedWith(nil), feedWith(map[int]byte{9: 'A'}))
	n := &blockingNotifier{entered: make(chan struct{})}
	m := newTestMonitor(src, n)

	m.Start(context.Background())
	select {
	case <-n.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("fanout never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, m.Stop(ctx))
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestSetInterval(t *testing.T) {
	m := newTestMonitor(&scriptedSource{}, &recordingNotifier{})
	m.SetInterval(0)
	require.Equal(t, DefaultInterval, m.Interval())
	m.SetInterval(time.Minute)
	require.Equal(t, time.Minute, m.Interval())
}

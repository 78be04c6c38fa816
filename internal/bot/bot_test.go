package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"alertbot/internal/messages"
	"alertbot/internal/region"
	"alertbot/internal/storage"
	kit "alertbot/internal/transport"
	logx "alertbot/pkg/logx"
)

type sent struct {
	To   kit.ChatTarget
	Text string
	KB   *kit.Keyboard
}

type edit struct {
	Ref  kit.MessageRef
	Text string
	KB   *kit.Keyboard
}

type answer struct {
	ID    string
	Text  string
	Alert bool
}

type fakeMessenger struct {
	mu      sync.Mutex
	sent    []sent
	edits   []edit
	kbEdits []edit
	deletes []kit.MessageRef
	answers []answer
}

func (f *fakeMessenger) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := sent{To: to, Text: text}
	if opt != nil {
		s.KB = opt.Keyboard
	}
	f.sent = append(f.sent, s)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeMessenger) EditText(_ context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := edit{Ref: ref, Text: text}
	if opt != nil {
		e.KB = opt.Keyboard
	}
	f.edits = append(f.edits, e)
	return nil
}

func (f *fakeMessenger) EditKeyboard(_ context.Context, ref kit.MessageRef, kb *kit.Keyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kbEdits = append(f.kbEdits, edit{Ref: ref, KB: kb})
	return nil
}

func (f *fakeMessenger) DeleteMessage(_ context.Context, ref kit.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, ref)
	return nil
}

func (f *fakeMessenger) AnswerCallback(_ context.Context, id string, text string, showAlert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, answer{ID: id, Text: text, Alert: showAlert})
	return nil
}

func (f *fakeMessenger) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeStatus struct {
	reading region.Reading
	err     error
	panics  bool
}

func (f *fakeStatus) RegionStatus(_ context.Context, _ int) (region.Reading, error) {
	if f.panics {
		panic("lookup exploded")
	}
	return f.reading, f.err
}

type brokenRegistry struct{}

var errBroken = errors.New("disk on fire")

func (brokenRegistry) GetOrCreate(context.Context, int64) (storage.Subscription, error) {
	return storage.Subscription{}, errBroken
}
func (brokenRegistry) SetRegion(context.Context, int64, int) error { return errBroken }
func (brokenRegistry) ToggleNotifications(context.Context, int64) (bool, error) {
	return false, errBroken
}

const user = int64(42)

func textUpdate(text string) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ID: 1, ChatID: user, FromID: user, Text: text}}
}

func callbackUpdate(data string) kit.Update {
	return kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "cb-1", ChatID: user, FromID: user, MessageID: 7, Data: data}}
}

func newRouter(t *testing.T, status StatusLookup) (*Router, *fakeMessenger, *storage.Memory) {
	t.Helper()
	msgr := &fakeMessenger{}
	reg := storage.NewMemory()
	if status == nil {
		status = &fakeStatus{reading: region.Read('N')}
	}
	return New(Config{Workers: 2, Timeout: time.Second}, msgr, reg, status, logx.Nop()), msgr, reg
}

func TestParseEvent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		up     kit.Update
		kind   EventKind
		key    string
		origin PickerOrigin
	}{
		{"start", textUpdate("/start"), EventStart, "", 0},
		{"start with payload", textUpdate("/start ref123"), EventStart, "", 0},
		{"start addressed", textUpdate("/start@alert_bot"), EventStart, "", 0},
		{"check alert button", textUpdate(messages.ButtonCheckAlert), EventCheckAlert, "", 0},
		{"settings button", textUpdate(messages.ButtonSettings), EventSettings, "", 0},
		{"free text", textUpdate("hello"), EventUnknown, "", 0},
		{"start picker", callbackUpdate("start_region:lviv"), EventSelectRegion, "lviv", PickerStart},
		{"settings picker", callbackUpdate("settings_region:odesa"), EventSelectRegion, "odesa", PickerSettings},
		{"check status", callbackUpdate("check_status"), EventCheckStatus, "", 0},
		{"change region", callbackUpdate("change_region"), EventChangeRegion, "", 0},
		{"toggle", callbackUpdate("toggle_notifications"), EventToggleNotifications, "", 0},
		{"garbage callback", callbackUpdate("bogus:1"), EventUnknown, "", 0},
		{"empty update", kit.Update{}, EventUnknown, "", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ev := ParseEvent(tc.up)
			require.Equal(t, tc.kind, ev.Kind)
			require.Equal(t, tc.key, ev.RegionKey)
			require.Equal(t, tc.origin, ev.Origin)
		})
	}
}

func TestRegionPickerLayout(t *testing.T) {
	t.Parallel()

	kb := regionPicker(region.Default(), PickerSettings)
	require.True(t, kb.Inline)
	require.Len(t, kb.Rows, 9)
	total := 0
	for i, row := range kb.Rows {
		if i < len(kb.Rows)-1 {
			require.Len(t, row, pickerColumns)
		}
		total += len(row)
	}
	require.Equal(t, region.Default().Len(), total)
	require.Equal(t, "settings_region:volyn", kb.Rows[0][0].Data)
	require.Equal(t, "Волинська область", kb.Rows[0][0].Text)
}

func TestStartCreatesSubscriberAndSendsPicker(t *testing.T) {
	t.Parallel()
	r, msgr, reg := newRouter(t, nil)

	require.NoError(t, r.Handle(context.Background(), textUpdate("/start")))

	require.Len(t, msgr.sent, 2)
	require.False(t, msgr.sent[0].KB.Inline)
	require.Equal(t, messages.ButtonCheckAlert, msgr.sent[0].KB.Rows[0][0].Text)
	require.True(t, msgr.sent[1].KB.Inline)
	require.Equal(t, "start_region:volyn", msgr.sent[1].KB.Rows[0][0].Data)

	sub, err := reg.GetOrCreate(context.Background(), user)
	require.NoError(t, err)
	require.True(t, sub.NotificationsEnabled)
	_, ok := sub.Region()
	require.False(t, ok)
}

func TestSelectRegionFromStart(t *testing.T) {
	t.Parallel()
	r, msgr, reg := newRouter(t, nil)

	require.NoError(t, r.Handle(context.Background(), callbackUpdate("start_region:donetsk")))

	require.Len(t, msgr.edits, 1)
	require.Equal(t, kit.MessageRef{ChatID: user, MessageID: 7}, msgr.edits[0].Ref)
	require.Equal(t, messages.Subscribed("Донецька область"), msgr.edits[0].Text)
	require.Equal(t, "check_status", msgr.edits[0].KB.Rows[0][0].Data)
	require.Equal(t, []answer{{ID: "cb-1"}}, msgr.answers)

	ids, err := reg.ListEnabledSubscribers(context.Background(), 4)
	require.NoError(t, err)
	require.Equal(t, []int64{user}, ids)
}

func TestSelectRegionFromSettings(t *testing.T) {
	t.Parallel()
	r, msgr, _ := newRouter(t, nil)

	require.NoError(t, r.Handle(context.Background(), callbackUpdate("settings_region:kharkiv")))

	require.Equal(t, []answer{{ID: "cb-1", Text: messages.RegionChanged}}, msgr.answers)
	require.Equal(t, []kit.MessageRef{{ChatID: user, MessageID: 7}}, msgr.deletes)
	require.Len(t, msgr.sent, 1)
	require.Equal(t, messages.Settings("Харківська область", true), msgr.sent[0].Text)
}

func TestSelectUnknownRegion(t *testing.T) {
	t.Parallel()
	r, msgr, reg := newRouter(t, nil)

	require.NoError(t, r.Handle(context.Background(), callbackUpdate("start_region:atlantis")))

	require.Equal(t, []answer{{ID: "cb-1", Text: messages.UnknownRegion, Alert: true}}, msgr.answers)
	require.Empty(t, msgr.edits)
	st, err := reg.Stats(context.Background())
	require.NoError(t, err)
	require.Zero(t, st.Subscribers)
}

func TestCheckStatus(t *testing.T) {
	t.Parallel()

	t.Run("no region", func(t *testing.T) {
		t.Parallel()
		r, msgr, _ := newRouter(t, nil)
		require.NoError(t, r.Handle(context.Background(), callbackUpdate("check_status")))
		require.Equal(t, []answer{{ID: "cb-1", Text: messages.RegionRequired, Alert: true}}, msgr.answers)
		require.Empty(t, msgr.edits)
	})

	t.Run("active alert", func(t *testing.T) {
		t.Parallel()
		r, msgr, reg := newRouter(t, &fakeStatus{reading: region.Read('A')})
		require.NoError(t, reg.SetRegion(context.Background(), user, 13))

		require.NoError(t, r.Handle(context.Background(), callbackUpdate("check_status")))

		lviv, _ := region.Default().ByKey("lviv")
		require.Len(t, msgr.edits, 1)
		require.Equal(t, messages.ManualStatus(lviv, region.Read('A'), nil), msgr.edits[0].Text)
		require.Nil(t, msgr.edits[0].KB)
	})
}

func TestCheckAlertText(t *testing.T) {
	t.Parallel()

	t.Run("no region", func(t *testing.T) {
		t.Parallel()
		r, msgr, _ := newRouter(t, nil)
		require.NoError(t, r.Handle(context.Background(), textUpdate(messages.ButtonCheckAlert)))
		require.Len(t, msgr.sent, 1)
		require.Equal(t, messages.RegionRequiredText, msgr.sent[0].Text)
	})

	t.Run("feed failure", func(t *testing.T) {
		t.Parallel()
		r, msgr, reg := newRouter(t, &fakeStatus{err: errors.New("timeout")})
		require.NoError(t, reg.SetRegion(context.Background(), user, 9))

		require.NoError(t, r.Handle(context.Background(), textUpdate(messages.ButtonCheckAlert)))

		require.Len(t, msgr.sent, 1)
		require.Equal(t, messages.ManualStatus(region.Region{}, region.Reading{}, errors.New("x")), msgr.sent[0].Text)
		require.Equal(t, messages.ButtonSettings, msgr.sent[0].KB.Rows[0][1].Text)
	})
}

func TestSettingsAndToggle(t *testing.T) {
	t.Parallel()
	r, msgr, reg := newRouter(t, nil)
	ctx := context.Background()

	require.NoError(t, r.Handle(ctx, textUpdate(messages.ButtonSettings)))
	require.Len(t, msgr.sent, 1)
	require.Equal(t, messages.Settings("", true), msgr.sent[0].Text)
	require.Equal(t, messages.ToggleButton(true), msgr.sent[0].KB.Rows[1][0].Text)

	require.NoError(t, r.Handle(ctx, callbackUpdate("toggle_notifications")))
	require.Len(t, msgr.kbEdits, 1)
	require.Equal(t, messages.ToggleButton(false), msgr.kbEdits[0].KB.Rows[1][0].Text)
	require.Equal(t, messages.NotificationsOff, msgr.answers[0].Text)

	sub, err := reg.GetOrCreate(ctx, user)
	require.NoError(t, err)
	require.False(t, sub.NotificationsEnabled)

	require.NoError(t, r.Handle(ctx, callbackUpdate("change_region")))
	require.Len(t, msgr.edits, 1)
	require.Equal(t, messages.PickRegionSettings, msgr.edits[0].Text)
	require.Equal(t, "settings_region:volyn", msgr.edits[0].KB.Rows[0][0].Data)
}

func TestRegistryFailureAnswersTemporaryFailure(t *testing.T) {
	t.Parallel()
	msgr := &fakeMessenger{}
	r := New(Config{}, msgr, brokenRegistry{}, &fakeStatus{}, logx.Nop())

	err := r.Handle(context.Background(), callbackUpdate("toggle_notifications"))
	require.ErrorIs(t, err, errBroken)
	require.Equal(t, []answer{{ID: "cb-1", Text: messages.TemporaryFailure, Alert: true}}, msgr.answers)

	err = r.Handle(context.Background(), textUpdate("/start"))
	require.ErrorIs(t, err, errBroken)
	require.Len(t, msgr.sent, 1)
	require.Equal(t, messages.TemporaryFailure, msgr.sent[0].Text)
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	t.Parallel()
	r, _, reg := newRouter(t, &fakeStatus{panics: true})
	require.NoError(t, reg.SetRegion(context.Background(), user, 1))

	err := r.Handle(context.Background(), callbackUpdate("check_status"))
	require.ErrorContains(t, err, "panic")
}

func TestUnknownCallbackIsAcknowledged(t *testing.T) {
	t.Parallel()
	r, msgr, _ := newRouter(t, nil)

	require.NoError(t, r.Handle(context.Background(), callbackUpdate("legacy_button")))
	require.Equal(t, []answer{{ID: "cb-1"}}, msgr.answers)

	require.NoError(t, r.Handle(context.Background(), textUpdate("what")))
	require.Empty(t, msgr.sent)
}

func TestRunDrainsUntilClosed(t *testing.T) {
	t.Parallel()
	r, msgr, _ := newRouter(t, nil)

	updates := make(chan kit.Update, 8)
	for range 4 {
		updates <- textUpdate(messages.ButtonSettings)
	}
	close(updates)

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background(), updates) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the channel closed")
	}
	require.Equal(t, 4, msgr.sentCount())
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	r, _, _ := newRouter(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, make(chan kit.Update)) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

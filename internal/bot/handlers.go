package bot

import (
	"context"
	"fmt"
	"strconv"

	"alertbot/internal/messages"
	kit "alertbot/internal/transport"
	logx "alertbot/pkg/logx"
)

func (r *Router) dispatch(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case EventStart:
		return r.onStart(ctx, ev)
	case EventCheckAlert:
		return r.onCheckAlert(ctx, ev)
	case EventSettings:
		return r.sendSettings(ctx, ev)
	case EventSelectRegion:
		return r.onSelectRegion(ctx, ev)
	case EventCheckStatus:
		return r.onCheckStatus(ctx, ev)
	case EventChangeRegion:
		return r.onChangeRegion(ctx, ev)
	case EventToggleNotifications:
		return r.onToggle(ctx, ev)
	default:
		if ev.IsCallback() {
			return r.msgr.AnswerCallback(ctx, ev.CallbackID, "", false)
		}
		return nil
	}
}

func (r *Router) onStart(ctx context.Context, ev Event) error {
	if _, err := r.reg.GetOrCreate(ctx, ev.FromID); err != nil {
		return r.fail(ctx, ev, err)
	}
	to := kit.ChatTarget{ChatID: ev.ChatID}
	if _, err := r.msgr.SendText(ctx, to, messages.PickRegionStart, &kit.SendOptions{Keyboard: mainKeyboard()}); err != nil {
		return fmt.Errorf("send main keyboard: %w", err)
	}
	if _, err := r.msgr.SendText(ctx, to, messages.PickRegionStart, &kit.SendOptions{Keyboard: regionPicker(r.catalog, PickerStart)}); err != nil {
		return fmt.Errorf("send region picker: %w", err)
	}
	return nil
}

func (r *Router) onSelectRegion(ctx context.Context, ev Event) error {
	reg, ok := r.catalog.ByKey(ev.RegionKey)
	if !ok {
		return r.msgr.AnswerCallback(ctx, ev.CallbackID, messages.UnknownRegion, true)
	}
	if err := r.reg.SetRegion(ctx, ev.FromID, reg.FeedIndex); err != nil {
		return r.fail(ctx, ev, err)
	}

	if ev.Origin == PickerSettings {
		if err := r.msgr.AnswerCallback(ctx, ev.CallbackID, messages.RegionChanged, false); err != nil {
			return err
		}
		if err := r.msgr.DeleteMessage(ctx, r.ref(ev)); err != nil {
			r.log.Debug("delete picker failed", logx.Int64("chat_id", ev.ChatID), logx.Err(err))
		}
		return r.sendSettings(ctx, ev)
	}

	if err := r.msgr.EditText(ctx, r.ref(ev), messages.Subscribed(reg.Title), &kit.SendOptions{Keyboard: checkStatusKeyboard()}); err != nil {
		return fmt.Errorf("edit picker: %w", err)
	}
	return r.msgr.AnswerCallback(ctx, ev.CallbackID, "", false)
}

func (r *Router) onCheckStatus(ctx context.Context, ev Event) error {
	sub, err := r.reg.GetOrCreate(ctx, ev.FromID)
	if err != nil {
		return r.fail(ctx, ev, err)
	}
	idx, ok := sub.Region()
	if !ok {
		return r.msgr.AnswerCallback(ctx, ev.CallbackID, messages.RegionRequired, true)
	}
	if err := r.msgr.EditText(ctx, r.ref(ev), r.manualStatus(ctx, idx), nil); err != nil {
		return fmt.Errorf("edit status: %w", err)
	}
	return r.msgr.AnswerCallback(ctx, ev.CallbackID, "", false)
}

func (r *Router) onCheckAlert(ctx context.Context, ev Event) error {
	sub, err := r.reg.GetOrCreate(ctx, ev.FromID)
	if err != nil {
		return r.fail(ctx, ev, err)
	}
	text := messages.RegionRequiredText
	if idx, ok := sub.Region(); ok {
		text = r.manualStatus(ctx, idx)
	}
	_, err = r.msgr.SendText(ctx, kit.ChatTarget{ChatID: ev.ChatID}, text, &kit.SendOptions{Keyboard: mainKeyboard()})
	return err
}

func (r *Router) sendSettings(ctx context.Context, ev Event) error {
	sub, err := r.reg.GetOrCreate(ctx, ev.FromID)
	if err != nil {
		return r.fail(ctx, ev, err)
	}
	title := ""
	if idx, ok := sub.Region(); ok {
		if reg, found := r.catalog.ByFeedIndex(idx); found {
			title = reg.Title
		} else {
			title = "#" + strconv.Itoa(idx)
		}
	}
	text := messages.Settings(title, sub.NotificationsEnabled)
	_, err = r.msgr.SendText(ctx, kit.ChatTarget{ChatID: ev.ChatID}, text, &kit.SendOptions{Keyboard: settingsKeyboard(sub.NotificationsEnabled)})
	return err
}

func (r *Router) onChangeRegion(ctx context.Context, ev Event) error {
	if err := r.msgr.EditText(ctx, r.ref(ev), messages.PickRegionSettings, &kit.SendOptions{Keyboard: regionPicker(r.catalog, PickerSettings)}); err != nil {
		return fmt.Errorf("edit picker: %w", err)
	}
	return r.msgr.AnswerCallback(ctx, ev.CallbackID, "", false)
}

// onToggle swaps the keyboard only; the panel text keeps its old state line.
func (r *Router) onToggle(ctx context.Context, ev Event) error {
	enabled, err := r.reg.ToggleNotifications(ctx, ev.FromID)
	if err != nil {
		return r.fail(ctx, ev, err)
	}
	if err := r.msgr.EditKeyboard(ctx, r.ref(ev), settingsKeyboard(enabled)); err != nil {
		return fmt.Errorf("edit keyboard: %w", err)
	}
	answer := messages.NotificationsOff
	if enabled {
		answer = messages.NotificationsOn
	}
	return r.msgr.AnswerCallback(ctx, ev.CallbackID, answer, false)
}

func (r *Router) manualStatus(ctx context.Context, idx int) string {
	reg, _ := r.catalog.ByFeedIndex(idx)
	reading, err := r.status.RegionStatus(ctx, idx)
	if err != nil {
		r.log.Warn("manual status lookup failed", logx.Int("feed_index", idx), logx.Err(err))
	}
	return messages.ManualStatus(reg, reading, err)
}

// fail tells the user the request could not be served and returns err for the request log.
func (r *Router) fail(ctx context.Context, ev Event, err error) error {
	if ev.IsCallback() {
		_ = r.msgr.AnswerCallback(ctx, ev.CallbackID, messages.TemporaryFailure, true)
	} else {
		_, _ = r.msgr.SendText(ctx, kit.ChatTarget{ChatID: ev.ChatID}, messages.TemporaryFailure, nil)
	}
	return fmt.Errorf("registry: %w", err)
}

func (r *Router) ref(ev Event) kit.MessageRef {
	return kit.MessageRef{ChatID: ev.ChatID, MessageID: ev.MessageID}
}

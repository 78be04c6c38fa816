package bot

import (
	"strings"

	"alertbot/internal/messages"
	kit "alertbot/internal/transport"
)

// EventKind is the closed set of interactions the bot understands.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventStart
	EventCheckAlert
	EventSettings
	EventSelectRegion
	EventCheckStatus
	EventChangeRegion
	EventToggleNotifications
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventCheckAlert:
		return "check_alert"
	case EventSettings:
		return "settings"
	case EventSelectRegion:
		return "select_region"
	case EventCheckStatus:
		return "check_status"
	case EventChangeRegion:
		return "change_region"
	case EventToggleNotifications:
		return "toggle_notifications"
	default:
		return "unknown"
	}
}

// PickerOrigin tells which screen a region picker belongs to.
type PickerOrigin int

const (
	PickerStart PickerOrigin = iota + 1
	PickerSettings
)

// Callback data. Region pickers append ":<region key>".
const (
	dataStartRegion    = "start_region"
	dataSettingsRegion = "settings_region"
	dataCheckStatus    = "check_status"
	dataChangeRegion   = "change_region"
	dataToggle         = "toggle_notifications"
)

func (o PickerOrigin) prefix() string {
	if o == PickerSettings {
		return dataSettingsRegion
	}
	return dataStartRegion
}

// Event is a parsed inbound update.
type Event struct {
	Kind       EventKind
	ChatID     int64
	FromID     int64
	MessageID  int
	CallbackID string
	// RegionKey and Origin are set for EventSelectRegion.
	RegionKey string
	Origin    PickerOrigin
	Raw       string
}

// IsCallback reports whether the event came from an inline button.
func (e Event) IsCallback() bool { return e.CallbackID != "" }

// ParseEvent maps an update onto the closed event set.
func ParseEvent(up kit.Update) Event {
	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message == nil {
			return Event{}
		}
		m := up.Message
		ev := Event{ChatID: m.ChatID, FromID: m.FromID, MessageID: m.ID, Raw: m.Text}
		ev.Kind = parseText(m.Text)
		return ev
	case kit.UpdateCallback:
		if up.Callback == nil {
			return Event{}
		}
		cb := up.Callback
		ev := Event{ChatID: cb.ChatID, FromID: cb.FromID, MessageID: cb.MessageID, CallbackID: cb.ID, Raw: cb.Data}
		parseCallback(cb.Data, &ev)
		return ev
	default:
		return Event{}
	}
}

func parseText(text string) EventKind {
	text = strings.TrimSpace(text)
	switch text {
	case messages.ButtonCheckAlert:
		return EventCheckAlert
	case messages.ButtonSettings:
		return EventSettings
	}
	// "/start", "/start payload" and "/start@botname".
	cmd, _, _ := strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	if cmd == "/start" {
		return EventStart
	}
	return EventUnknown
}

func parseCallback(data string, ev *Event) {
	name, arg, _ := strings.Cut(data, ":")
	switch name {
	case dataStartRegion:
		ev.Kind, ev.Origin, ev.RegionKey = EventSelectRegion, PickerStart, arg
	case dataSettingsRegion:
		ev.Kind, ev.Origin, ev.RegionKey = EventSelectRegion, PickerSettings, arg
	case dataCheckStatus:
		ev.Kind = EventCheckStatus
	case dataChangeRegion:
		ev.Kind = EventChangeRegion
	case dataToggle:
		ev.Kind = EventToggleNotifications
	default:
		ev.Kind = EventUnknown
	}
}

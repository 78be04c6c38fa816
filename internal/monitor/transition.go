package monitor

import (
	"alertbot/internal/messages"
	"alertbot/internal/region"
)

// ClassifyTransition decides whether prev -> cur is worth a notification.
//
//	None           -> Active|Partial  AlertStart
//	Active|Partial -> None            AlertEnd
//
// Everything else, including Active <-> Partial and any Unknown side, is silent.
func ClassifyTransition(prev, cur region.Status) (messages.Class, bool) {
	switch {
	case prev == region.StatusNone && cur.IsAlert():
		return messages.ClassAlertStart, true
	case prev.IsAlert() && cur == region.StatusNone:
		return messages.ClassAlertEnd, true
	default:
		return 0, false
	}
}

// Transition is one notification-worthy change found in a cycle.
type Transition struct {
	Region region.Region
	From   region.Status
	To     region.Status
	Class  messages.Class
}

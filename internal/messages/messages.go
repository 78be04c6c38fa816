// Package messages renders every user-facing text the bot sends.
package messages

import (
	"fmt"

	"alertbot/internal/region"
)

// Class is the kind of automatic notification produced by a transition.
type Class uint8

const (
	ClassAlertStart Class = iota + 1
	ClassAlertEnd
)

func (c Class) String() string {
	switch c {
	case ClassAlertStart:
		return "alert_start"
	case ClassAlertEnd:
		return "alert_end"
	default:
		return "unknown"
	}
}

// Render returns the automatic notification text for class in r.
func Render(class Class, r region.Region) string {
	switch class {
	case ClassAlertStart:
		return fmt.Sprintf("🚨😔Тривога в областi %s\n‼️В УКРИТТЯ!", r.Title)
	case ClassAlertEnd:
		return "✅😁Вiдбiй тривоги\n🇺🇦 Слава Україні!"
	default:
		return ""
	}
}

// ManualStatus answers an on-demand status check.
// err is the lookup failure, if any; it takes precedence over reading.
func ManualStatus(r region.Region, reading region.Reading, err error) string {
	if err != nil {
		return "⚠️ Не вдалось отримати статус тривоги.\nСпробуйте ще раз трохи пізніше."
	}
	name := r.Title
	if name == "" {
		name = "область"
	}
	switch reading.Status {
	case region.StatusActive:
		return fmt.Sprintf("🚨 Повiтряна тривога в областi %s.\n‼️ Негайно прямуйте до укриття!", name)
	case region.StatusPartial, region.StatusNone:
		return fmt.Sprintf("✅ Зараз у областi %s немає повiтряної тривоги.\nЗалишайтеся пильними.", name)
	default:
		return fmt.Sprintf("⚠️ Незнаний статус тривоги (%c) для областi %s.\nМожливо, тимчасова помилка сервісу.", reading.Code, name)
	}
}

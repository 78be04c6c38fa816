package messages

import "fmt"

// Reply keyboard labels. Incoming texts are matched against these.
const (
	ButtonCheckAlert = "📍Перевiрити тривогу"
	ButtonSettings   = "⚙️Налаштування"
)

const (
	ButtonCheckStatus  = "🛎Перевiрити статус"
	ButtonChangeRegion = "🌍Змiнити область"
)

const (
	PickRegionStart    = "📡Оберiть область, яку будете вiдстежувати:"
	PickRegionSettings = "💙💛Оберiть область яку будете вiдстежувати:"
	RegionRequired     = "Спочатку оберiть область у налаштуваннях або через /start."
	RegionRequiredText = "Спочатку оберiть область у налаштуваннях (кнопка ⚙️Налаштування) або через /start."
	UnknownRegion      = "Невiдома область."
	RegionChanged      = "Область змiнено!"
	NotificationsOn    = "Повiдомлення увiмкнено ✅"
	NotificationsOff   = "Повiдомлення вимкнено 🔕"
	TemporaryFailure   = "⚠️ Сервіс тимчасово недоступний. Спробуйте пізніше."
)

// Subscribed confirms a region chosen from the /start picker.
func Subscribed(title string) string {
	return fmt.Sprintf("🚧Бот вiдстежуэ тривоги в областi %s.\nВи пiдписанi на повiдомлення", title)
}

// Settings renders the settings panel. An empty title means no region yet.
func Settings(title string, enabled bool) string {
	if title == "" {
		title = "не вибрана"
	}
	return fmt.Sprintf("🎈Налаштування\n🌐Область: %s\n🔔Повiдомлення: %s", title, notificationsState(enabled))
}

// ToggleButton is the label of the notifications toggle.
func ToggleButton(enabled bool) string {
	return "🔔Повiдомлення: " + notificationsState(enabled)
}

func notificationsState(enabled bool) string {
	if enabled {
		return "Включеннi"
	}
	return "Вимкнено"
}

package messages

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"alertbot/internal/region"
)

var kyiv = region.Region{Key: "kyiv", Title: "Київська область", FeedIndex: 10}

func TestRender(t *testing.T) {
	require.Equal(t, "🚨😔Тривога в областi Київська область\n‼️В УКРИТТЯ!", Render(ClassAlertStart, kyiv))
	require.Equal(t, "✅😁Вiдбiй тривоги\n🇺🇦 Слава Україні!", Render(ClassAlertEnd, kyiv))
	require.Empty(t, Render(Class(0), kyiv))
}

func TestManualStatus(t *testing.T) {
	tests := []struct {
		name    string
		region  region.Region
		reading region.Reading
		err     error
		want    string
	}{
		{
			name:    "active",
			region:  kyiv,
			reading: region.Read('A'),
			want:    "🚨 Повiтряна тривога в областi Київська область.\n‼️ Негайно прямуйте до укриття!",
		},
		{
			name:    "partial reads as calm",
			region:  kyiv,
			reading: region.Read('P'),
			want:    "✅ Зараз у областi Київська область немає повiтряної тривоги.\nЗалишайтеся пильними.",
		},
		{
			name:    "none",
			region:  kyiv,
			reading: region.Read('N'),
			want:    "✅ Зараз у областi Київська область немає повiтряної тривоги.\nЗалишайтеся пильними.",
		},
		{
			name:    "unknown code",
			region:  kyiv,
			reading: region.Read('Q'),
			want:    "⚠️ Незнаний статус тривоги (Q) для областi Київська область.\nМожливо, тимчасова помилка сервісу.",
		},
		{
			name:    "missing title",
			reading: region.Read('A'),
			want:    "🚨 Повiтряна тривога в областi область.\n‼️ Негайно прямуйте до укриття!",
		},
		{
			name:    "lookup failed",
			region:  kyiv,
			reading: region.Read('A'),
			err:     errors.New("timeout"),
			want:    "⚠️ Не вдалось отримати статус тривоги.\nСпробуйте ще раз трохи пізніше.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ManualStatus(tt.region, tt.reading, tt.err))
		})
	}
}

func TestSettings(t *testing.T) {
	require.Equal(t, "🎈Налаштування\n🌐Область: не вибрана\n🔔Повiдомлення: Включеннi", Settings("", true))
	require.Equal(t, "🎈Налаштування\n🌐Область: м. Київ\n🔔Повiдомлення: Вимкнено", Settings("м. Київ", false))
	require.Equal(t, "🔔Повiдомлення: Вимкнено", ToggleButton(false))
}

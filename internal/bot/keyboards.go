package bot

import (
	"alertbot/internal/messages"
	"alertbot/internal/region"
	kit "alertbot/internal/transport"
)

const pickerColumns = 3

func mainKeyboard() *kit.Keyboard {
	return &kit.Keyboard{
		Resize: true,
		Rows: [][]kit.Button{
			{{Text: messages.ButtonCheckAlert}, {Text: messages.ButtonSettings}},
		},
	}
}

// regionPicker lays the catalog out pickerColumns buttons per row.
func regionPicker(c *region.Catalog, origin PickerOrigin) *kit.Keyboard {
	all := c.All()
	rows := make([][]kit.Button, 0, (len(all)+pickerColumns-1)/pickerColumns)
	for i := 0; i < len(all); i += pickerColumns {
		end := min(i+pickerColumns, len(all))
		row := make([]kit.Button, 0, end-i)
		for _, r := range all[i:end] {
			row = append(row, kit.Button{Text: r.Title, Data: origin.prefix() + ":" + r.Key})
		}
		rows = append(rows, row)
	}
	return &kit.Keyboard{Inline: true, Rows: rows}
}

func checkStatusKeyboard() *kit.Keyboard {
	return &kit.Keyboard{
		Inline: true,
		Rows:   [][]kit.Button{{{Text: messages.ButtonCheckStatus, Data: dataCheckStatus}}},
	}
}

func settingsKeyboard(enabled bool) *kit.Keyboard {
	return &kit.Keyboard{
		Inline: true,
		Rows: [][]kit.Button{
			{{Text: messages.ButtonChangeRegion, Data: dataChangeRegion}},
			{{Text: messages.ToggleButton(enabled), Data: dataToggle}},
		},
	}
}

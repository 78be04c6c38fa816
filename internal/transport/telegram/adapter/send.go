package adapter

import (
	"context"
	"strings"

	tele "gopkg.in/telebot.v4"

	kit "alertbot/internal/transport"
	logx "alertbot/pkg/logx"
)

// SendText checks ctx only before the request; telebot calls take no context
// and are bounded by its HTTP client timeout instead.
func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return kit.MessageRef{}, err
	}
	msg, err := a.bot.Send(&tele.Chat{ID: to.ChatID}, text, sendOptions(opt, to.ThreadID))
	if err != nil {
		return kit.MessageRef{}, err
	}
	return kit.MessageRef{ChatID: to.ChatID, MessageID: msg.ID}, nil
}

func (a *Adapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := a.bot.Edit(editable(ref), text, sendOptions(opt, 0))
	return ignoreNotModified(err)
}

func (a *Adapter) EditKeyboard(ctx context.Context, ref kit.MessageRef, kb *kit.Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := a.bot.EditReplyMarkup(editable(ref), toMarkup(kb))
	return ignoreNotModified(err)
}

func (a *Adapter) DeleteMessage(ctx context.Context, ref kit.MessageRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.bot.Delete(editable(ref))
}

func (a *Adapter) AnswerCallback(ctx context.Context, callbackID string, text string, showAlert bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text, ShowAlert: showAlert})
}

// UpdateMenuCommands publishes the command menu; unchanged lists are skipped.
func (a *Adapter) UpdateMenuCommands(ctx context.Context, cmds []kit.BotCommand) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out := make([]tele.Command, 0, len(cmds))
	var key strings.Builder
	for _, c := range cmds {
		if c.Command == "" {
			continue
		}
		d := c.Description
		if d == "" {
			d = c.Command
		}
		out = append(out, tele.Command{Text: c.Command, Description: d})
		key.WriteString(c.Command + "\x00" + d + "\x00")
	}

	a.menuMu.Lock()
	defer a.menuMu.Unlock()
	if key.String() == a.menuHash {
		return nil
	}
	if err := a.bot.SetCommands(out); err != nil {
		return err
	}
	a.menuHash = key.String()
	a.log.Info("menu commands updated", logx.Int("count", len(out)))
	return nil
}

func editable(ref kit.MessageRef) *tele.Message {
	return &tele.Message{ID: ref.MessageID, Chat: &tele.Chat{ID: ref.ChatID}}
}

func sendOptions(opt *kit.SendOptions, threadID int) *tele.SendOptions {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	return &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
		ThreadID:              threadID,
		ReplyMarkup:           toMarkup(opt.Keyboard),
	}
}

// toMarkup converts a neutral keyboard to telebot markup. nil stays nil.
func toMarkup(kb *kit.Keyboard) *tele.ReplyMarkup {
	if kb == nil {
		return nil
	}
	rm := &tele.ReplyMarkup{ResizeKeyboard: kb.Resize}
	if kb.Inline {
		rm.InlineKeyboard = make([][]tele.InlineButton, 0, len(kb.Rows))
		for _, row := range kb.Rows {
			btns := make([]tele.InlineButton, 0, len(row))
			for _, b := range row {
				btns = append(btns, tele.InlineButton{Text: b.Text, Data: b.Data})
			}
			rm.InlineKeyboard = append(rm.InlineKeyboard, btns)
		}
		return rm
	}
	rm.ReplyKeyboard = make([][]tele.ReplyButton, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		btns := make([]tele.ReplyButton, 0, len(row))
		for _, b := range row {
			btns = append(btns, tele.ReplyButton{Text: b.Text})
		}
		rm.ReplyKeyboard = append(rm.ReplyKeyboard, btns)
	}
	return rm
}

// ignoreNotModified swallows Telegram's "message is not modified" answer,
// which a double-tapped button produces.
func ignoreNotModified(err error) error {
	if err != nil && strings.Contains(err.Error(), "message is not modified") {
		return nil
	}
	return err
}

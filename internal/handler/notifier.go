package handler

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"shift-planner/internal/events"
)

// Notifier пишет в чат о каждой сохранённой версии
type Notifier struct {
	bot    Sender
	chatID int64
}

func NewNotifier(bot Sender, chatID int64) *Notifier {
	return &Notifier{bot: bot, chatID: chatID}
}

func (n *Notifier) VersionSaved(ctx context.Context, ev events.VersionSaved) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, formatSaved(ev)))
	return err
}

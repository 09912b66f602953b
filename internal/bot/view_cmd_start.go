package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kovalyov-valentin/news-digest/internal/botkit"
)

const startText = `Бот управления источниками новостного дайджеста.

/listsources - список источников
/togglesource <id> - включить или выключить источник
/addsource {"name": "...", "section": "...", "kind": "feed", "url": "..."} - добавить источник`

func ViewCmdStart() botkit.ViewFunc {
	return func(ctx context.Context, bot *tgbotapi.BotAPI, update tgbotapi.Update) error {
		if _, err := bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID, startText)); err != nil {
			return err
		}
		return nil
	}
}

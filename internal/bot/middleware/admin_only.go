package middleware

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kovalyov-valentin/news-digest/internal/botkit"
	"github.com/samber/lo"
)

// AdminOnly пропускает команду дальше, только если ее отправил администратор канала отчетов
func AdminOnly(channelID int64, next botkit.ViewFunc) botkit.ViewFunc {
	return func(ctx context.Context, bot *tgbotapi.BotAPI, update tgbotapi.Update) error {
		if update.Message.From == nil {
			return nil
		}

		admins, err := bot.GetChatAdministrators(
			tgbotapi.ChatAdministratorsConfig{
				ChatConfig: tgbotapi.ChatConfig{
					ChatID: channelID,
				},
			},
		)
		if err != nil {
			return err
		}

		if isAdmin(admins, update.Message.From.ID) {
			return next(ctx, bot, update)
		}

		if _, err := bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID, "У вас нет прав для выполнения этой команды")); err != nil {
			return err
		}
		return nil
	}
}

// Проверка на то, что тот кто отправил команду находится в списке администраторов
func isAdmin(admins []tgbotapi.ChatMember, userID int64) bool {
	return lo.ContainsBy(admins, func(admin tgbotapi.ChatMember) bool {
		return admin.User != nil && admin.User.ID == userID
	})
}

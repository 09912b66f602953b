package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kovalyov-valentin/news-digest/internal/botkit"
	"github.com/kovalyov-valentin/news-digest/internal/botkit/markup"
	"github.com/kovalyov-valentin/news-digest/internal/model"
	"github.com/kovalyov-valentin/news-digest/internal/storage"
)

type SourceToggler interface {
	SourceByID(ctx context.Context, id int64) (*model.Source, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

// Источники не удаляются, чтобы по имени всегда можно было найти, откуда статья. Их только выключают
func ViewCmdToggleSource(toggler SourceToggler) botkit.ViewFunc {
	return func(ctx context.Context, bot *tgbotapi.BotAPI, update tgbotapi.Update) error {
		id, err := botkit.ParseID(update.Message.CommandArguments())
		if err != nil {
			return reply(bot, update, "Использование: /togglesource <id>")
		}

		source, err := toggler.SourceByID(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrSourceNotFound) {
				return reply(bot, update, fmt.Sprintf("Источник %d не найден", id))
			}
			return err
		}

		if err := toggler.SetActive(ctx, id, !source.Active); err != nil {
			return err
		}

		state := "выключен"
		if !source.Active {
			state = "включен"
		}

		msg := tgbotapi.NewMessage(update.Message.Chat.ID, fmt.Sprintf(
			"Источник *%s* \\(`%d`\\) %s",
			markup.EscapeForMarkdown(source.Name), id, state,
		))
		msg.ParseMode = tgbotapi.ModeMarkdownV2

		if _, err := bot.Send(msg); err != nil {
			return err
		}

		return nil
	}
}

package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kovalyov-valentin/news-digest/internal/botkit"
	"github.com/kovalyov-valentin/news-digest/internal/model"
)

type SourceStorage interface {
	Add(ctx context.Context, source model.Source) (int64, error)
}

type addSourceArgs struct {
	Name    string `json:"name"`
	Section string `json:"section"`
	Kind    string `json:"kind"`
	URL     string `json:"url"`
}

// Источник из аргументов команды. Новый источник сразу включен
func (a addSourceArgs) toSource() (model.Source, error) {
	if a.Name == "" || a.URL == "" {
		return model.Source{}, errors.New("name and url are required")
	}

	kind := model.SourceKind(a.Kind)
	switch kind {
	case "", "rss":
		kind = model.SourceKindFeed
	case model.SourceKindFeed, model.SourceKindAPI:
	default:
		return model.Source{}, fmt.Errorf("unknown kind %q", a.Kind)
	}

	return model.Source{
		Name:    a.Name,
		Section: a.Section,
		Kind:    kind,
		URL:     a.URL,
		Active:  true,
	}, nil
}

// Метод для добавления источника в БД
func ViewCmdAddSource(storage SourceStorage) botkit.ViewFunc {
	return func(ctx context.Context, bot *tgbotapi.BotAPI, update tgbotapi.Update) error {
		args, err := botkit.ParseJSON[addSourceArgs](update.Message.CommandArguments())
		if err != nil {
			return reply(bot, update, "Неверные аргументы: "+err.Error())
		}

		source, err := args.toSource()
		if err != nil {
			return reply(bot, update, "Неверные аргументы: "+err.Error())
		}

		sourceID, err := storage.Add(ctx, source)
		if err != nil {
			return err
		}

		msg := tgbotapi.NewMessage(update.Message.Chat.ID, fmt.Sprintf(
			"Источник добавлен с ID: `%d`\\. Используйте этот ID для управления источником\\.",
			sourceID,
		))
		msg.ParseMode = tgbotapi.ModeMarkdownV2

		if _, err := bot.Send(msg); err != nil {
			return err
		}

		return nil
	}
}

func reply(bot *tgbotapi.BotAPI, update tgbotapi.Update, text string) error {
	_, err := bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID, text))
	return err
}

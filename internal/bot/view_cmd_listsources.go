package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kovalyov-valentin/news-digest/internal/botkit"
	"github.com/kovalyov-valentin/news-digest/internal/botkit/markup"
	"github.com/kovalyov-valentin/news-digest/internal/model"
	"github.com/samber/lo"
)

type SourceLister interface {
	Sources(ctx context.Context) ([]model.Source, error)
}

func ViewCmdListSources(lister SourceLister) botkit.ViewFunc {
	return func(ctx context.Context, bot *tgbotapi.BotAPI, update tgbotapi.Update) error {
		// Получаем список источников от листера
		sources, err := lister.Sources(ctx)
		if err != nil {
			return err
		}

		reply := tgbotapi.NewMessage(update.Message.Chat.ID, formatSourceList(sources))
		reply.ParseMode = tgbotapi.ModeMarkdownV2

		if _, err := bot.Send(reply); err != nil {
			return err
		}
		return nil
	}
}

func formatSourceList(sources []model.Source) string {
	active := lo.CountBy(sources, func(s model.Source) bool { return s.Active })

	// Складываем сформатированные тексты с метаинформацией об источниках
	sourceInfos := lo.Map(sources, func(source model.Source, _ int) string {
		return formatSource(source)
	})

	return fmt.Sprintf(
		"Список источников \\(всего %d, включено %d\\):\n\n%s",
		len(sources),
		active,
		strings.Join(sourceInfos, "\n\n"),
	)
}

// Вывод форматированной информации об источнике
func formatSource(source model.Source) string {
	state := "🟢"
	if !source.Active {
		state = "⚪️"
	}

	return fmt.Sprintf(
		"%s *%s* · %s\nID: `%d`\nТип: %s\nURL: %s",
		state,
		markup.EscapeForMarkdown(source.Name),
		markup.EscapeForMarkdown(source.Section),
		source.ID,
		markup.EscapeForMarkdown(string(source.Kind)),
		markup.EscapeForMarkdown(source.URL),
	)
}

package notifier

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kovalyov-valentin/news-digest/internal/botkit/markup"
	"github.com/kovalyov-valentin/news-digest/internal/pipeline"
)

// ChannelReporter постит итог каждого прогона в телеграм канал администраторов
type ChannelReporter struct {
	// Инстанс клиента botAPI
	bot *tgbotapi.BotAPI
	// id канала куда постим отчеты
	channelID int64
}

func NewChannelReporter(bot *tgbotapi.BotAPI, channelID int64) *ChannelReporter {
	return &ChannelReporter{bot: bot, channelID: channelID}
}

func (r *ChannelReporter) ReportRun(_ context.Context, report pipeline.Report) error {
	msg := tgbotapi.NewMessage(r.channelID, FormatReport(report))
	// Сообщение парсится как markdown, поэтому все значения экранируются
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	if _, err := r.bot.Send(msg); err != nil {
		return fmt.Errorf("send run report: %w", err)
	}
	return nil
}

// FormatReport текст отчета в MarkdownV2
func FormatReport(report pipeline.Report) string {
	lines := []string{
		fmt.Sprintf("*Прогон %s*", markup.EscapeForMarkdown(string(report.State))),
		fmt.Sprintf("run: `%s`", report.RunID),
		markup.EscapeForMarkdown(fmt.Sprintf(
			"Источники: %d, не ответили: %d",
			report.Sources, len(report.FailedSources),
		)),
		markup.EscapeForMarkdown(fmt.Sprintf(
			"Статьи: получено %d, новых %d",
			report.Fetched, report.New,
		)),
		markup.EscapeForMarkdown(fmt.Sprintf(
			"Пользователи: %d, получили дайджест %d, ошибок %d, доставлено статей %d",
			len(report.Users), report.DeliveredUsers(), report.FailedUsers(), report.DeliveredArticles(),
		)),
	}

	for _, failed := range report.FailedSources {
		lines = append(lines, "⚠️ "+markup.EscapeForMarkdown(failed))
	}

	if report.Err != nil {
		lines = append(lines, "❌ "+markup.EscapeForMarkdown(report.Err.Error()))
	}

	return strings.Join(lines, "\n")
}

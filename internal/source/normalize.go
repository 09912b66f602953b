package source

import (
	"strings"
	"time"

	"github.com/kovalyov-valentin/news-digest/internal/model"
)

// Форматы дат, которые встречаются в RSS лентах (RFC 2822 и его вариации)
var feedDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC822Z,
	time.RFC822,
}

// Normalize приводит сырую запись адаптера к каноническому виду статьи.
// Ничего не отбрасывает: пустой заголовок остается пустой строкой,
// нераспознанная дата уходит дальше как есть.
func Normalize(item model.Item, meta model.SourceMeta) model.Article {
	section := item.Section
	if section == "" {
		section = meta.Section
	}
	if section == "" && len(item.Categories) > 0 {
		section = item.Categories[0]
	}

	lastModified := NormalizeDate(item.RawDate)
	if item.RawDate == "" && !item.Date.IsZero() {
		lastModified = item.Date.UTC().Format(time.RFC3339)
	}

	return model.Article{
		Source:       meta.Name,
		Headline:     item.Title,
		Section:      section,
		LastModified: lastModified,
		WebURL:       item.Link,
	}
}

// NormalizeDate переводит даты RFC 2822 в RFC 3339 (UTC).
// Строку, которую распознать не удалось (в том числе уже ISO 8601), возвращает без изменений.
func NormalizeDate(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return raw
	}

	for _, layout := range feedDateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}

	return raw
}

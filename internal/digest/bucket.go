package digest

import (
	"sort"
	"time"

	"github.com/kovalyov-valentin/news-digest/internal/model"
)

const (
	LabelLastHour     = "last hour"
	LabelLastSixHours = "last 6 hours"
	LabelLastDay      = "last 24 hours"
)

// Группа статей одного диапазона свежести
type Bucket struct {
	Label    string
	Articles []model.Article
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// ParseTimestamp разбирает lastModified. false означает "возраст неизвестен"
func ParseTimestamp(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// Split раскладывает статьи по трем корзинам относительно now.
// Все, что старше 6 часов, включая статьи без даты, попадает в "last 24 hours".
// Пустые корзины не возвращаются, внутри корзины сначала самые свежие.
func Split(articles []model.Article, now time.Time) []Bucket {
	buckets := []Bucket{
		{Label: LabelLastHour},
		{Label: LabelLastSixHours},
		{Label: LabelLastDay},
	}

	for _, a := range articles {
		i := bucketIndex(a, now)
		buckets[i].Articles = append(buckets[i].Articles, a)
	}

	result := make([]Bucket, 0, len(buckets))
	for _, b := range buckets {
		if len(b.Articles) == 0 {
			continue
		}
		sortNewestFirst(b.Articles)
		result = append(result, b)
	}

	return result
}

func bucketIndex(a model.Article, now time.Time) int {
	ts, ok := ParseTimestamp(a.LastModified)
	if !ok {
		return 2
	}

	switch age := now.Sub(ts); {
	case age <= time.Hour:
		return 0
	case age <= 6*time.Hour:
		return 1
	default:
		return 2
	}
}

// Статьи без даты уходят в конец, при равенстве остается исходный порядок
func sortNewestFirst(articles []model.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		ti, okI := ParseTimestamp(articles[i].LastModified)
		tj, okJ := ParseTimestamp(articles[j].LastModified)
		if okI != okJ {
			return okI
		}
		return ti.After(tj)
	})
}

package source

import (
	"context"
	"net/http"

	"github.com/SlyMarbo/rss"
	"github.com/kovalyov-valentin/news-digest/internal/model"
)

// RSS клиент.
type RSSSource struct {
	// URL откуда мы забираем данные
	URL string
	// Его id
	SourceID   int64
	SourceName string
	Section    string
	// Сколько записей максимум берем из ленты за раз, 0 - без ограничений
	MaxItems int

	client *http.Client
}

// Конструктор, который будет из модели источника создавать источник уже как клиент для RSS лент
func NewRSSSourceFromModel(m model.Source, maxItems int, client *http.Client) RSSSource {
	if client == nil {
		client = http.DefaultClient
	}

	return RSSSource{
		URL:        m.URL,
		SourceID:   m.ID,
		SourceName: m.Name,
		Section:    m.Section,
		MaxItems:   maxItems,
		client:     client,
	}
}

// Публичный метод, который обрабатывает данные из лент, возвращая слайс сырых записей
func (s RSSSource) Fetch(ctx context.Context) ([]model.Item, error) {
	feed, err := s.loadFeed(ctx, s.URL)
	if err != nil {
		return nil, err
	}

	entries := feed.Items
	if s.MaxItems > 0 && len(entries) > s.MaxItems {
		entries = entries[:s.MaxItems]
	}

	items := make([]model.Item, 0, len(entries))
	for _, item := range entries {
		items = append(items, model.Item{
			Title:      item.Title,
			Categories: item.Categories,
			Link:       item.Link,
			Date:       item.Date,
		})
	}
	return items, nil
}

// Метод, который загружает данные из источника.
// Запрос привязан к ctx, поэтому по таймауту соединение закрывается, а не висит в фоне
func (s RSSSource) loadFeed(ctx context.Context, url string) (*rss.Feed, error) {
	feed, err := rss.FetchByFunc(func(url string) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		return s.client.Do(req)
	}, url)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	return feed, nil
}

func (s RSSSource) ID() int64 {
	return s.SourceID
}

func (s RSSSource) Name() string {
	return s.SourceName
}

func (s RSSSource) Meta() model.SourceMeta {
	return model.SourceMeta{Name: s.SourceName, Section: s.Section}
}

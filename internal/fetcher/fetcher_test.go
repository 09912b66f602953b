package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kovalyov-valentin/news-digest/internal/model"
	"github.com/kovalyov-valentin/news-digest/internal/source"
)

type staticSources []model.Source

func (s staticSources) ActiveSources(context.Context) ([]model.Source, error) {
	return s, nil
}

type fakeAdapter struct {
	src   model.Source
	items []model.Item
	err   error
	delay time.Duration
}

func (a fakeAdapter) ID() int64              { return a.src.ID }
func (a fakeAdapter) Name() string           { return a.src.Name }
func (a fakeAdapter) Meta() model.SourceMeta { return a.src.Meta() }

func (a fakeAdapter) Fetch(ctx context.Context) ([]model.Item, error) {
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return a.items, a.err
}

func factory(adapters map[int64]fakeAdapter) AdapterFactory {
	return func(src model.Source) (source.Adapter, error) {
		a, ok := adapters[src.ID]
		if !ok {
			return nil, errors.New("no adapter")
		}
		a.src = src
		return a, nil
	}
}

func TestFetchCombinesInSourceOrder(t *testing.T) {
	t.Parallel()

	sources := staticSources{
		{ID: 1, Name: "BBC News", Section: "World", Kind: model.SourceKindFeed, URL: "https://bbc"},
		{ID: 2, Name: "NPR", Section: "News", Kind: model.SourceKindFeed, URL: "https://npr"},
	}
	adapters := map[int64]fakeAdapter{
		// Первый источник отвечает позже второго, порядок все равно по источникам
		1: {items: []model.Item{{Title: "X", RawDate: "2024-01-01T00:00:00Z"}}, delay: 50 * time.Millisecond},
		2: {items: []model.Item{{Title: "X", RawDate: "2024-01-01T00:00:00Z"}, {Title: "Y"}}},
	}

	f := NewFetcher(sources, factory(adapters), time.Second, 2, nil)

	result, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if len(result.Articles) != 3 {
		t.Fatalf("expected 3 articles, got %d", len(result.Articles))
	}
	if result.Articles[0].Source != "BBC News" || result.Articles[0].Section != "World" {
		t.Fatalf("unexpected first article: %+v", result.Articles[0])
	}
	if result.Articles[1].Source != "NPR" {
		t.Fatalf("unexpected second article: %+v", result.Articles[1])
	}
	if result.TotalFailure() {
		t.Fatalf("did not expect total failure")
	}
}

func TestFetchSkipsFailedAndTimedOutSources(t *testing.T) {
	t.Parallel()

	sources := staticSources{
		{ID: 1, Name: "Broken", URL: "https://broken"},
		{ID: 2, Name: "Slow", URL: "https://slow"},
		{ID: 3, Name: "Fine", URL: "https://fine"},
	}
	adapters := map[int64]fakeAdapter{
		1: {err: errors.New("boom")},
		2: {items: []model.Item{{Title: "late"}}, delay: time.Second},
		3: {items: []model.Item{{Title: "ok"}}},
	}

	f := NewFetcher(sources, factory(adapters), 20*time.Millisecond, 3, nil)

	result, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if len(result.Failed) != 2 {
		t.Fatalf("expected 2 failed sources, got %v", result.Failed)
	}
	if len(result.Articles) != 1 || result.Articles[0].Headline != "ok" {
		t.Fatalf("unexpected articles: %+v", result.Articles)
	}
}

func TestFetchTotalFailure(t *testing.T) {
	t.Parallel()

	sources := staticSources{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}
	f := NewFetcher(sources, factory(map[int64]fakeAdapter{}), time.Second, 1, nil)

	result, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if !result.TotalFailure() {
		t.Fatalf("expected total failure, got %+v", result)
	}
}

func TestFetchFiltersKeywords(t *testing.T) {
	t.Parallel()

	sources := staticSources{{ID: 1, Name: "A"}}
	adapters := map[int64]fakeAdapter{
		1: {items: []model.Item{
			{Title: "Football results"},
			{Title: "Elections", Categories: []string{"Sport"}},
			{Title: "Weather"},
		}},
	}

	f := NewFetcher(sources, factory(adapters), time.Second, 1, []string{" Football ", "sport"})

	result, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(result.Articles) != 1 || result.Articles[0].Headline != "Weather" {
		t.Fatalf("unexpected articles: %+v", result.Articles)
	}
}

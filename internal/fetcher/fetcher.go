package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/kovalyov-valentin/news-digest/internal/model"
	"github.com/kovalyov-valentin/news-digest/internal/source"
	"github.com/samber/lo"
	"github.com/tomakado/containers/set"
)

type SourceProvider interface {
	ActiveSources(ctx context.Context) ([]model.Source, error)
}

// Фабрика адаптеров, по умолчанию source.New
type AdapterFactory func(src model.Source) (source.Adapter, error)

// Итог одного прохода по источникам
type Result struct {
	// Нормализованные статьи всех источников, склеенные в порядке источников
	Articles []model.Article
	// Сколько источников опрашивали
	Sources int
	// Имена и урлы источников, которые не ответили
	Failed []string
}

// Все источники упали, статей нет совсем
func (r Result) TotalFailure() bool {
	return r.Sources > 0 && len(r.Failed) == r.Sources
}

// Структура сборщика
type Fetcher struct {
	// Хранилище источников
	sources    SourceProvider
	newAdapter AdapterFactory

	// Ограничение на время опроса одного источника
	timeout time.Duration
	// Сколько источников опрашиваем одновременно
	workers int
	// Фильтрация статей по ключевым словами
	filterKeyWords []string
}

func NewFetcher(
	sourceProvider SourceProvider,
	newAdapter AdapterFactory,
	timeout time.Duration,
	workers int,
	filterKeyWords []string,
) *Fetcher {
	if workers <= 0 {
		workers = 1
	}

	keywords := make([]string, 0, len(filterKeyWords))
	for _, k := range filterKeyWords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}

	return &Fetcher{
		sources:        sourceProvider,
		newAdapter:     newAdapter,
		timeout:        timeout,
		workers:        workers,
		filterKeyWords: keywords,
	}
}

// Fetch опрашивает все активные источники параллельно, но не больше workers за раз.
// Упавший источник логируется и пропускается, повторов в рамках прохода нет.
func (f *Fetcher) Fetch(ctx context.Context) (Result, error) {
	sources, err := f.sources.ActiveSources(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load active sources: %w", err)
	}

	var (
		// По слоту на источник, чтобы итоговый порядок не зависел от того, кто ответил первым
		batches = make([][]model.Article, len(sources))
		failed  = make([]bool, len(sources))
		sem     = make(chan struct{}, f.workers)
		wg      sync.WaitGroup
	)

	for i, src := range sources {
		wg.Add(1)

		go func(i int, src model.Source) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				log.Printf("[WARN] skipping source %s (%s): %v", src.Name, src.URL, ctx.Err())
				failed[i] = true
				return
			}
			defer func() { <-sem }()

			articles, err := f.fetchSource(ctx, src)
			if err != nil {
				log.Printf("[WARN] fetching items from source %s (%s): %v", src.Name, src.URL, err)
				failed[i] = true
				return
			}

			batches[i] = articles
		}(i, src)
	}

	wg.Wait()

	result := Result{Sources: len(sources)}
	for i, src := range sources {
		if failed[i] {
			result.Failed = append(result.Failed, fmt.Sprintf("%s (%s)", src.Name, src.URL))
			continue
		}
		result.Articles = append(result.Articles, batches[i]...)
	}

	return result, nil
}

func (f *Fetcher) fetchSource(ctx context.Context, src model.Source) ([]model.Article, error) {
	adapter, err := f.newAdapter(src)
	if err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	items, err := adapter.Fetch(fetchCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("timed out after %s: %w", f.timeout, err)
		}
		return nil, err
	}

	articles := make([]model.Article, 0, len(items))
	for _, item := range items {
		if f.itemShouldBeSkipped(item) {
			continue
		}
		articles = append(articles, source.Normalize(item, adapter.Meta()))
	}

	log.Printf("[INFO] %s: fetched %d articles", src.Name, len(articles))

	return articles, nil
}

// Проходимся по категориям и заголовку записи.
// Если встречается ключевое слово из фильтра, запись пропускаем
func (f *Fetcher) itemShouldBeSkipped(item model.Item) bool {
	if len(f.filterKeyWords) == 0 {
		return false
	}

	categoriesSet := set.New(lo.Map(item.Categories, func(c string, _ int) string {
		return strings.ToLower(c)
	})...)
	title := strings.ToLower(item.Title)

	for _, keyword := range f.filterKeyWords {
		if categoriesSet.Contains(keyword) || strings.Contains(title, keyword) {
			return true
		}
	}

	return false
}

package subscription

import (
	"context"
	"fmt"
	"sort"

	"github.com/kovalyov-valentin/news-digest/internal/model"
	"github.com/samber/lo"
	"github.com/tomakado/containers/set"
)

type SubscriptionSource interface {
	SourcesForUser(ctx context.Context, userID int64) ([]string, error)
}

// Набор имен источников, на которые подписан пользователь
type Names struct {
	list []string
	set  set.HashSet[string]
}

func NewNames(names ...string) Names {
	list := lo.Uniq(names)
	sort.Strings(list)

	return Names{list: list, set: set.New(list...)}
}

func (n Names) Contains(name string) bool {
	return len(n.list) > 0 && n.set.Contains(name)
}

func (n Names) List() []string {
	return append([]string(nil), n.list...)
}

func (n Names) Empty() bool {
	return len(n.list) == 0
}

func (n Names) Len() int {
	return len(n.list)
}

// Resolver определяет, какие источники должен получать пользователь.
// Сравнение по имени: два источника с одинаковым именем считаются одним адресатом подписки
type Resolver struct {
	subscriptions SubscriptionSource
}

func NewResolver(subscriptions SubscriptionSource) *Resolver {
	return &Resolver{subscriptions: subscriptions}
}

// SubscribedSourceNames возвращает пустой набор, если подписок нет. Это не ошибка
func (r *Resolver) SubscribedSourceNames(ctx context.Context, userID int64) (Names, error) {
	names, err := r.subscriptions.SourcesForUser(ctx, userID)
	if err != nil {
		return Names{}, fmt.Errorf("resolve subscriptions for user %d: %w", userID, err)
	}

	return NewNames(names...), nil
}

// Filter оставляет только статьи из подписанных источников, порядок сохраняется
func (n Names) Filter(articles []model.Article) []model.Article {
	return lo.Filter(articles, func(a model.Article, _ int) bool {
		return n.Contains(a.Source)
	})
}

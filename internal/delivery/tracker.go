// Package delivery решает, какие статьи пользователь еще не получил,
// и записывает доставки только после того, как дайджест ушел в транспорт.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kovalyov-valentin/news-digest/internal/model"
	"github.com/kovalyov-valentin/news-digest/internal/subscription"
	"github.com/samber/lo"
	"github.com/tomakado/containers/set"
)

var (
	// Транспорт не принял дайджест, статьи остаются недоставленными
	ErrTransport = errors.New("delivery transport failure")
	// Дайджест отправлен, но доставки записать не удалось. В следующий прогон возможен дубль
	ErrLedgerWrite = errors.New("delivery ledger write failure")
)

// Транзакция доставки одному пользователю
type Session interface {
	DeliveredArticleIDs(ctx context.Context) ([]int64, error)
	ArticlesFromSources(ctx context.Context, names []string) ([]model.Article, error)
	RecordDeliveries(ctx context.Context, articleIDs []int64, at time.Time) error
	Commit() error
	Rollback() error
}

type Ledger interface {
	Begin(ctx context.Context, userID int64) (Session, error)
}

// LedgerFunc позволяет подключить любую функцию открытия сессии как Ledger
type LedgerFunc func(ctx context.Context, userID int64) (Session, error)

func (f LedgerFunc) Begin(ctx context.Context, userID int64) (Session, error) {
	return f(ctx, userID)
}

// Отправка недоставленных статей. Вызывается внутри сессии, до записи доставок
type SendFunc func(ctx context.Context, pending []model.Article) error

// PendingArticles: статья из подписанного источника, которой нет среди доставленных.
// Порядок: сначала недавно добавленные (по убыванию id)
func PendingArticles(articles []model.Article, subscribed subscription.Names, delivered []int64) []model.Article {
	deliveredSet := set.New(delivered...)

	pending := lo.Filter(articles, func(a model.Article, _ int) bool {
		return subscribed.Contains(a.Source) && !deliveredSet.Contains(a.ID)
	})

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].ID > pending[j].ID
	})

	return pending
}

type Tracker struct {
	ledger Ledger
	locks  *userLocks
	now    func() time.Time
}

func NewTracker(ledger Ledger) *Tracker {
	return &Tracker{
		ledger: ledger,
		locks:  newUserLocks(),
		now:    time.Now,
	}
}

// Deliver выполняет для одного пользователя выборку недоставленного, отправку и запись доставок
// как одну единицу работы. Второй конкурентный вызов для того же пользователя ждет первого.
// Возвращает число записанных доставок; 0 без ошибки, если отправлять нечего.
func (t *Tracker) Deliver(ctx context.Context, userID int64, subscribed subscription.Names, send SendFunc) (int, error) {
	if subscribed.Empty() {
		return 0, nil
	}

	unlock := t.locks.lock(userID)
	defer unlock()

	session, err := t.ledger.Begin(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("begin delivery for user %d: %w", userID, err)
	}
	defer session.Rollback()

	delivered, err := session.DeliveredArticleIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("load deliveries for user %d: %w", userID, err)
	}

	candidates, err := session.ArticlesFromSources(ctx, subscribed.List())
	if err != nil {
		return 0, fmt.Errorf("load articles for user %d: %w", userID, err)
	}

	pending := PendingArticles(candidates, subscribed, delivered)
	if len(pending) == 0 {
		return 0, nil
	}

	if err := send(ctx, pending); err != nil {
		return 0, fmt.Errorf("user %d: %w: %w", userID, ErrTransport, err)
	}

	ids := lo.Map(pending, func(a model.Article, _ int) int64 { return a.ID })

	if err := session.RecordDeliveries(ctx, ids, t.now().UTC()); err != nil {
		return 0, fmt.Errorf("user %d: %w: %w", userID, ErrLedgerWrite, err)
	}
	if err := session.Commit(); err != nil {
		return 0, fmt.Errorf("user %d: %w: %w", userID, ErrLedgerWrite, err)
	}

	return len(ids), nil
}

// Мьютекс на каждого пользователя внутри процесса
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[int64]*userLock)}
}

func (l *userLocks) lock(userID int64) func() {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()

	return func() {
		ul.mu.Unlock()

		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

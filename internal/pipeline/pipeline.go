// Package pipeline связывает сбор, дедупликацию, сохранение и доставку дайджестов в один прогон.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kovalyov-valentin/news-digest/internal/dedup"
	"github.com/kovalyov-valentin/news-digest/internal/delivery"
	"github.com/kovalyov-valentin/news-digest/internal/digest"
	"github.com/kovalyov-valentin/news-digest/internal/fetcher"
	"github.com/kovalyov-valentin/news-digest/internal/model"
	"github.com/kovalyov-valentin/news-digest/internal/subscription"
	"github.com/samber/lo"
)

var (
	// Хранилище не смогло отдать или сохранить статьи. Прогон прерывается до любой доставки
	ErrPersist = errors.New("persist failure")
	// Ни один источник не ответил, хотя источники есть
	ErrNoArticles = errors.New("no articles fetched from any source")
)

type Fetcher interface {
	Fetch(ctx context.Context) (fetcher.Result, error)
}

type ArticleStore interface {
	AllFingerprints(ctx context.Context) ([]string, error)
	AppendArticles(ctx context.Context, articles []model.Article) ([]int64, error)
}

type UserProvider interface {
	ActiveUsers(ctx context.Context) ([]model.User, error)
}

type Resolver interface {
	SubscribedSourceNames(ctx context.Context, userID int64) (subscription.Names, error)
}

type Tracker interface {
	Deliver(ctx context.Context, userID int64, subscribed subscription.Names, send delivery.SendFunc) (int, error)
}

type Transport interface {
	Send(ctx context.Context, d digest.Digest, recipient model.User) error
}

type Reporter interface {
	ReportRun(ctx context.Context, report Report) error
}

// Deps все внешние зависимости прогона
type Deps struct {
	Fetcher   Fetcher
	Articles  ArticleStore
	Users     UserProvider
	Resolver  Resolver
	Tracker   Tracker
	Transport Transport
	// Необязательный, например отчет в телеграм канал
	Reporter Reporter
}

type Options struct {
	// Как часто запускать прогон в режиме Start
	Interval time.Duration
	// Ограничение на передачу одного дайджеста в транспорт
	DeliveryTimeout time.Duration
	// Сколько пользователей обрабатываем одновременно
	DeliveryWorkers int
}

type Pipeline struct {
	fetcher   Fetcher
	articles  ArticleStore
	users     UserProvider
	resolver  Resolver
	tracker   Tracker
	transport Transport
	reporter  Reporter

	interval        time.Duration
	deliveryTimeout time.Duration
	deliveryWorkers int

	now func() time.Time
}

func New(deps Deps, opts Options) *Pipeline {
	if opts.DeliveryWorkers <= 0 {
		opts.DeliveryWorkers = 1
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = 30 * time.Second
	}

	return &Pipeline{
		fetcher:         deps.Fetcher,
		articles:        deps.Articles,
		users:           deps.Users,
		resolver:        deps.Resolver,
		tracker:         deps.Tracker,
		transport:       deps.Transport,
		reporter:        deps.Reporter,
		interval:        opts.Interval,
		deliveryTimeout: opts.DeliveryTimeout,
		deliveryWorkers: opts.DeliveryWorkers,
		now:             time.Now,
	}
}

// Start запускает прогон сразу и потом по интервалу, пока не отменят контекст.
// Упавший прогон логируется, следующий все равно запустится
func (p *Pipeline) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.runAndReport(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.runAndReport(ctx)
		}
	}
}

// RunOnce один прогон с отчетом
func (p *Pipeline) RunOnce(ctx context.Context) (Report, error) {
	return p.runAndReport(ctx)
}

func (p *Pipeline) runAndReport(ctx context.Context) (Report, error) {
	report, err := p.Run(ctx)
	if err != nil {
		log.Printf("[ERROR] run=%s failed: %v", report.RunID, err)
	}

	if p.reporter != nil {
		reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()

		if rerr := p.reporter.ReportRun(reportCtx, report); rerr != nil {
			log.Printf("[WARN] run=%s failed to send run report: %v", report.RunID, rerr)
		}
	}

	return report, err
}

// Run выполняет FETCH → NORMALIZE → DEDUP → PERSIST, затем доставку каждому активному пользователю.
// Ошибка хранилища до доставки прерывает прогон (ErrPersist). Ошибки отдельных пользователей
// попадают в отчет и на результат прогона не влияют.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	report := Report{
		RunID:     uuid.NewString(),
		StartedAt: p.now(),
	}

	finish := func(err error) (Report, error) {
		report.FinishedAt = p.now()
		report.Err = err
		report.State = StateCompleted
		if err != nil {
			report.State = StateFailed
		}
		return report, err
	}

	log.Printf("[INFO] run=%s started", report.RunID)

	fetched, err := p.fetcher.Fetch(ctx)
	if err != nil {
		return finish(fmt.Errorf("%w: %w", ErrPersist, err))
	}

	report.Sources = fetched.Sources
	report.FailedSources = fetched.Failed
	report.Fetched = len(fetched.Articles)

	var runErr error
	if fetched.TotalFailure() {
		runErr = fmt.Errorf("%w: %d sources failed", ErrNoArticles, fetched.Sources)
		log.Printf("[ERROR] run=%s %v", report.RunID, runErr)
	} else {
		added, err := p.persist(ctx, report.RunID, fetched.Articles)
		if err != nil {
			return finish(err)
		}
		report.New = added
	}

	// После сохранения прогон доводим до конца даже при отмене контекста
	deliveryCtx := context.WithoutCancel(ctx)

	users, err := p.users.ActiveUsers(deliveryCtx)
	if err != nil {
		return finish(fmt.Errorf("%w: load active users: %w", ErrPersist, err))
	}

	report.Users = p.deliverAll(deliveryCtx, report.RunID, users)

	log.Printf(
		"[INFO] run=%s completed: fetched=%d new=%d users=%d delivered_users=%d failed_users=%d",
		report.RunID, report.Fetched, report.New, len(report.Users), report.DeliveredUsers(), report.FailedUsers(),
	)

	return finish(runErr)
}

// Дедупликация идет по объединенной пачке всех источников, потом новые статьи сохраняются разом
func (p *Pipeline) persist(ctx context.Context, runID string, articles []model.Article) (int, error) {
	known, err := p.articles.AllFingerprints(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: load fingerprints: %w", ErrPersist, err)
	}

	fresh, _ := dedup.FilterNew(articles, dedup.NewKnown(known...), p.now().UTC())
	if len(fresh) == 0 {
		log.Printf("[INFO] run=%s no new articles after deduplication", runID)
		return 0, nil
	}

	ids, err := p.articles.AppendArticles(ctx, fresh)
	if err != nil {
		return 0, fmt.Errorf("%w: append %d articles: %w", ErrPersist, len(fresh), err)
	}

	log.Printf("[INFO] run=%s saved %d new articles", runID, len(ids))

	return len(ids), nil
}

// Каждый пользователь обрабатывается отдельной задачей, результаты собираются в порядке пользователей
func (p *Pipeline) deliverAll(ctx context.Context, runID string, users []model.User) []UserResult {
	var (
		results = make([]UserResult, len(users))
		sem     = make(chan struct{}, p.deliveryWorkers)
		wg      sync.WaitGroup
	)

	for i, user := range users {
		wg.Add(1)
		sem <- struct{}{}

		go func(i int, user model.User) {
			defer wg.Done()
			defer func() { <-sem }()

			results[i] = p.deliverUser(ctx, runID, user)
		}(i, user)
	}

	wg.Wait()

	return results
}

func (p *Pipeline) deliverUser(ctx context.Context, runID string, user model.User) (result UserResult) {
	result = UserResult{UserID: user.ID, Email: user.Email}

	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("panic: %v", r)
			log.Printf("[ERROR] run=%s user=%d (%s): panic recovered: %v\n%s", runID, user.ID, user.Email, r, debug.Stack())
		}
	}()

	names, err := p.resolver.SubscribedSourceNames(ctx, user.ID)
	if err != nil {
		result.Err = err
		log.Printf("[ERROR] run=%s user=%d (%s): %v", runID, user.ID, user.Email, err)
		return result
	}

	if names.Empty() {
		result.Skipped = true
		log.Printf("[INFO] run=%s user=%d (%s): no subscriptions, skipping", runID, user.ID, user.Email)
		return result
	}

	var fingerprints []string

	n, err := p.tracker.Deliver(ctx, user.ID, names, func(ctx context.Context, pending []model.Article) error {
		fingerprints = lo.Map(pending, func(a model.Article, _ int) string { return a.Fingerprint })

		d := digest.Render(digest.Split(pending, p.now()), user)

		sendCtx, cancel := context.WithTimeout(ctx, p.deliveryTimeout)
		defer cancel()

		return p.transport.Send(sendCtx, d, user)
	})

	switch {
	case errors.Is(err, delivery.ErrTransport):
		log.Printf("[ERROR] run=%s user=%d (%s): delivery failed, %d articles stay pending [%s]: %v",
			runID, user.ID, user.Email, len(fingerprints), strings.Join(fingerprints, ","), err)
	case errors.Is(err, delivery.ErrLedgerWrite):
		log.Printf("[ERROR] run=%s user=%d (%s): digest sent but deliveries not recorded, may be resent [%s]: %v",
			runID, user.ID, user.Email, strings.Join(fingerprints, ","), err)
	case err != nil:
		log.Printf("[ERROR] run=%s user=%d (%s): %v", runID, user.ID, user.Email, err)
	case n == 0:
		result.Skipped = true
		log.Printf("[INFO] run=%s user=%d (%s): nothing pending", runID, user.ID, user.Email)
	default:
		log.Printf("[INFO] run=%s user=%d (%s): delivered %d articles", runID, user.ID, user.Email, n)
	}

	result.Delivered = n
	result.Err = err

	return result
}

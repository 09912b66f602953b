package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/kovalyov-valentin/news-digest/internal/delivery"
	"github.com/kovalyov-valentin/news-digest/internal/digest"
	"github.com/kovalyov-valentin/news-digest/internal/fetcher"
	"github.com/kovalyov-valentin/news-digest/internal/model"
	"github.com/kovalyov-valentin/news-digest/internal/subscription"
)

type fakeFetcher struct {
	result fetcher.Result
	err    error
}

func (f fakeFetcher) Fetch(context.Context) (fetcher.Result, error) {
	return f.result, f.err
}

// Хранилище в памяти: статьи, пользователи, подписки и доставки
type memStore struct {
	mu            sync.Mutex
	articles      []model.Article
	users         []model.User
	subscriptions map[int64][]string
	deliveries    map[int64][]int64
	appendErr     error
}

func newMemStore(users ...model.User) *memStore {
	return &memStore{
		users:         users,
		subscriptions: make(map[int64][]string),
		deliveries:    make(map[int64][]int64),
	}
}

func (s *memStore) AllFingerprints(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fps := make([]string, 0, len(s.articles))
	for _, a := range s.articles {
		fps = append(fps, a.Fingerprint)
	}
	return fps, nil
}

func (s *memStore) AppendArticles(_ context.Context, articles []model.Article) ([]int64, error) {
	if s.appendErr != nil {
		return nil, s.appendErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(articles))
	for _, a := range articles {
		a.ID = int64(len(s.articles) + 1)
		s.articles = append(s.articles, a)
		ids = append(ids, a.ID)
	}
	return ids, nil
}

func (s *memStore) ActiveUsers(context.Context) ([]model.User, error) {
	return s.users, nil
}

func (s *memStore) SourcesForUser(_ context.Context, userID int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscriptions[userID], nil
}

func (s *memStore) Begin(_ context.Context, userID int64) (delivery.Session, error) {
	return &memSession{store: s, userID: userID}, nil
}

type memSession struct {
	store  *memStore
	userID int64
}

func (m *memSession) DeliveredArticleIDs(context.Context) ([]int64, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return append([]int64(nil), m.store.deliveries[m.userID]...), nil
}

func (m *memSession) ArticlesFromSources(_ context.Context, names []string) ([]model.Article, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return subscription.NewNames(names...).Filter(m.store.articles), nil
}

func (m *memSession) RecordDeliveries(_ context.Context, ids []int64, _ time.Time) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.deliveries[m.userID] = append(m.store.deliveries[m.userID], ids...)
	return nil
}

func (m *memSession) Commit() error   { return nil }
func (m *memSession) Rollback() error { return nil }

type sentDigest struct {
	Email     string
	Headlines []string
}

type fakeTransport struct {
	mu     sync.Mutex
	sent   []sentDigest
	failTo map[string]bool
}

func (t *fakeTransport) Send(_ context.Context, d digest.Digest, recipient model.User) error {
	if t.failTo[recipient.Email] {
		return errors.New("smtp is down")
	}

	var headlines []string
	for _, section := range d.Sections {
		for _, e := range section.Entries {
			headlines = append(headlines, e.Headline)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, sentDigest{Email: recipient.Email, Headlines: headlines})
	return nil
}

func (t *fakeTransport) calls() []sentDigest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]sentDigest(nil), t.sent...)
}

var (
	alice = model.User{ID: 1, Email: "alice@example.com", FirstName: "Alice", Timezone: "Europe/Berlin", Active: true}
	bob   = model.User{ID: 2, Email: "bob@example.com", FirstName: "Bob", Timezone: "UTC", Active: true}
	carol = model.User{ID: 3, Email: "carol@example.com", FirstName: "Carol", Active: true}
)

func article(source, headline string, age time.Duration, now time.Time) model.Article {
	return model.Article{
		Source:       source,
		Headline:     headline,
		Section:      "world",
		LastModified: now.Add(-age).UTC().Format(time.RFC3339),
		WebURL:       "https://example.com/" + headline,
	}
}

func newTestPipeline(f Fetcher, store *memStore, transport Transport) *Pipeline {
	p := New(Deps{
		Fetcher:   f,
		Articles:  store,
		Users:     store,
		Resolver:  subscription.NewResolver(store),
		Tracker:   delivery.NewTracker(store),
		Transport: transport,
	}, Options{DeliveryWorkers: 2, DeliveryTimeout: time.Second})

	return p
}

func TestRunDeliversOnlySubscribedSources(t *testing.T) {
	now := time.Now()
	store := newMemStore(alice, bob)
	store.subscriptions[alice.ID] = []string{"BBC World"}
	store.subscriptions[bob.ID] = []string{"BBC World", "NPR"}

	f := fakeFetcher{result: fetcher.Result{
		Sources: 2,
		Articles: []model.Article{
			article("BBC World", "floods", 10*time.Minute, now),
			article("NPR", "elections", 2*time.Hour, now),
		},
	}}
	transport := &fakeTransport{}

	report, err := newTestPipeline(f, store, transport).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.State != StateCompleted || report.New != 2 || report.Fetched != 2 {
		t.Errorf("report = %+v", report)
	}

	byEmail := map[string][]string{}
	for _, s := range transport.calls() {
		byEmail[s.Email] = s.Headlines
	}

	want := map[string][]string{
		alice.Email: {"floods"},
		bob.Email:   {"floods", "elections"},
	}
	if diff := cmp.Diff(want, byEmail); diff != "" {
		t.Errorf("sent digests mismatch (-want +got):\n%s", diff)
	}
}

func TestRunSkipsUserWithoutSubscriptions(t *testing.T) {
	now := time.Now()
	store := newMemStore(carol)

	f := fakeFetcher{result: fetcher.Result{
		Sources:  1,
		Articles: []model.Article{article("BBC World", "floods", time.Minute, now)},
	}}
	transport := &fakeTransport{}

	report, err := newTestPipeline(f, store, transport).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if n := len(transport.calls()); n != 0 {
		t.Errorf("transport called %d times, want 0", n)
	}
	if len(report.Users) != 1 || !report.Users[0].Skipped {
		t.Errorf("users = %+v, want one skipped user", report.Users)
	}
}

func TestSecondRunDeliversNothingNew(t *testing.T) {
	now := time.Now()
	store := newMemStore(alice)
	store.subscriptions[alice.ID] = []string{"BBC World"}

	f := fakeFetcher{result: fetcher.Result{
		Sources:  1,
		Articles: []model.Article{article("BBC World", "floods", time.Minute, now)},
	}}
	transport := &fakeTransport{}
	p := newTestPipeline(f, store, transport)

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if report.New != 0 {
		t.Errorf("second run New = %d, want 0", report.New)
	}
	if report.DeliveredArticles() != 0 {
		t.Errorf("second run delivered %d articles, want 0", report.DeliveredArticles())
	}
	if n := len(transport.calls()); n != 1 {
		t.Errorf("transport called %d times, want 1", n)
	}
}

func TestRunPersistFailureStopsBeforeDelivery(t *testing.T) {
	now := time.Now()
	store := newMemStore(alice)
	store.subscriptions[alice.ID] = []string{"BBC World"}
	store.appendErr = errors.New("disk full")

	f := fakeFetcher{result: fetcher.Result{
		Sources:  1,
		Articles: []model.Article{article("BBC World", "floods", time.Minute, now)},
	}}
	transport := &fakeTransport{}

	report, err := newTestPipeline(f, store, transport).Run(context.Background())
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("Run() error = %v, want ErrPersist", err)
	}
	if report.State != StateFailed {
		t.Errorf("state = %s, want %s", report.State, StateFailed)
	}
	if n := len(transport.calls()); n != 0 {
		t.Errorf("transport called %d times, want 0", n)
	}
}

func TestRunUserFailureDoesNotStopOthers(t *testing.T) {
	now := time.Now()
	store := newMemStore(alice, bob)
	store.subscriptions[alice.ID] = []string{"BBC World"}
	store.subscriptions[bob.ID] = []string{"BBC World"}

	f := fakeFetcher{result: fetcher.Result{
		Sources:  1,
		Articles: []model.Article{article("BBC World", "floods", time.Minute, now)},
	}}
	transport := &fakeTransport{failTo: map[string]bool{alice.Email: true}}
	p := newTestPipeline(f, store, transport)

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.FailedUsers() != 1 || report.DeliveredUsers() != 1 {
		t.Errorf("failed=%d delivered=%d, want 1 and 1", report.FailedUsers(), report.DeliveredUsers())
	}
	if !errors.Is(report.Users[0].Err, delivery.ErrTransport) {
		t.Errorf("alice error = %v, want ErrTransport", report.Users[0].Err)
	}

	// Статья Алисы осталась недоставленной и уйдет, когда транспорт починится
	transport.failTo = nil
	report, err = p.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if report.Users[0].Delivered != 1 || report.Users[1].Delivered != 0 {
		t.Errorf("second run users = %+v", report.Users)
	}
}

func TestRunTotalFetchFailure(t *testing.T) {
	store := newMemStore(alice)
	store.subscriptions[alice.ID] = []string{"BBC World"}

	f := fakeFetcher{result: fetcher.Result{Sources: 2, Failed: []string{"a", "b"}}}

	report, err := newTestPipeline(f, store, &fakeTransport{}).Run(context.Background())
	if !errors.Is(err, ErrNoArticles) {
		t.Fatalf("Run() error = %v, want ErrNoArticles", err)
	}
	if len(report.FailedSources) != 2 {
		t.Errorf("failed sources = %v", report.FailedSources)
	}
}

func TestRunDedupAcrossSources(t *testing.T) {
	now := time.Now()
	store := newMemStore()

	same := article("BBC World", "X", time.Minute, now)
	dup := same
	dup.Source = "NPR"

	f := fakeFetcher{result: fetcher.Result{Sources: 2, Articles: []model.Article{same, dup}}}

	report, err := newTestPipeline(f, store, &fakeTransport{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.New != 1 {
		t.Fatalf("New = %d, want 1", report.New)
	}
	if store.articles[0].Source != "BBC World" {
		t.Errorf("kept source = %q, want first occurrence", store.articles[0].Source)
	}
}

type panicTransport struct{}

func (panicTransport) Send(context.Context, digest.Digest, model.User) error {
	panic("boom")
}

func TestRunRecoversUserPanic(t *testing.T) {
	now := time.Now()
	store := newMemStore(alice)
	store.subscriptions[alice.ID] = []string{"BBC World"}

	f := fakeFetcher{result: fetcher.Result{
		Sources:  1,
		Articles: []model.Article{article("BBC World", "floods", time.Minute, now)},
	}}

	report, err := newTestPipeline(f, store, panicTransport{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.FailedUsers() != 1 {
		t.Errorf("failed users = %d, want 1", report.FailedUsers())
	}
	if len(store.deliveries[alice.ID]) != 0 {
		t.Errorf("deliveries recorded after panic: %v", store.deliveries[alice.ID])
	}
}

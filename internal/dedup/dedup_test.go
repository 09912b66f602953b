package dedup

import (
	"testing"
	"time"

	"github.com/kovalyov-valentin/news-digest/internal/model"
)

func TestFingerprintDeterministic(t *testing.T) {
	t.Parallel()

	a := model.Article{Source: "BBC News", Headline: "X", LastModified: "2024-01-01T00:00:00Z"}
	b := model.Article{Source: "NPR", Headline: "X", LastModified: "2024-01-01T00:00:00Z", WebURL: "https://npr.org/x"}

	if Fingerprint(a) != Fingerprint(b) {
		t.Fatalf("fingerprint must depend only on headline and lastModified")
	}

	if got := len(Fingerprint(a)); got != 64 {
		t.Fatalf("unexpected fingerprint length: %d", got)
	}
}

func TestFingerprintConcatenationCollision(t *testing.T) {
	t.Parallel()

	a := model.Article{Headline: "ab", LastModified: "c"}
	b := model.Article{Headline: "a", LastModified: "bc"}

	if Fingerprint(a) != Fingerprint(b) {
		t.Fatalf("expected concatenation-equal articles to collide")
	}
}

func TestFingerprintEmptyArticle(t *testing.T) {
	t.Parallel()

	// sha256 от пустой строки
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Fingerprint(model.Article{}); got != empty {
		t.Fatalf("unexpected fingerprint for empty article: %s", got)
	}
}

func TestFilterNewSuppressesDuplicatesAcrossBatches(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	bbc := []model.Article{{Source: "BBC News", Headline: "X", LastModified: "2024-01-01T00:00:00Z"}}
	npr := []model.Article{{Source: "NPR", Headline: "X", LastModified: "2024-01-01T00:00:00Z"}}

	combined := append(append([]model.Article{}, bbc...), npr...)

	fresh, _ := FilterNew(combined, NewKnown(), now)
	if len(fresh) != 1 {
		t.Fatalf("expected 1 new article, got %d", len(fresh))
	}
	if fresh[0].Source != "BBC News" {
		t.Fatalf("expected first occurrence to win, got %s", fresh[0].Source)
	}
	if !fresh[0].DateAdded.Equal(now) {
		t.Fatalf("unexpected dateAdded: %v", fresh[0].DateAdded)
	}
	if fresh[0].Fingerprint != Fingerprint(bbc[0]) {
		t.Fatalf("fingerprint was not attached")
	}
}

func TestFilterNewIsIdempotent(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	batch := []model.Article{
		{Headline: "A", LastModified: "2024-01-01T00:00:00Z"},
		{Headline: "B", LastModified: "2024-01-01T01:00:00Z"},
	}

	first, known := FilterNew(batch, NewKnown(), now)
	if len(first) != 2 {
		t.Fatalf("expected 2 new articles, got %d", len(first))
	}

	second, _ := FilterNew(batch, known, now)
	if len(second) != 0 {
		t.Fatalf("expected second pass to contribute nothing, got %d", len(second))
	}
}

func TestFilterNewRespectsKnown(t *testing.T) {
	t.Parallel()

	seen := model.Article{Headline: "old", LastModified: "2023-12-31T00:00:00Z"}
	batch := []model.Article{seen, {Headline: "new"}}

	fresh, known := FilterNew(batch, NewKnown(Fingerprint(seen)), time.Now())
	if len(fresh) != 1 || fresh[0].Headline != "new" {
		t.Fatalf("unexpected result: %+v", fresh)
	}
	if !known.Contains(Fingerprint(batch[1])) {
		t.Fatalf("known set was not updated")
	}
}

func TestFilterNewLeavesInputKnownUntouched(t *testing.T) {
	t.Parallel()

	old := model.Article{Headline: "old", LastModified: "2023-12-31T00:00:00Z"}
	fresh := model.Article{Headline: "fresh", LastModified: "2024-01-01T00:00:00Z"}

	known := NewKnown(Fingerprint(old))

	_, updated := FilterNew([]model.Article{old, fresh, fresh}, known, time.Now())

	if known.Contains(Fingerprint(fresh)) {
		t.Fatalf("input known set was modified")
	}
	if !known.Contains(Fingerprint(old)) {
		t.Fatalf("input known set lost its fingerprint")
	}
	if !updated.Contains(Fingerprint(fresh)) || !updated.Contains(Fingerprint(old)) {
		t.Fatalf("updated set must contain old and new fingerprints")
	}

	// Пустая пачка возвращает то же множество
	if _, same := FilterNew(nil, known, time.Now()); !same.Contains(Fingerprint(old)) {
		t.Fatalf("empty batch lost known fingerprints")
	}
}

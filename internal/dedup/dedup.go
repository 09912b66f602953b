// Package dedup считает отпечатки статей и отсеивает уже виденные.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/kovalyov-valentin/news-digest/internal/model"
	"github.com/tomakado/containers/set"
)

// Fingerprint зависит только от заголовка и даты изменения.
// Строки склеиваются без разделителя, поэтому ("ab", "c") и ("a", "bc") дадут один отпечаток.
func Fingerprint(article model.Article) string {
	sum := sha256.Sum256([]byte(article.Headline + article.LastModified))
	return hex.EncodeToString(sum[:])
}

// Known множество известных отпечатков. Значение не меняется после создания
type Known struct {
	list []string
	set  set.HashSet[string]
}

// NewKnown собирает множество известных отпечатков
func NewKnown(fingerprints ...string) Known {
	list := append([]string(nil), fingerprints...)
	return Known{list: list, set: set.New(list...)}
}

func (k Known) Contains(fp string) bool {
	return len(k.list) > 0 && k.set.Contains(fp)
}

// FilterNew проходит пачку в исходном порядке и оставляет только первое вхождение каждого отпечатка.
// Отпечатки, увиденные в пачке, сразу учитываются, поэтому дубли внутри одной пачки тоже отсекаются.
// Новым статьям проставляются отпечаток и время добавления now.
// known не меняется, пополненное множество возвращается новым значением.
func FilterNew(batch []model.Article, known Known, now time.Time) ([]model.Article, Known) {
	var (
		fresh []model.Article
		added []string
		seen  = set.New[string]()
	)

	for _, article := range batch {
		fp := Fingerprint(article)
		if known.Contains(fp) || seen.Contains(fp) {
			continue
		}

		seen.Add(fp)
		added = append(added, fp)

		article.Fingerprint = fp
		article.DateAdded = now
		fresh = append(fresh, article)
	}

	if len(added) == 0 {
		return fresh, known
	}

	return fresh, NewKnown(append(append([]string(nil), known.list...), added...)...)
}

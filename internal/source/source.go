package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/kovalyov-valentin/news-digest/internal/model"
)

var ErrMissingAPIKey = errors.New("api key is not configured")

// Общий интерфейс адаптеров источников
type Adapter interface {
	ID() int64
	Name() string
	Meta() model.SourceMeta
	Fetch(ctx context.Context) ([]model.Item, error)
}

// Настройки, которые нужны адаптерам помимо самой записи источника
type Options struct {
	MaxItems         int
	GuardianAPIKey   string
	GuardianSection  string
	GuardianPageSize int
	HTTPClient       *http.Client
}

// New выбирает адаптер по типу источника
func New(src model.Source, opts Options) (Adapter, error) {
	switch src.Kind {
	case model.SourceKindFeed, "rss":
		return NewRSSSourceFromModel(src, opts.MaxItems, opts.HTTPClient), nil
	case model.SourceKindAPI:
		if opts.GuardianAPIKey == "" {
			return nil, fmt.Errorf("source %s: %w", src.Name, ErrMissingAPIKey)
		}
		return NewGuardianSourceFromModel(src, opts.GuardianAPIKey, opts.GuardianSection, opts.GuardianPageSize, opts.HTTPClient), nil
	default:
		return nil, fmt.Errorf("source %s: unknown kind %q", src.Name, src.Kind)
	}
}

// Package seed заполняет хранилище источниками, пользователями и подписками из yaml.
// Повторный запуск безопасен: источники сверяются по url, пользователи по email.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/kovalyov-valentin/news-digest/internal/model"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultSeed []byte

// Значение subscribe, которое подписывает на все включенные источники
const AllActive = "all-active"

type Document struct {
	Sources []Source `yaml:"sources"`
	Users   []User   `yaml:"users"`
}

type Source struct {
	Name    string `yaml:"name"`
	Section string `yaml:"section"`
	Kind    string `yaml:"kind"`
	URL     string `yaml:"url"`
	Active  bool   `yaml:"active"`
}

type User struct {
	Email            string    `yaml:"email"`
	FirstName        string    `yaml:"first_name"`
	LastName         string    `yaml:"last_name"`
	Timezone         string    `yaml:"timezone"`
	DeliverySchedule string    `yaml:"delivery_schedule"`
	Tier             int       `yaml:"tier"`
	Subscribe        Subscribe `yaml:"subscribe"`
}

// Subscribe либо all-active, либо список имен источников
type Subscribe struct {
	AllActive bool
	Names     []string
}

func (s *Subscribe) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Value != AllActive {
			return fmt.Errorf("line %d: subscribe must be %q or a list of source names, got %q", value.Line, AllActive, value.Value)
		}
		s.AllActive = true
		return nil
	case yaml.SequenceNode:
		return value.Decode(&s.Names)
	default:
		return fmt.Errorf("line %d: subscribe must be %q or a list of source names", value.Line, AllActive)
	}
}

// Load читает документ из файла. Если файла нет, возвращается встроенный набор по умолчанию
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("[INFO] seed file %s not found, using default seed", path)
		return Parse(bytes.NewReader(defaultSeed))
	}
	if err != nil {
		return Document{}, fmt.Errorf("read seed file: %w", err)
	}

	return Parse(bytes.NewReader(data))
}

func Default() (Document, error) {
	return Parse(bytes.NewReader(defaultSeed))
}

func Parse(r io.Reader) (Document, error) {
	var doc Document

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return Document{}, fmt.Errorf("decode seed: %w", err)
	}

	for i, src := range doc.Sources {
		if src.Name == "" || src.URL == "" {
			return Document{}, fmt.Errorf("source #%d: name and url are required", i+1)
		}
		switch src.Kind {
		case "", "rss":
			doc.Sources[i].Kind = string(model.SourceKindFeed)
		case string(model.SourceKindFeed), string(model.SourceKindAPI):
		default:
			return Document{}, fmt.Errorf("source %s: unknown kind %q", src.URL, src.Kind)
		}
	}

	for i, u := range doc.Users {
		if u.Email == "" {
			return Document{}, fmt.Errorf("user #%d: email is required", i+1)
		}
	}

	return doc, nil
}

type SourceStore interface {
	Sources(ctx context.Context) ([]model.Source, error)
	Add(ctx context.Context, source model.Source) (int64, error)
}

type UserStore interface {
	Add(ctx context.Context, user model.User) (int64, error)
	Subscribe(ctx context.Context, userID, sourceID int64) error
}

// Итог применения сида: сколько записей обработано, включая уже существовавшие
type Stats struct {
	Sources       int
	Users         int
	Subscriptions int
}

// Apply добавляет источники и пользователей и подписывает пользователей.
// Существующие записи не меняются, в том числе флаг active у источника
func Apply(ctx context.Context, doc Document, sources SourceStore, users UserStore) (Stats, error) {
	var stats Stats

	for _, src := range doc.Sources {
		if _, err := sources.Add(ctx, model.Source{
			Name:    src.Name,
			Section: src.Section,
			Kind:    model.SourceKind(src.Kind),
			URL:     src.URL,
			Active:  src.Active,
		}); err != nil {
			return stats, fmt.Errorf("add source %s: %w", src.URL, err)
		}
		stats.Sources++
	}

	all, err := sources.Sources(ctx)
	if err != nil {
		return stats, err
	}

	for _, u := range doc.Users {
		userID, err := users.Add(ctx, model.User{
			Email:            u.Email,
			FirstName:        u.FirstName,
			LastName:         u.LastName,
			Timezone:         u.Timezone,
			DeliverySchedule: u.DeliverySchedule,
			Tier:             u.Tier,
			Active:           true,
		})
		if err != nil {
			return stats, fmt.Errorf("add user %s: %w", u.Email, err)
		}
		stats.Users++

		for _, src := range subscribedSources(all, u.Subscribe) {
			if err := users.Subscribe(ctx, userID, src.ID); err != nil {
				return stats, fmt.Errorf("subscribe %s to %s: %w", u.Email, src.URL, err)
			}
			stats.Subscriptions++
		}
	}

	return stats, nil
}

// По имени подписываемся на все источники с этим именем, включая выключенные
func subscribedSources(all []model.Source, sub Subscribe) []model.Source {
	if sub.AllActive {
		return lo.Filter(all, func(s model.Source, _ int) bool { return s.Active })
	}

	return lo.Filter(all, func(s model.Source, _ int) bool {
		return lo.Contains(sub.Names, s.Name)
	})
}

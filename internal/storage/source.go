package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/kovalyov-valentin/news-digest/internal/model"
	"github.com/samber/lo"
)

var ErrSourceNotFound = errors.New("source not found")

var sourceColumns = []string{"id", "source_name", "section", "source_type", "url", "active", "date_added"}

// Хранилище источников. Источники не удаляются, их можно только выключить
type SourceStorage struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

func NewSourceStorage(db *sqlx.DB) *SourceStorage {
	return &SourceStorage{db: db, sb: builder(db)}
}

// Метод для получения списка всех источников
func (s *SourceStorage) Sources(ctx context.Context) ([]model.Source, error) {
	return s.selectSources(ctx, s.sb.Select(sourceColumns...).From("news_sources").OrderBy("id"))
}

// Только включенные источники, в порядке id. От этого порядка зависит, какой дубль победит при дедупликации
func (s *SourceStorage) ActiveSources(ctx context.Context) ([]model.Source, error) {
	return s.selectSources(ctx, s.sb.Select(sourceColumns...).
		From("news_sources").
		Where(sq.Eq{"active": true}).
		OrderBy("id"))
}

// Метод для получения источника по его id
func (s *SourceStorage) SourceByID(ctx context.Context, id int64) (*model.Source, error) {
	query, args, err := s.sb.Select(sourceColumns...).From("news_sources").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}

	var source dbSource
	if err := s.db.GetContext(ctx, &source, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("source %d: %w", id, ErrSourceNotFound)
		}
		return nil, unavailable("get source", err)
	}

	m := source.toModel()
	return &m, nil
}

// Метод для добавления источника. Если источник с таким url уже есть, возвращается его id
func (s *SourceStorage) Add(ctx context.Context, source model.Source) (int64, error) {
	if source.CreatedAt.IsZero() {
		source.CreatedAt = time.Now()
	}
	if source.Kind == "" {
		source.Kind = model.SourceKindFeed
	}

	query, args, err := s.sb.Insert("news_sources").
		Columns("source_name", "section", "source_type", "url", "active", "date_added").
		Values(source.Name, source.Section, string(source.Kind), source.URL, source.Active, formatTime(source.CreatedAt)).
		Suffix("ON CONFLICT (url) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.db.QueryRowxContext(ctx, query, args...).Scan(&id)
	switch {
	case err == nil:
		return id, nil
	case errors.Is(err, sql.ErrNoRows):
		return s.idByURL(ctx, source.URL)
	default:
		return 0, unavailable("add source", err)
	}
}

// Включение и выключение источника, единственное изменение, которое допускается
func (s *SourceStorage) SetActive(ctx context.Context, id int64, active bool) error {
	query, args, err := s.sb.Update("news_sources").Set("active", active).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return unavailable("set source active", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("set source active", err)
	}
	if n == 0 {
		return fmt.Errorf("source %d: %w", id, ErrSourceNotFound)
	}

	return nil
}

func (s *SourceStorage) idByURL(ctx context.Context, url string) (int64, error) {
	query, args, err := s.sb.Select("id").From("news_sources").Where(sq.Eq{"url": url}).ToSql()
	if err != nil {
		return 0, err
	}

	var id int64
	if err := s.db.GetContext(ctx, &id, query, args...); err != nil {
		return 0, unavailable("get source id", err)
	}
	return id, nil
}

func (s *SourceStorage) selectSources(ctx context.Context, b sq.SelectBuilder) ([]model.Source, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	var sources []dbSource
	if err := s.db.SelectContext(ctx, &sources, query, args...); err != nil {
		return nil, unavailable("select sources", err)
	}

	return lo.Map(sources, func(source dbSource, _ int) model.Source {
		return source.toModel()
	}), nil
}

// Внутренняя модель для работы с БД, чтобы правильно мапить его на колонки в таблице
type dbSource struct {
	ID        int64  `db:"id"`
	Name      string `db:"source_name"`
	Section   string `db:"section"`
	Kind      string `db:"source_type"`
	URL       string `db:"url"`
	Active    bool   `db:"active"`
	CreatedAt string `db:"date_added"`
}

func (s dbSource) toModel() model.Source {
	return model.Source{
		ID:        s.ID,
		Name:      s.Name,
		Section:   s.Section,
		Kind:      model.SourceKind(s.Kind),
		URL:       s.URL,
		Active:    s.Active,
		CreatedAt: parseTime(s.CreatedAt),
	}
}

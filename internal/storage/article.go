package storage

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/kovalyov-valentin/news-digest/internal/model"
	"github.com/samber/lo"
)

var articleColumns = []string{"id", "date_added", "last_modified", "source", "section_name", "headline", "web_url", "hash"}

// Хранилище статей, только дописывается
type ArticleStorage struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

func NewArticleStorage(db *sqlx.DB) *ArticleStorage {
	return &ArticleStorage{db: db, sb: builder(db)}
}

// Все отпечатки, которые уже есть в базе
func (s *ArticleStorage) AllFingerprints(ctx context.Context) ([]string, error) {
	query, args, err := s.sb.Select("hash").From("news_articles").ToSql()
	if err != nil {
		return nil, err
	}

	var hashes []string
	if err := s.db.SelectContext(ctx, &hashes, query, args...); err != nil {
		return nil, unavailable("select fingerprints", err)
	}

	return hashes, nil
}

// AppendArticles сохраняет пачку одной транзакцией: либо все, либо ничего.
// Статья с уже существующим отпечатком пропускается, для нее id не возвращается
func (s *ArticleStorage) AppendArticles(ctx context.Context, articles []model.Article) ([]int64, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin append articles", err)
	}
	defer tx.Rollback()

	ids := make([]int64, 0, len(articles))
	for _, a := range articles {
		query, args, err := s.sb.Insert("news_articles").
			Columns("date_added", "last_modified", "source", "section_name", "headline", "web_url", "hash").
			Values(formatTime(a.DateAdded), a.LastModified, a.Source, a.Section, a.Headline, a.WebURL, a.Fingerprint).
			Suffix("ON CONFLICT (hash) DO NOTHING RETURNING id").
			ToSql()
		if err != nil {
			return nil, err
		}

		var id int64
		if err := tx.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, unavailable("insert article "+a.Fingerprint, err)
		}

		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, unavailable("commit append articles", err)
	}

	return ids, nil
}

// Статьи из перечисленных источников, сначала недавно добавленные
func (s *ArticleStorage) ArticlesFromSources(ctx context.Context, names []string) ([]model.Article, error) {
	return articlesFromSources(ctx, s.db, s.sb, names)
}

func articlesFromSources(ctx context.Context, q sqlx.QueryerContext, sb sq.StatementBuilderType, names []string) ([]model.Article, error) {
	if len(names) == 0 {
		return nil, nil
	}

	query, args, err := sb.Select(articleColumns...).
		From("news_articles").
		Where(sq.Eq{"source": names}).
		OrderBy("id DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []dbArticle
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, unavailable("select articles", err)
	}

	return lo.Map(rows, func(a dbArticle, _ int) model.Article {
		return a.toModel()
	}), nil
}

type dbArticle struct {
	ID           int64  `db:"id"`
	DateAdded    string `db:"date_added"`
	LastModified string `db:"last_modified"`
	Source       string `db:"source"`
	Section      string `db:"section_name"`
	Headline     string `db:"headline"`
	WebURL       string `db:"web_url"`
	Hash         string `db:"hash"`
}

func (a dbArticle) toModel() model.Article {
	return model.Article{
		ID:           a.ID,
		Source:       a.Source,
		Headline:     a.Headline,
		Section:      a.Section,
		LastModified: a.LastModified,
		WebURL:       a.WebURL,
		Fingerprint:  a.Hash,
		DateAdded:    parseTime(a.DateAdded),
	}
}

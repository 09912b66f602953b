package storage

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/kovalyov-valentin/news-digest/internal/model"
)

// Журнал доставок. Запись в user_deliveries единственный признак того, что пользователь статью уже получил
type DeliveryStorage struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

func NewDeliveryStorage(db *sqlx.DB) *DeliveryStorage {
	return &DeliveryStorage{db: db, sb: builder(db)}
}

// Сессия доставки одному пользователю: транзакция, которая держит блокировку на этого пользователя
// от выборки недоставленного до записи доставок
type DeliverySession struct {
	tx     *sqlx.Tx
	sb     sq.StatementBuilderType
	userID int64
}

// Begin открывает транзакцию и блокирует пользователя.
// В Postgres это advisory lock до конца транзакции, в SQLite транзакция и так открывается на запись
func (s *DeliveryStorage) Begin(ctx context.Context, userID int64) (*DeliverySession, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin delivery", err)
	}

	if s.db.DriverName() == DriverPostgres {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, userID); err != nil {
			_ = tx.Rollback()
			return nil, unavailable("lock user", err)
		}
	}

	return &DeliverySession{tx: tx, sb: s.sb, userID: userID}, nil
}

// id статей, которые пользователь уже получил
func (s *DeliverySession) DeliveredArticleIDs(ctx context.Context) ([]int64, error) {
	query, args, err := s.sb.Select("article_id").From("user_deliveries").Where(sq.Eq{"user_id": s.userID}).ToSql()
	if err != nil {
		return nil, err
	}

	var ids []int64
	if err := s.tx.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, unavailable("select deliveries", err)
	}

	return ids, nil
}

func (s *DeliverySession) ArticlesFromSources(ctx context.Context, names []string) ([]model.Article, error) {
	return articlesFromSources(ctx, s.tx, s.sb, names)
}

// RecordDeliveries пишет факты доставки. Уже существующая пара (user, article) не дублируется
func (s *DeliverySession) RecordDeliveries(ctx context.Context, articleIDs []int64, at time.Time) error {
	for _, id := range articleIDs {
		query, args, err := s.sb.Insert("user_deliveries").
			Columns("user_id", "article_id", "delivered_at").
			Values(s.userID, id, formatTime(at)).
			Suffix("ON CONFLICT (user_id, article_id) DO NOTHING").
			ToSql()
		if err != nil {
			return err
		}

		if _, err := s.tx.ExecContext(ctx, query, args...); err != nil {
			return unavailable("insert delivery", err)
		}
	}

	return nil
}

func (s *DeliverySession) Commit() error {
	if err := s.tx.Commit(); err != nil {
		return unavailable("commit delivery", err)
	}
	return nil
}

func (s *DeliverySession) Rollback() error {
	return s.tx.Rollback()
}

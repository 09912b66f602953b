package storage

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Схема общая, отличается только автоинкрементный ключ
var schema = []string{
	`CREATE TABLE IF NOT EXISTS news_sources (
		id {{pk}},
		source_name TEXT NOT NULL,
		section TEXT NOT NULL DEFAULT '',
		source_type TEXT NOT NULL,
		url TEXT NOT NULL UNIQUE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		date_added TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS news_articles (
		id {{pk}},
		date_added TEXT NOT NULL,
		last_modified TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL,
		section_name TEXT NOT NULL DEFAULT '',
		headline TEXT NOT NULL,
		web_url TEXT NOT NULL DEFAULT '',
		hash VARCHAR(64) NOT NULL UNIQUE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_news_articles_source ON news_articles (source)`,
	`CREATE TABLE IF NOT EXISTS users (
		id {{pk}},
		email TEXT NOT NULL UNIQUE,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL DEFAULT '',
		timezone TEXT NOT NULL DEFAULT 'Europe/Berlin',
		delivery_schedule TEXT NOT NULL DEFAULT 'daily',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		tier INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_subscriptions (
		id {{pk}},
		user_id BIGINT NOT NULL REFERENCES users (id),
		source_id BIGINT NOT NULL REFERENCES news_sources (id),
		subscribed_at TEXT NOT NULL,
		UNIQUE (user_id, source_id)
	)`,
	`CREATE TABLE IF NOT EXISTS user_deliveries (
		id {{pk}},
		user_id BIGINT NOT NULL REFERENCES users (id),
		article_id BIGINT NOT NULL REFERENCES news_articles (id),
		delivered_at TEXT NOT NULL,
		UNIQUE (user_id, article_id)
	)`,
}

// Migrate создает таблицы, если их еще нет. Повторный запуск ничего не ломает
func Migrate(ctx context.Context, db *sqlx.DB) error {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.DriverName() == DriverPostgres {
		pk = "BIGSERIAL PRIMARY KEY"
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, strings.ReplaceAll(stmt, "{{pk}}", pk)); err != nil {
			return unavailable("migrate", err)
		}
	}

	return nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Хранилище недоступно: не смогли подключиться, прочитать или записать
var ErrUnavailable = errors.New("storage unavailable")

// Время в базе храним строкой, одинаково для обоих драйверов
const timeLayout = time.RFC3339Nano

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// Open подключается к базе выбранным драйвером
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverPostgres:
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, unavailable("connect", err)
	}

	if driver == DriverPostgres {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// Параметры соединения SQLite, которые добавляются, если в DSN их нет.
// _txlock=immediate: все транзакции берут блокировку на запись сразу (BEGIN IMMEDIATE),
// чтобы два прогона не выбирали одни и те же недоставленные статьи одновременно
var sqliteParams = []struct {
	key   string
	param string
}{
	{key: "busy_timeout", param: "_pragma=busy_timeout(60000)"},
	{key: "journal_mode", param: "_pragma=journal_mode(WAL)"},
	{key: "foreign_keys", param: "_pragma=foreign_keys(1)"},
	{key: "_txlock", param: "_txlock=immediate"},
}

// Параметры, которые пользователь задал сам, не переопределяются
func sqliteDSN(dsn string) string {
	path, query, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")

	var params []string
	if query != "" {
		params = append(params, query)
	}
	for _, p := range sqliteParams {
		if !strings.Contains(query, p.key) {
			params = append(params, p.param)
		}
	}

	return "file:" + path + "?" + strings.Join(params, "&")
}

// Билдер запросов с плейсхолдерами под драйвер
func builder(db *sqlx.DB) sq.StatementBuilderType {
	if db.DriverName() == DriverPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

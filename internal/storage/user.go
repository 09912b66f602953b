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

var ErrUserNotFound = errors.New("user not found")

var userColumns = []string{"id", "email", "first_name", "last_name", "timezone", "delivery_schedule", "active", "tier", "created_at"}

type UserStorage struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

func NewUserStorage(db *sqlx.DB) *UserStorage {
	return &UserStorage{db: db, sb: builder(db)}
}

func (s *UserStorage) ActiveUsers(ctx context.Context) ([]model.User, error) {
	query, args, err := s.sb.Select(userColumns...).From("users").Where(sq.Eq{"active": true}).OrderBy("id").ToSql()
	if err != nil {
		return nil, err
	}

	var users []dbUser
	if err := s.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, unavailable("select active users", err)
	}

	return lo.Map(users, func(u dbUser, _ int) model.User {
		return u.toModel()
	}), nil
}

func (s *UserStorage) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	query, args, err := s.sb.Select(userColumns...).From("users").Where(sq.Eq{"email": email}).ToSql()
	if err != nil {
		return nil, err
	}

	var user dbUser
	if err := s.db.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", email, ErrUserNotFound)
		}
		return nil, unavailable("get user", err)
	}

	m := user.toModel()
	return &m, nil
}

// Add создает пользователя. Если email уже занят, возвращает id существующего
func (s *UserStorage) Add(ctx context.Context, user model.User) (int64, error) {
	if user.Timezone == "" {
		user.Timezone = model.DefaultTimezone
	}
	if user.DeliverySchedule == "" {
		user.DeliverySchedule = "daily"
	}
	if user.Tier == 0 {
		user.Tier = 1
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	query, args, err := s.sb.Insert("users").
		Columns("email", "first_name", "last_name", "timezone", "delivery_schedule", "active", "tier", "created_at").
		Values(user.Email, user.FirstName, user.LastName, user.Timezone, user.DeliverySchedule, user.Active, user.Tier, formatTime(user.CreatedAt)).
		Suffix("ON CONFLICT (email) DO NOTHING RETURNING id").
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
		existing, err := s.UserByEmail(ctx, user.Email)
		if err != nil {
			return 0, err
		}
		return existing.ID, nil
	default:
		return 0, unavailable("add user", err)
	}
}

// Subscribe подписывает пользователя на источник. Повторная подписка ничего не делает
func (s *UserStorage) Subscribe(ctx context.Context, userID, sourceID int64) error {
	query, args, err := s.sb.Insert("user_subscriptions").
		Columns("user_id", "source_id", "subscribed_at").
		Values(userID, sourceID, formatTime(time.Now())).
		Suffix("ON CONFLICT (user_id, source_id) DO NOTHING").
		ToSql()
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return unavailable("subscribe", err)
	}
	return nil
}

// Отписка удаляет связь, уже доставленные статьи не трогаются
func (s *UserStorage) Unsubscribe(ctx context.Context, userID, sourceID int64) error {
	query, args, err := s.sb.Delete("user_subscriptions").
		Where(sq.Eq{"user_id": userID, "source_id": sourceID}).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return unavailable("unsubscribe", err)
	}
	return nil
}

// Имена источников, на которые подписан пользователь.
// Статьи привязаны к источнику по имени, поэтому и здесь возвращаем имена, а не id
func (s *UserStorage) SourcesForUser(ctx context.Context, userID int64) ([]string, error) {
	query, args, err := s.sb.Select("DISTINCT s.source_name").
		From("user_subscriptions us").
		Join("news_sources s ON s.id = us.source_id").
		Where(sq.Eq{"us.user_id": userID}).
		OrderBy("s.source_name").
		ToSql()
	if err != nil {
		return nil, err
	}

	var names []string
	if err := s.db.SelectContext(ctx, &names, query, args...); err != nil {
		return nil, unavailable("select subscriptions", err)
	}

	return names, nil
}

type dbUser struct {
	ID               int64  `db:"id"`
	Email            string `db:"email"`
	FirstName        string `db:"first_name"`
	LastName         string `db:"last_name"`
	Timezone         string `db:"timezone"`
	DeliverySchedule string `db:"delivery_schedule"`
	Active           bool   `db:"active"`
	Tier             int    `db:"tier"`
	CreatedAt        string `db:"created_at"`
}

func (u dbUser) toModel() model.User {
	return model.User{
		ID:               u.ID,
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Timezone:         u.Timezone,
		DeliverySchedule: u.DeliverySchedule,
		Active:           u.Active,
		Tier:             u.Tier,
		CreatedAt:        parseTime(u.CreatedAt),
	}
}

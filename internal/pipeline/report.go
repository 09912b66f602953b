package pipeline

import (
	"time"

	"github.com/samber/lo"
)

type State string

const (
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
)

// Результат обработки одного пользователя
type UserResult struct {
	UserID    int64
	Email     string
	Delivered int
	// Нет подписок или нечего отправлять
	Skipped bool
	Err     error
}

// Итог прогона
type Report struct {
	RunID      string
	State      State
	StartedAt  time.Time
	FinishedAt time.Time

	Sources       int
	FailedSources []string
	Fetched       int
	New           int

	Users []UserResult
	Err   error
}

func (r Report) DeliveredUsers() int {
	return lo.CountBy(r.Users, func(u UserResult) bool { return u.Delivered > 0 })
}

func (r Report) FailedUsers() int {
	return lo.CountBy(r.Users, func(u UserResult) bool { return u.Err != nil })
}

func (r Report) DeliveredArticles() int {
	return lo.SumBy(r.Users, func(u UserResult) int { return u.Delivered })
}

package model

import "time"

// Тип источника: RSS/Atom лента или JSON API поиска
type SourceKind string

const (
	SourceKindFeed SourceKind = "feed"
	SourceKindAPI  SourceKind = "api"
)

// Часовой пояс пользователя по умолчанию, если в записи он не указан
const DefaultTimezone = "Europe/Berlin"

// Запись, как она пришла из адаптера источника, до нормализации
type Item struct {
	// Заголовок
	Title string
	// Категории (теги) записи
	Categories []string
	// Ссылка
	Link string
	// Дата в том виде, в котором ее отдал источник. Может быть пустой или нераспознаваемой
	RawDate string
	// Уже распарсенная адаптером дата, если адаптер это умеет
	Date time.Time
	// Раздел, если его отдает сам источник
	Section string
}

// Статическая метаинформация источника, которая приклеивается к каждой статье
type SourceMeta struct {
	Name    string
	Section string
}

// Модель источника
type Source struct {
	ID int64
	// Имя. По нему статьи привязываются к подпискам
	Name    string
	Section string
	Kind    SourceKind
	// Урл откуда забираем данные, уникальный
	URL    string
	Active bool
	// Время создания
	CreatedAt time.Time
}

func (s Source) Meta() SourceMeta {
	return SourceMeta{Name: s.Name, Section: s.Section}
}

// Каноническая статья. Имена полей в json общие для всех границ системы
type Article struct {
	ID           int64     `json:"-"`
	Source       string    `json:"source"`
	Headline     string    `json:"headline"`
	Section      string    `json:"section"`
	LastModified string    `json:"lastModified"`
	WebURL       string    `json:"webUrl"`
	Fingerprint  string    `json:"fingerprint"`
	DateAdded    time.Time `json:"dateAdded"`
}

// Получатель дайджеста
type User struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
	// IANA имя часового пояса
	Timezone string
	// Желаемая периодичность: hourly, 6h, daily. Здесь только для информации
	DeliverySchedule string
	Active           bool
	// 1 - free, 2 - paid
	Tier      int
	CreatedAt time.Time
}

func (u User) DisplayName() string {
	return u.FirstName
}

// Связь пользователь - источник
type Subscription struct {
	UserID       int64
	SourceID     int64
	SubscribedAt time.Time
}

// Факт доставки статьи пользователю
type Delivery struct {
	UserID      int64
	ArticleID   int64
	DeliveredAt time.Time
}

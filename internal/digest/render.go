package digest

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/kovalyov-valentin/news-digest/internal/botkit/markup"
	"github.com/kovalyov-valentin/news-digest/internal/model"
	"github.com/samber/lo"
)

// Формат даты в письме, например "2024 January 1 at 13:05 CET"
const displayLayout = "2006 January 2 at 15:04 MST"

// Готовый к отправке дайджест одного пользователя
type Digest struct {
	Subject  string
	Greeting string
	Title    string
	Total    int
	Sections []Section
}

type Section struct {
	Label   string
	Heading string
	Entries []Entry
}

// Статья в том виде, в котором ее видит пользователь
type Entry struct {
	ArticleID   int64
	Fingerprint string
	Headline    string
	Source      string
	Section     string
	URL         string
	// Дата в часовом поясе пользователя или "N/A"
	Updated string
}

// Render собирает дайджест из корзин. Входные данные не меняются
func Render(buckets []Bucket, user model.User) Digest {
	loc := Location(user.Timezone)

	total := lo.SumBy(buckets, func(b Bucket) int { return len(b.Articles) })

	sections := lo.Map(buckets, func(b Bucket, _ int) Section {
		return Section{
			Label:   b.Label,
			Heading: fmt.Sprintf("In the %s (%d)", b.Label, len(b.Articles)),
			Entries: lo.Map(b.Articles, func(a model.Article, _ int) Entry {
				return renderEntry(a, loc)
			}),
		}
	})

	greeting := "Hi,"
	if name := user.DisplayName(); name != "" {
		greeting = fmt.Sprintf("Hi %s,", name)
	}

	return Digest{
		Subject:  fmt.Sprintf("New Articles for %s (%d)", user.DisplayName(), total),
		Greeting: greeting,
		Title:    fmt.Sprintf("Your New Articles (%d)", total),
		Total:    total,
		Sections: sections,
	}
}

func renderEntry(a model.Article, loc *time.Location) Entry {
	source := a.Source
	if source == "" {
		source = "Unknown"
	}

	return Entry{
		ArticleID:   a.ID,
		Fingerprint: a.Fingerprint,
		Headline:    a.Headline,
		Source:      source,
		Section:     a.Section,
		URL:         a.WebURL,
		Updated:     LocalTime(a.LastModified, loc),
	}
}

// Location загружает часовой пояс пользователя. Пустое или неизвестное имя дает UTC
func Location(zone string) *time.Location {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LocalTime переводит lastModified в часовой пояс loc. Нераспознанная дата превращается в "N/A"
func LocalTime(raw string, loc *time.Location) string {
	ts, ok := ParseTimestamp(raw)
	if !ok {
		return "N/A"
	}
	return ts.In(loc).Format(displayLayout)
}

// Fingerprints всех статей дайджеста, для логов
func (d Digest) Fingerprints() []string {
	return lo.FlatMap(d.Sections, func(s Section, _ int) []string {
		return lo.Map(s.Entries, func(e Entry, _ int) string { return e.Fingerprint })
	})
}

var urlReplacer = strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)

// Markdown тело письма, весь пользовательский текст экранирован
func (d Digest) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n\n", markup.EscapeForMarkdown(d.Greeting))
	fmt.Fprintf(&b, "# %s\n", markup.EscapeForMarkdown(d.Title))

	for _, s := range d.Sections {
		fmt.Fprintf(&b, "\n## %s\n", markup.EscapeForMarkdown(s.Heading))

		for _, e := range s.Entries {
			headline := markup.EscapeForMarkdown(e.Headline)
			if e.URL != "" {
				headline = fmt.Sprintf("[%s](%s)", headline, urlReplacer.Replace(e.URL))
			}

			fmt.Fprintf(&b, "\n### %s\n\n", headline)
			fmt.Fprintf(&b, "**Source:** %s  \n", markup.EscapeForMarkdown(e.Source))
			fmt.Fprintf(&b, "**Section:** %s  \n", markup.EscapeForMarkdown(e.Section))
			fmt.Fprintf(&b, "**Last Updated:** %s\n", markup.EscapeForMarkdown(e.Updated))
		}
	}

	return b.String()
}

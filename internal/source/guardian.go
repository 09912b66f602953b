package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kovalyov-valentin/news-digest/internal/model"
)

const GuardianSearchURL = "https://content.guardianapis.com/search"

// Клиент JSON API поиска Guardian
type GuardianSource struct {
	URL        string
	SourceID   int64
	SourceName string
	Section    string

	apiKey   string
	query    string
	pageSize int
	client   *http.Client
}

func NewGuardianSourceFromModel(m model.Source, apiKey, query string, pageSize int, client *http.Client) GuardianSource {
	if client == nil {
		client = http.DefaultClient
	}

	endpoint := m.URL
	if endpoint == "" {
		endpoint = GuardianSearchURL
	}

	return GuardianSource{
		URL:        endpoint,
		SourceID:   m.ID,
		SourceName: m.Name,
		Section:    m.Section,
		apiKey:     apiKey,
		query:      query,
		pageSize:   pageSize,
		client:     client,
	}
}

// Ответ API, нам нужны только поля результатов
type guardianResponse struct {
	Response struct {
		Status  string `json:"status"`
		Results []struct {
			SectionName string `json:"sectionName"`
			WebURL      string `json:"webUrl"`
			Fields      struct {
				Headline     string `json:"headline"`
				LastModified string `json:"lastModified"`
			} `json:"fields"`
		} `json:"results"`
	} `json:"response"`
}

func (s GuardianSource) Fetch(ctx context.Context) ([]model.Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.requestURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("build guardian request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("guardian request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("guardian request: unexpected status %d", resp.StatusCode)
	}

	var payload guardianResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode guardian response: %w", err)
	}

	items := make([]model.Item, 0, len(payload.Response.Results))
	for _, r := range payload.Response.Results {
		items = append(items, model.Item{
			Title:   r.Fields.Headline,
			Link:    r.WebURL,
			RawDate: r.Fields.LastModified,
			Section: r.SectionName,
		})
	}

	return items, nil
}

func (s GuardianSource) requestURL() string {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("order-by", "newest")
	params.Set("query-fields", "headline,body")
	params.Set("show-fields", "headline,byline,publication,lastModified,wordcount")
	params.Set("shouldHideAdverts", "true")
	if s.pageSize > 0 {
		params.Set("page-size", strconv.Itoa(s.pageSize))
	}
	if s.query != "" {
		params.Set("section", s.query)
	}
	params.Set("api-key", s.apiKey)

	return s.URL + "?" + params.Encode()
}

func (s GuardianSource) ID() int64 {
	return s.SourceID
}

func (s GuardianSource) Name() string {
	return s.SourceName
}

// Раздел из ответа API приоритетнее, раздел источника остается запасным
func (s GuardianSource) Meta() model.SourceMeta {
	return model.SourceMeta{Name: s.SourceName, Section: s.Section}
}

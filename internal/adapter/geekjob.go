package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/akarpov/jobscout/internal/joburl"
	"github.com/akarpov/jobscout/internal/model"
)

// gjVacancy is a single vacancy in the GeekJob search response.
type gjVacancy struct {
	ID        string      `json:"id"`
	Position  string      `json:"position"`
	Salary    string      `json:"salary"`
	City      string      `json:"city"`
	Country   string      `json:"country"`
	JobFormat gjJobFormat `json:"jobFormat"`
	Log       gjLog       `json:"log"`
	Company   gjCompany   `json:"company"`
}

type gjJobFormat struct {
	Remote   bool `json:"remote"`
	Relocate bool `json:"relocate"`
	Parttime bool `json:"parttime"`
	Inhouse  bool `json:"inhouse"`
}

type gjLog struct {
	Modify string `json:"modify"` // publication date, e.g. "28 июля"
}

type gjCompany struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// gjSearchResponse is the top-level GeekJob find API response.
type gjSearchResponse struct {
	Data           []gjVacancy `json:"data"`
	DocumentsCount int         `json:"documentsCount"`
	Page           int         `json:"page"`
	PageCount      int         `json:"pagecount"`
}

// Genitive month names as GeekJob renders publication dates.
var gjMonths = map[string]time.Month{
	"января":   time.January,
	"февраля":  time.February,
	"марта":    time.March,
	"апреля":   time.April,
	"мая":      time.May,
	"июня":     time.June,
	"июля":     time.July,
	"августа":  time.August,
	"сентября": time.September,
	"октября":  time.October,
	"ноября":   time.November,
	"декабря":  time.December,
}

// GeekJobAdapter queries the GeekJob vacancy search API.
type GeekJobAdapter struct {
	params Params
	urls   *joburl.Resolver
	client *http.Client
	logger *slog.Logger
	now    func() time.Time // injected for date-parsing tests
}

// NewGeekJob creates the GeekJob site adapter.
func NewGeekJob(params Params, urls *joburl.Resolver, client *http.Client, logger *slog.Logger) *GeekJobAdapter {
	return &GeekJobAdapter{
		params: params,
		urls:   urls,
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

func (a *GeekJobAdapter) ID() string { return "geekjob" }

// Search queries the find endpoint. GeekJob has no location filter, so any
// location input is ignored and the provider's native ordering is kept.
func (a *GeekJobAdapter) Search(ctx context.Context, q model.SiteQuery) (model.SearchResult, error) {
	if q.Keyword == "" {
		return model.SearchResult{}, &model.ProviderError{Source: a.ID(), Err: fmt.Errorf("empty keyword")}
	}

	limit := q.Limit
	if limit <= 0 {
		limit = a.params.PerPage
	}

	params := url.Values{}
	params.Set("qs", q.Keyword)
	params.Set("page", "1")
	if q.Filters.Schedule == "remote" {
		params.Set("rm", "1")
	}

	var resp gjSearchResponse
	if err := getJSON(ctx, a.client, a.ID(), a.params.UserAgent, a.params.APIURL, params, &resp); err != nil {
		return model.SearchResult{}, fmt.Errorf("geekjob search %q: %w", q.Keyword, err)
	}

	var result model.SearchResult
	for _, v := range resp.Data {
		if len(result.Records) >= limit {
			break
		}
		rec, ok := a.normalize(v)
		if !ok {
			result.Skipped++
			continue
		}
		result.Records = append(result.Records, rec)
	}

	a.logger.Debug("geekjob search complete",
		"keyword", q.Keyword,
		"found", resp.DocumentsCount,
		"returned", len(result.Records),
		"skipped", result.Skipped,
	)
	return result, nil
}

func (a *GeekJobAdapter) normalize(v gjVacancy) (model.JobRecord, bool) {
	if v.ID == "" || v.Position == "" {
		return model.JobRecord{}, false
	}

	rec := model.JobRecord{
		SourceID:   a.ID(),
		ExternalID: v.ID,
		Title:      v.Position,
		Company:    v.Company.Name,
		Salary:     v.Salary,
		Location:   formatGJLocation(v),
		URL:        a.urls.VacancyURL(a.ID(), v.ID),
	}

	if t, ok := a.parseModifyDate(v.Log.Modify); ok {
		rec.PublishedAt = &t
	}

	return rec, true
}

// formatGJLocation combines the work-format flags with city/country,
// e.g. "Удалённая работа (Москва, Россия)".
func formatGJLocation(v gjVacancy) string {
	var place string
	switch {
	case v.City != "" && v.Country != "":
		place = v.City + ", " + v.Country
	case v.City != "":
		place = v.City
	case v.Country != "":
		place = v.Country
	}

	if v.JobFormat.Remote {
		if place != "" {
			return "Удалённая работа (" + place + ")"
		}
		return "Удалённая работа"
	}
	return place
}

// parseModifyDate parses GeekJob's "28 июля" publication dates. The year
// is not in the payload: assume the current one, and roll back a year if
// that would put the date in the future.
func (a *GeekJobAdapter) parseModifyDate(s string) (time.Time, bool) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) != 2 {
		return time.Time{}, false
	}
	var day int
	if _, err := fmt.Sscanf(fields[0], "%d", &day); err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}
	month, ok := gjMonths[strings.ToLower(fields[1])]
	if !ok {
		return time.Time{}, false
	}

	now := a.now()
	t := time.Date(now.Year(), month, day, 0, 0, 0, 0, time.UTC)
	if t.After(now.Add(24 * time.Hour)) {
		t = t.AddDate(-1, 0, 0)
	}
	return t, true
}

// ResolveLocation always fails: GeekJob publishes no location directory.
func (a *GeekJobAdapter) ResolveLocation(_ context.Context, text string) (string, error) {
	return "", fmt.Errorf("geekjob resolve %q: %w", text, model.ErrLocationNotFound)
}

// BuildJobURL expands the vacancy URL template. GeekJob has no per-vacancy
// lookup endpoint, so the template is the canonical source.
func (a *GeekJobAdapter) BuildJobURL(_ context.Context, externalID string) string {
	return a.urls.VacancyURL(a.ID(), externalID)
}

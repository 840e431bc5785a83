package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/akarpov/jobscout/internal/joburl"
	"github.com/akarpov/jobscout/internal/model"
)

const hhMaxPerPage = 100 // API rejects larger per_page values

// hhVacancy is a single vacancy in the HH search response.
type hhVacancy struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	AlternateURL string     `json:"alternate_url"`
	PublishedAt  string     `json:"published_at"`
	Salary       *hhSalary  `json:"salary"`
	Area         *hhArea    `json:"area"`
	Address      *hhAddress `json:"address"`
	Employer     hhEmployer `json:"employer"`
	Snippet      hhSnippet  `json:"snippet"`
}

type hhSalary struct {
	From     *int   `json:"from"`
	To       *int   `json:"to"`
	Currency string `json:"currency"`
	Gross    bool   `json:"gross"`
}

type hhArea struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Areas []hhArea `json:"areas"`
}

type hhAddress struct {
	City string `json:"city"`
}

type hhEmployer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type hhSnippet struct {
	Requirement    string `json:"requirement"`
	Responsibility string `json:"responsibility"`
}

// hhSearchResponse is the top-level HH vacancies API response.
type hhSearchResponse struct {
	Items []hhVacancy `json:"items"`
	Found int         `json:"found"`
	Pages int         `json:"pages"`
}

// Currency symbols as HH reports currency codes.
var hhCurrencies = map[string]string{
	"RUR": "₽",
	"USD": "$",
	"EUR": "€",
	"KZT": "₸",
}

// HeadHunterAdapter queries the HeadHunter vacancies API.
type HeadHunterAdapter struct {
	params Params
	urls   *joburl.Resolver
	client *http.Client
	logger *slog.Logger
}

// NewHeadHunter creates the HeadHunter site adapter.
func NewHeadHunter(params Params, urls *joburl.Resolver, client *http.Client, logger *slog.Logger) *HeadHunterAdapter {
	return &HeadHunterAdapter{
		params: params,
		urls:   urls,
		client: client,
		logger: logger,
	}
}

func (a *HeadHunterAdapter) ID() string { return "hh" }

// Search queries the vacancies endpoint and normalizes the response.
// HH filters by numeric area id only: handed unresolved free text it
// refuses the call rather than silently searching the whole country.
func (a *HeadHunterAdapter) Search(ctx context.Context, q model.SiteQuery) (model.SearchResult, error) {
	if q.Keyword == "" {
		return model.SearchResult{}, &model.ProviderError{Source: a.ID(), Err: fmt.Errorf("empty keyword")}
	}
	if q.LocationText != "" && q.LocationID == "" {
		return model.SearchResult{}, &model.ProviderError{Source: a.ID(), Err: model.ErrLocationUnresolved}
	}

	limit := q.Limit
	if limit <= 0 {
		limit = a.params.PerPage
	}

	params := url.Values{}
	params.Set("text", q.Keyword)
	params.Set("per_page", strconv.Itoa(min(limit, hhMaxPerPage)))
	if q.LocationID != "" {
		params.Set("area", q.LocationID)
	}
	if q.Filters.Experience != "" {
		params.Set("experience", q.Filters.Experience)
	}
	if q.Filters.Employment != "" {
		params.Set("employment", q.Filters.Employment)
	}
	if q.Filters.Schedule != "" {
		params.Set("schedule", q.Filters.Schedule)
	}

	var resp hhSearchResponse
	if err := getJSON(ctx, a.client, a.ID(), a.params.UserAgent, a.params.APIURL, params, &resp); err != nil {
		return model.SearchResult{}, fmt.Errorf("hh search %q: %w", q.Keyword, err)
	}

	var result model.SearchResult
	for _, v := range resp.Items {
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

	a.logger.Debug("hh search complete",
		"keyword", q.Keyword,
		"found", resp.Found,
		"returned", len(result.Records),
		"skipped", result.Skipped,
	)
	return result, nil
}

// normalize maps one HH vacancy into a JobRecord. Records missing the
// fields every listing must have are rejected, not patched up.
func (a *HeadHunterAdapter) normalize(v hhVacancy) (model.JobRecord, bool) {
	if v.ID == "" || v.Name == "" {
		return model.JobRecord{}, false
	}

	rec := model.JobRecord{
		SourceID:         a.ID(),
		ExternalID:       v.ID,
		Title:            v.Name,
		Company:          v.Employer.Name,
		Salary:           formatHHSalary(v.Salary),
		Requirements:     extractText(v.Snippet.Requirement),
		Responsibilities: extractText(v.Snippet.Responsibility),
		URL:              v.AlternateURL,
	}

	if rec.URL == "" {
		rec.URL = a.urls.VacancyURL(a.ID(), v.ID)
	}

	if v.Area != nil {
		rec.Location = v.Area.Name
		if v.Address != nil && v.Address.City != "" && v.Address.City != v.Area.Name {
			rec.Location = fmt.Sprintf("%s (%s)", v.Area.Name, v.Address.City)
		}
	}

	if v.PublishedAt != "" {
		// HH timestamps carry a numeric zone offset without a colon.
		if t, err := time.Parse("2006-01-02T15:04:05-0700", v.PublishedAt); err == nil {
			rec.PublishedAt = &t
		}
	}

	return rec, true
}

// formatHHSalary renders the structured HH salary block as display text,
// e.g. "100 000 – 150 000 ₽" or "от 80 000 ₽".
func formatHHSalary(s *hhSalary) string {
	if s == nil || (s.From == nil && s.To == nil) {
		return ""
	}
	cur := hhCurrencies[s.Currency]
	if cur == "" {
		cur = s.Currency
	}

	var text string
	switch {
	case s.From != nil && s.To != nil:
		text = fmt.Sprintf("%s – %s %s", groupDigits(*s.From), groupDigits(*s.To), cur)
	case s.From != nil:
		text = fmt.Sprintf("от %s %s", groupDigits(*s.From), cur)
	default:
		text = fmt.Sprintf("до %s %s", groupDigits(*s.To), cur)
	}
	if s.Gross {
		text += " до вычета налогов"
	}
	return text
}

// groupDigits formats an integer with thin spaces as thousands separators.
func groupDigits(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// ResolveLocation looks a place name up in the HH areas directory.
// The directory is a country→region→city tree; exact (case-insensitive)
// name matches win over substring matches.
func (a *HeadHunterAdapter) ResolveLocation(ctx context.Context, text string) (string, error) {
	if a.params.AreasURL == "" {
		return "", fmt.Errorf("hh resolve %q: %w", text, model.ErrLocationNotFound)
	}

	var tree []hhArea
	if err := getJSON(ctx, a.client, a.ID(), a.params.UserAgent, a.params.AreasURL, nil, &tree); err != nil {
		return "", fmt.Errorf("hh areas: %w", err)
	}

	// One pass over the tree; an exact name match wins over the first
	// substring match ("Москва" must not lose to "Московская область").
	want := strings.ToLower(strings.TrimSpace(text))
	var exact, partial string
	var walk func(areas []hhArea)
	walk = func(areas []hhArea) {
		for _, area := range areas {
			if exact != "" {
				return
			}
			name := strings.ToLower(area.Name)
			if name == want {
				exact = area.ID
				return
			}
			if partial == "" && strings.Contains(name, want) {
				partial = area.ID
			}
			walk(area.Areas)
		}
	}
	walk(tree)

	if exact != "" {
		return exact, nil
	}
	if partial != "" {
		return partial, nil
	}
	return "", fmt.Errorf("hh resolve %q: %w", text, model.ErrLocationNotFound)
}

// hhVacancyDetail is the single-vacancy endpoint response; only the fields
// URL resolution needs.
type hhVacancyDetail struct {
	ID           string `json:"id"`
	AlternateURL string `json:"alternate_url"`
}

// BuildJobURL asks the single-vacancy endpoint for the canonical link and
// falls back to the URL template on any failure. It never fails.
func (a *HeadHunterAdapter) BuildJobURL(ctx context.Context, externalID string) string {
	var detail hhVacancyDetail
	err := getJSON(ctx, a.client, a.ID(), a.params.UserAgent, a.params.APIURL+"/"+url.PathEscape(externalID), nil, &detail)
	if err == nil && detail.AlternateURL != "" {
		return detail.AlternateURL
	}
	if err != nil {
		a.logger.Debug("hh vacancy lookup failed, using template", "vacancy_id", externalID, "error", err)
	}
	return a.urls.VacancyURL(a.ID(), externalID)
}

// Package joburl builds provider URLs from per-site, per-kind templates.
// It is the deterministic fallback used when dynamic URL resolution via a
// provider API is unavailable or fails.
package joburl

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Kind selects which template to expand for a site.
type Kind string

const (
	KindVacancy Kind = "vacancy"
	KindCompany Kind = "company"
	KindSearch  Kind = "search"
	KindApply   Kind = "apply"
)

// Placeholder names templates may reference.
var knownParams = map[string]bool{
	"job_id":     true,
	"company_id": true,
	"query":      true,
}

var placeholderRe = regexp.MustCompile(`\{([a-z_]+)\}`)

// Resolver expands URL templates. It does no I/O; all failure modes are
// caught at construction time, so Resolve on a validated Resolver only
// fails for a template that was never registered.
type Resolver struct {
	templates map[string]map[Kind]string // source id → kind → template
}

// NewResolver validates the template table and returns a Resolver.
// A template referencing an unknown placeholder is a configuration error.
func NewResolver(templates map[string]map[string]string) (*Resolver, error) {
	r := &Resolver{templates: make(map[string]map[Kind]string, len(templates))}
	for source, kinds := range templates {
		r.templates[source] = make(map[Kind]string, len(kinds))
		for kind, tmpl := range kinds {
			for _, m := range placeholderRe.FindAllStringSubmatch(tmpl, -1) {
				if !knownParams[m[1]] {
					return nil, fmt.Errorf("url template %s/%s: unknown placeholder {%s}", source, kind, m[1])
				}
			}
			r.templates[source][Kind(kind)] = tmpl
		}
	}
	return r, nil
}

// Resolve expands the template for (sourceID, kind) with the given params.
// Param values are query-escaped before substitution.
func (r *Resolver) Resolve(sourceID string, kind Kind, params map[string]string) (string, error) {
	kinds, ok := r.templates[sourceID]
	if !ok {
		return "", fmt.Errorf("no url templates for source %q", sourceID)
	}
	tmpl, ok := kinds[kind]
	if !ok {
		return "", fmt.Errorf("no %q url template for source %q", kind, sourceID)
	}

	out := tmpl
	for name, value := range params {
		out = strings.ReplaceAll(out, "{"+name+"}", url.QueryEscape(value))
	}
	return out, nil
}

// VacancyURL returns the vacancy page URL for a job id. It never fails:
// if no template is registered it falls back to the generic provider
// URL shape.
func (r *Resolver) VacancyURL(sourceID, jobID string) string {
	u, err := r.Resolve(sourceID, KindVacancy, map[string]string{"job_id": jobID})
	if err != nil {
		return fmt.Sprintf("https://%s.ru/vacancy/%s", sourceID, url.QueryEscape(jobID))
	}
	return u
}

// CompanyURL returns the company page URL for a company id, with the same
// never-fails contract as VacancyURL.
func (r *Resolver) CompanyURL(sourceID, companyID string) string {
	u, err := r.Resolve(sourceID, KindCompany, map[string]string{"company_id": companyID})
	if err != nil {
		return fmt.Sprintf("https://%s.ru/company/%s", sourceID, url.QueryEscape(companyID))
	}
	return u
}

// Package adapter implements the per-provider site adapters. Each adapter
// translates the normalized query into a provider request, parses the
// response into JobRecords, and resolves vacancy URLs with a template
// fallback.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/akarpov/jobscout/internal/model"
)

// Params carries the per-site configuration an adapter needs. It is a
// plain value copied out of the config snapshot at construction time.
type Params struct {
	APIURL    string
	AreasURL  string
	PerPage   int
	UserAgent string
}

// getJSON performs a GET request and decodes the JSON response into v.
// HTTP failures are classified into transient/permanent ProviderErrors so
// the retry layer can decide without inspecting status codes itself.
func getJSON(ctx context.Context, client *http.Client, source, userAgent, rawURL string, params url.Values, v any) error {
	if len(params) > 0 {
		rawURL = rawURL + "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &model.ProviderError{Source: source, Transient: false, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		// Network-level failures (DNS, connect, timeout) are transient,
		// but a cancelled context must surface as such for the caller.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &model.ProviderError{Source: source, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &model.ProviderError{
			Source:     source,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Transient:  true,
			Err:        fmt.Errorf("rate limited"),
		}
	case resp.StatusCode >= 500:
		return &model.ProviderError{
			Source:     source,
			StatusCode: resp.StatusCode,
			Transient:  true,
			Err:        fmt.Errorf("server error"),
		}
	case resp.StatusCode >= 400:
		return &model.ProviderError{
			Source:     source,
			StatusCode: resp.StatusCode,
			Transient:  false,
			Err:        fmt.Errorf("request rejected"),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &model.ProviderError{Source: source, Transient: false, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// parseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// extractText converts an HTML or HTML-encoded string to plain text:
// unescape entities, strip tags (HH wraps matches in <highlighttext>),
// collapse whitespace.
func extractText(content string) string {
	unescaped := html.UnescapeString(content)
	plain := htmlTagRegex.ReplaceAllString(unescaped, "")
	return strings.Join(strings.Fields(plain), " ")
}

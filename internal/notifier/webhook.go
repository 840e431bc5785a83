package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/akarpov/jobscout/internal/model"
)

// Ensure WebhookNotifier implements model.Notifier.
var _ model.Notifier = (*WebhookNotifier)(nil)

// WebhookNotifier POSTs each new record as JSON to a configured endpoint.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebhookNotifier returns a notifier that posts one JSON payload per record.
func NewWebhookNotifier(url string, httpClient *http.Client, logger *slog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:        url,
		httpClient: httpClient,
		logger:     logger,
	}
}

// webhookPayload is the wire shape of one notification.
type webhookPayload struct {
	Source      string `json:"source"`
	ExternalID  string `json:"external_id"`
	Title       string `json:"title"`
	Company     string `json:"company,omitempty"`
	Location    string `json:"location,omitempty"`
	Salary      string `json:"salary,omitempty"`
	URL         string `json:"url"`
	PublishedAt string `json:"published_at,omitempty"`
}

// Notify sends each record as a separate POST. Returns an error only if
// ALL posts fail; individual failures are logged.
func (n *WebhookNotifier) Notify(records []model.JobRecord) error {
	if len(records) == 0 {
		return nil
	}

	failures := 0
	for i, r := range records {
		if i > 0 {
			time.Sleep(200 * time.Millisecond)
		}
		if err := n.send(r); err != nil {
			n.logger.Error("webhook notification failed", "title", r.Title, "error", err)
			failures++
		}
	}

	if failures == len(records) {
		return fmt.Errorf("all %d webhook notifications failed", failures)
	}
	n.logger.Info("webhook notifications complete", "sent", len(records)-failures, "failed", failures)
	return nil
}

func (n *WebhookNotifier) send(r model.JobRecord) error {
	p := webhookPayload{
		Source:     r.SourceID,
		ExternalID: r.ExternalID,
		Title:      r.Title,
		Company:    r.Company,
		Location:   r.Location,
		Salary:     r.Salary,
		URL:        r.URL,
	}
	if r.PublishedAt != nil {
		p.PublishedAt = r.PublishedAt.Format(time.RFC3339)
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	resp, err := n.httpClient.Post(n.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		if secs <= 0 {
			secs = 1
		}
		n.logger.Warn("webhook rate limited, retrying", "retry_after_secs", secs)
		time.Sleep(time.Duration(secs) * time.Second)

		resp2, err := n.httpClient.Post(n.url, "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("post webhook (retry): %w", err)
		}
		defer resp2.Body.Close()
		if resp2.StatusCode >= 300 {
			return fmt.Errorf("webhook returned %d on retry", resp2.StatusCode)
		}
		return nil
	}

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

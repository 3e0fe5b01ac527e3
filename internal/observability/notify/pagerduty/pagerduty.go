// Package pagerduty delivers upload failure events through the PagerDuty Events API v2.
package pagerduty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/driveline/driveline/internal/observability/notify"
)

// APIEndpoint is the PagerDuty Events API v2 ingest URL.
const APIEndpoint = "https://events.pagerduty.com/v2/enqueue"

// Config captures runtime configuration for the PagerDuty sink.
type Config struct {
	RoutingKey string
	Source     string
	Component  string
	// Endpoint overrides APIEndpoint when set.
	Endpoint   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
}

// Client publishes trigger events via PagerDuty's Events API v2.
type Client struct {
	routingKey string
	source     string
	component  string
	hook       *notify.Webhook
}

var _ notify.Sink = (*Client)(nil)

// NewClient constructs a PagerDuty events client. Callers must provide a routing key.
func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.RoutingKey)
	if key == "" {
		return nil, errors.New("pagerduty routing key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		routingKey: key,
		source:     fallbackString(cfg.Source, "driveline"),
		component:  fallbackString(cfg.Component, "upload-pipeline"),
		hook: &notify.Webhook{
			Name:       "pagerduty",
			URL:        fallbackString(cfg.Endpoint, APIEndpoint),
			RetryLimit: max(cfg.RetryLimit, 0),
			Client:     hc,
		},
	}, nil
}

// SendUploadFailure submits a trigger event.
func (c *Client) SendUploadFailure(ctx context.Context, payload notify.UploadFailurePayload) error {
	body, err := json.Marshal(c.buildEvent(payload))
	if err != nil {
		return fmt.Errorf("encode pagerduty payload: %w", err)
	}
	return c.hook.PostJSON(ctx, body)
}

func (c *Client) buildEvent(p notify.UploadFailurePayload) map[string]any {
	severity := fallbackString(strings.ToLower(p.Severity), notify.SeverityError)

	occurredAt := p.OccurredAt.UTC()
	if p.OccurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	custom := map[string]any{
		"job_id":       p.JobID,
		"recipient_id": p.RecipientID,
		"context_kind": p.ContextKind,
		"context_id":   p.ContextID,
		"context_name": p.ContextName,
		"blob":         p.BlobName,
		"status":       p.Status,
		"class":        p.Class,
		"attempts":     p.Attempts,
		"error":        p.Error,
		"error_class":  p.ErrorClass,
	}
	for k, v := range p.Metadata {
		if _, exists := custom[k]; !exists {
			custom[k] = v
		}
	}

	// One incident per recipient and blob.
	dedupKey := strings.Trim(p.RecipientID+":"+p.BlobName, ":")

	return map[string]any{
		"routing_key":  c.routingKey,
		"event_action": "trigger",
		"dedup_key":    dedupKey,
		"payload": map[string]any{
			"summary": fmt.Sprintf("Upload of %s for %s failed (%s)",
				fallbackString(p.BlobName, "unknown"),
				fallbackString(p.RecipientID, "unknown"),
				fallbackString(p.Status, "unknown"),
			),
			"severity":       severity,
			"source":         c.source,
			"component":      c.component,
			"timestamp":      occurredAt.Format(time.RFC3339),
			"custom_details": custom,
		},
	}
}

func fallbackString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

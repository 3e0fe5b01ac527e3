// Package slack delivers upload failure events to a Slack incoming webhook.
package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/driveline/driveline/internal/observability/notify"
)

// Config captures the subset of Slack webhook behaviour we need.
type Config struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
}

// Client delivers upload failure notifications to a Slack webhook.
type Client struct {
	channel  string
	username string
	hook     *notify.Webhook
}

var _ notify.Sink = (*Client)(nil)

// NewClient builds a Slack webhook client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
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
		channel:  strings.TrimSpace(cfg.Channel),
		username: fallbackString(strings.TrimSpace(cfg.Username), "driveline"),
		hook: &notify.Webhook{
			Name:       "slack",
			URL:        webhookURL,
			RetryLimit: max(cfg.RetryLimit, 0),
			Client:     hc,
		},
	}, nil
}

// SendUploadFailure posts a formatted message to Slack.
func (c *Client) SendUploadFailure(ctx context.Context, payload notify.UploadFailurePayload) error {
	body, err := json.Marshal(c.formatMessage(payload))
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}
	return c.hook.PostJSON(ctx, body)
}

func (c *Client) formatMessage(p notify.UploadFailurePayload) map[string]any {
	ts := p.OccurredAt
	if ts.IsZero() {
		ts = time.Now()
	}

	var text strings.Builder
	text.WriteString("*Upload failure*")
	if p.BlobName != "" {
		text.WriteString(" `")
		text.WriteString(escapeSlackText(p.BlobName))
		text.WriteByte('`')
	}
	text.WriteByte('\n')

	attempts := ""
	if p.Attempts > 0 {
		attempts = strconv.Itoa(p.Attempts)
	}
	fields := []struct{ label, value string }{
		{"Severity", fallbackString(p.Severity, notify.SeverityError)},
		{"Recipient", escapeSlackText(p.RecipientID)},
		{"Context", formatContext(p)},
		{"Status", p.Status},
		{"Class", p.Class},
		{"Attempts", attempts},
		{"Job", p.JobID},
		{"Error class", p.ErrorClass},
		{"Error", escapeSlackText(p.Error)},
	}
	for _, f := range fields {
		appendSlackField(&text, f.label, f.value)
	}
	appendSlackMetadata(&text, p.Metadata)
	text.WriteString("• Timestamp: ")
	text.WriteString(ts.UTC().Format(time.RFC3339))

	msg := map[string]any{
		"text":     text.String(),
		"username": c.username,
	}
	if c.channel != "" {
		msg["channel"] = c.channel
	}
	return msg
}

func formatContext(p notify.UploadFailurePayload) string {
	id := escapeSlackText(strings.TrimSpace(p.ContextID))
	name := escapeSlackText(strings.TrimSpace(p.ContextName))
	var out string
	switch {
	case name != "" && id != "" && name != id:
		out = fmt.Sprintf("%s (%s)", name, id)
	case id != "":
		out = id
	default:
		out = name
	}
	if out != "" && p.ContextKind != "" {
		out += " [" + p.ContextKind + "]"
	}
	return out
}

func fallbackString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func escapeSlackText(value string) string {
	if value == "" {
		return ""
	}
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(value)
}

func appendSlackField(text *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	text.WriteString("• ")
	text.WriteString(label)
	text.WriteString(": ")
	text.WriteString(value)
	text.WriteByte('\n')
}

func appendSlackMetadata(text *strings.Builder, metadata map[string]string) {
	if len(metadata) == 0 {
		return
	}
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	text.WriteString("• Metadata:\n")
	for _, k := range keys {
		text.WriteString("    • ")
		text.WriteString(k)
		text.WriteString(": ")
		text.WriteString(escapeSlackText(metadata[k]))
		text.WriteByte('\n')
	}
}

// Package line is the chat platform client: attachment downloads, push
// messages and display-name lookups against the LINE Messaging API.
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/driveline/driveline/internal/core"
	"github.com/driveline/driveline/internal/domain/upload"
)

const (
	// DefaultAPIBaseURL serves profiles, group summaries and push messages.
	DefaultAPIBaseURL = "https://api.line.me"
	// DefaultDataBaseURL serves message content.
	DefaultDataBaseURL = "https://api-data.line.me"

	maxErrorBody = 4 << 10
	// maxPushText is the platform's limit for a text message.
	maxPushText = 5000
)

// Config configures NewClient.
type Config struct {
	ChannelAccessToken string
	APIBaseURL         string
	DataBaseURL        string
	Timeout            time.Duration
	HTTPClient         *http.Client
	Logger             *slog.Logger
}

// Client talks to the LINE Messaging API.
type Client struct {
	token   string
	apiURL  string
	dataURL string
	http    *http.Client
	logger  *slog.Logger
}

var (
	_ core.AttachmentSource = (*Client)(nil)
	_ core.Notifier         = (*Client)(nil)
	_ core.ChatDirectory    = (*Client)(nil)
)

// APIError is a non-2xx response from the platform.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("line %s: http %d: %s", e.Op, e.Status, e.Body)
}

// NewClient constructs a Client.
func NewClient(cfg Config) (*Client, error) {
	token := strings.TrimSpace(cfg.ChannelAccessToken)
	if token == "" {
		return nil, errors.New("line channel access token is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		token:   token,
		apiURL:  baseURL(cfg.APIBaseURL, DefaultAPIBaseURL),
		dataURL: baseURL(cfg.DataBaseURL, DefaultDataBaseURL),
		http:    hc,
		logger:  logger.With("component", "line_client"),
	}, nil
}

// Download streams the content of an attachment message. The caller closes the body.
// A 404 maps to upload.ErrAttachmentNotFound and a 429 to upload.ErrRateLimited.
func (c *Client) Download(ctx context.Context, messageID string) (io.ReadCloser, error) {
	if strings.TrimSpace(messageID) == "" {
		return nil, errors.New("message id is required")
	}
	endpoint := c.dataURL + "/v2/bot/message/" + url.PathEscape(messageID) + "/content"
	resp, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("download message %s: %w", messageID, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		c.logger.DebugContext(ctx, "attachment download started",
			"message_id", messageID,
			"content_type", resp.Header.Get("Content-Type"),
		)
		return resp.Body, nil
	case resp.StatusCode == http.StatusNotFound:
		drain(resp)
		return nil, fmt.Errorf("message %s: %w", messageID, upload.ErrAttachmentNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		drain(resp)
		return nil, fmt.Errorf("message %s: %w", messageID, upload.ErrRateLimited)
	default:
		return nil, c.apiError("download", resp)
	}
}

// Push sends a text message to a user or group.
func (c *Client) Push(ctx context.Context, to, text string) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("push target is required")
	}
	if len(text) > maxPushText {
		text = text[:maxPushText]
	}
	body, err := json.Marshal(map[string]any{
		"to": to,
		"messages": []map[string]string{
			{"type": "text", "text": text},
		},
	})
	if err != nil {
		return fmt.Errorf("encode push body: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.apiURL+"/v2/bot/message/push", body)
	if err != nil {
		return fmt.Errorf("push message: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return c.apiError("push", resp)
	}
	drain(resp)
	return nil
}

// GroupName returns the display name of a group chat.
func (c *Client) GroupName(ctx context.Context, groupID string) (string, error) {
	var out struct {
		GroupName string `json:"groupName"`
	}
	if err := c.getJSON(ctx, "group summary", "/v2/bot/group/"+url.PathEscape(groupID)+"/summary", &out); err != nil {
		return "", err
	}
	return out.GroupName, nil
}

// UserName returns the display name of a user.
func (c *Client) UserName(ctx context.Context, userID string) (string, error) {
	var out struct {
		DisplayName string `json:"displayName"`
	}
	if err := c.getJSON(ctx, "profile", "/v2/bot/profile/"+url.PathEscape(userID), &out); err != nil {
		return "", err
	}
	return out.DisplayName, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, c.apiURL+path, nil)
	if err != nil {
		return fmt.Errorf("get %s: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return c.apiError(op, resp)
	}
	defer drain(resp)
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", op, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

func (c *Client) apiError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	drain(resp)
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("line %s: %w", op, upload.ErrRateLimited)
	}
	return &APIError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func baseURL(value, fallback string) string {
	v := strings.TrimRight(strings.TrimSpace(value), "/")
	if v == "" {
		return fallback
	}
	return v
}

package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// WebhookRetryInterval is the pause between delivery attempts.
const WebhookRetryInterval = 200 * time.Millisecond

// Webhook posts JSON bodies to a fixed URL, retrying 5xx, 429 and transport
// failures up to RetryLimit extra times. Other 4xx responses are final.
type Webhook struct {
	Name       string
	URL        string
	RetryLimit int
	Client     *http.Client
	// Interval overrides WebhookRetryInterval when positive.
	Interval time.Duration
}

// PostJSON delivers body, returning the last error once retries are spent.
func (w *Webhook) PostJSON(ctx context.Context, body []byte) error {
	interval := w.Interval
	if interval <= 0 {
		interval = WebhookRetryInterval
	}
	var b backoff.BackOff = backoff.NewConstantBackOff(interval)
	b = backoff.WithMaxRetries(b, uint64(max(w.RetryLimit, 0)))
	b = backoff.WithContext(b, ctx)

	return backoff.Retry(func() error { return w.post(ctx, body) }, b)
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create %s request: %w", w.Name, err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client().Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", w.Name, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return drainAndClose(w.Name, resp)
	}

	respErr := w.errorResponse(resp)
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return respErr
	}
	return backoff.Permanent(respErr)
}

func (w *Webhook) client() *http.Client {
	if w.Client != nil {
		return w.Client
	}
	return http.DefaultClient
}

func drainAndClose(name string, resp *http.Response) error {
	_, copyErr := io.Copy(io.Discard, resp.Body)
	closeErr := resp.Body.Close()
	if copyErr != nil {
		copyErr = fmt.Errorf("drain %s response body: %w", name, copyErr)
	}
	if closeErr != nil {
		closeErr = fmt.Errorf("close response body: %w", closeErr)
	}
	return errors.Join(copyErr, closeErr)
}

func (w *Webhook) errorResponse(resp *http.Response) error {
	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	closeErr := resp.Body.Close()
	if readErr != nil {
		return errors.Join(
			fmt.Errorf("read %s error response: %w", w.Name, readErr),
			closeErr,
		)
	}
	return fmt.Errorf("%s webhook %s: %s", w.Name, resp.Status, strings.TrimSpace(string(respBody)))
}

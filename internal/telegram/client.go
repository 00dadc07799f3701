// Package telegram is a minimal Bot API client: outbound messages with
// rate limiting and bounded retries, plus getUpdates long polling.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	maxSendRetries = 3
	retryBackoff   = 500 * time.Millisecond
)

// apiError is a Bot API rejection with its error_code.
type apiError struct {
	method      string
	code        int
	description string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s: api error %d: %s", e.method, e.code, e.description)
}

// permanent reports whether retrying cannot succeed: a client error
// other than rate limiting.
func (e *apiError) permanent() bool {
	return e.code >= 400 && e.code < 500 && e.code != http.StatusTooManyRequests
}

// Client talks to the Telegram Bot API over plain HTTP.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a Bot API client. The limiter stays under
// Telegram's global ~30 msg/s ceiling.
func NewClient(token string, logger *zap.Logger) *Client {
	return &Client{
		token:   token,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 65 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second/20), 5),
		logger:  logger,
	}
}

// Enabled reports whether the client has credentials to send with.
func (c *Client) Enabled() bool {
	return c.token != ""
}

// SendMessage posts an HTML-formatted message to a chat, optionally
// into a forum topic thread (threadID > 0). Transient failures are
// retried a bounded number of times; a 429 waits out the server-given
// retry_after before the next attempt.
func (c *Client) SendMessage(ctx context.Context, chatID int64, threadID int, text string) error {
	payload := map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	if threadID > 0 {
		payload["message_thread_id"] = threadID
	}

	var lastErr error
	for attempt := 1; attempt <= maxSendRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		retryAfter, err := c.call(ctx, "sendMessage", payload, nil)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return lastErr
		}
		var rejection *apiError
		if errors.As(err, &rejection) && rejection.permanent() {
			return lastErr
		}

		wait := time.Duration(attempt) * retryBackoff
		if retryAfter > 0 {
			wait = time.Duration(retryAfter) * time.Second
		}
		c.logger.Warn("telegram send failed",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("send message after %d attempts: %w", maxSendRetries, lastErr)
}

// GetUpdates long-polls for incoming updates. offset acknowledges all
// updates below it; timeoutSec is the server-side hold time.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error) {
	payload := map[string]any{
		"offset":          offset,
		"timeout":         timeoutSec,
		"allowed_updates": []string{"message"},
	}

	var updates []Update
	if _, err := c.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// call performs one Bot API method invocation. Returns the retry_after
// hint (seconds) when the server asked to slow down.
func (c *Client) call(ctx context.Context, method string, payload map[string]any, result any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal %s payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("%s: read response: %w", method, err)
	}

	var envelope struct {
		apiResponse
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return 0, fmt.Errorf("%s: status %d: %s", method, resp.StatusCode, raw)
	}

	if !envelope.OK {
		retryAfter := 0
		if envelope.Parameters != nil {
			retryAfter = envelope.Parameters.RetryAfter
		}
		return retryAfter, &apiError{method: method, code: envelope.ErrorCode, description: envelope.Description}
	}

	if result != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return 0, fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return 0, nil
}

// Package captcha implements a client for a 2captcha-compatible image
// solving service: submit a base64 image, then poll until the recognized
// text is ready.
package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrSolveTimeout is returned when the solver does not produce a result
// within the client's wall-clock budget.
var ErrSolveTimeout = errors.New("captcha solve timed out")

// SubmissionError indicates the solver rejected the submitted image.
type SubmissionError struct {
	Response string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("captcha submission rejected: %s", e.Response)
}

// SolveError indicates the solver returned a terminal failure for a
// previously accepted task.
type SolveError struct {
	Response string
}

func (e *SolveError) Error() string {
	return fmt.Sprintf("captcha solve failed: %s", e.Response)
}

// IsImageTooSmall reports whether the error is the provider's complaint about
// an undersized image. The automation treats it as transient: the page's
// CAPTCHA likely had not finished rendering.
func IsImageTooSmall(err error) bool {
	return err != nil && strings.Contains(err.Error(), "less than 100 bytes")
}

// Client talks to the remote solving service.
type Client struct {
	apiKey       string
	baseURL      string
	pollInterval time.Duration
	maxWait      time.Duration
	httpClient   *http.Client
	log          *zap.SugaredLogger
}

// NewClient builds a solver client. pollInterval controls how often an
// accepted task is re-queried; maxWait bounds the whole solve so a stuck
// task cannot pin a worker forever.
func NewClient(apiKey, baseURL string, pollInterval, maxWait time.Duration, log *zap.SugaredLogger) *Client {
	return &Client{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		pollInterval: pollInterval,
		maxWait:      maxWait,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		log:          log,
	}
}

// Solve submits a base64-encoded image and blocks until the service returns
// the recognized text, a terminal error, or the wait budget expires.
func (c *Client) Solve(ctx context.Context, imageBase64 string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.maxWait)
	defer cancel()

	taskID, err := c.submit(ctx, imageBase64)
	if err != nil {
		return "", err
	}
	c.log.Debugw("captcha task submitted", "task_id", taskID)

	return c.poll(ctx, taskID)
}

func (c *Client) submit(ctx context.Context, imageBase64 string) (string, error) {
	form := url.Values{
		"key":    {c.apiKey},
		"method": {"base64"},
		"body":   {imageBase64},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/in.php", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("captcha submission request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read captcha submission response: %w", err)
	}

	result := strings.TrimSpace(string(body))
	if !strings.HasPrefix(result, "OK|") {
		return "", &SubmissionError{Response: result}
	}
	return strings.SplitN(result, "|", 2)[1], nil
}

type pollResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

func (c *Client) poll(ctx context.Context, taskID string) (string, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", ErrSolveTimeout
			}
			return "", ctx.Err()
		case <-ticker.C:
		}

		result, err := c.query(ctx, taskID)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return "", ErrSolveTimeout
			}
			return "", err
		}

		switch {
		case result.Status == 1:
			return result.Request, nil
		case result.Request == "CAPCHA_NOT_READY":
			// Not an error, just poll again.
		default:
			return "", &SolveError{Response: result.Request}
		}
	}
}

func (c *Client) query(ctx context.Context, taskID string) (*pollResponse, error) {
	q := url.Values{
		"key":    {c.apiKey},
		"action": {"get"},
		"id":     {taskID},
		"json":   {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/res.php?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("captcha poll request failed: %w", err)
	}
	defer resp.Body.Close()

	var result pollResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode captcha poll response: %w", err)
	}
	return &result, nil
}

package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

type LLMClient interface {
	Generate(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)
}

type Client struct {
	baseURL         string
	apiKey          string
	model           string
	completionsPath string
	httpClient      *http.Client
	defaultHeaders  map[string]string
	timeout         time.Duration
	maxRetries      int
	backoff         BackoffConfig
	limiter         *rate.Limiter
	streamingFormat StreamingFormat
	organization    string
}

func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		baseURL:         URLOpenAI,
		completionsPath: DefaultCompletionsPath,
		httpClient:      http.DefaultClient,
		timeout:         60 * time.Second,
		maxRetries:      3,
		backoff:         DefaultBackoffConfig,
		streamingFormat: StreamingFormatSSE,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	return c, nil
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) buildURL(path string) string {
	base := strings.TrimRight(c.baseURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte, accept string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	if c.organization != "" {
		req.Header.Set("OpenAI-Organization", c.organization)
	}

	for key, value := range c.defaultHeaders {
		req.Header.Set(key, value)
	}

	return req, nil
}

func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	client := c.httpClient
	if c.timeout > 0 && client.Timeout != c.timeout {
		copied := *client
		copied.Timeout = c.timeout
		client = &copied
	}

	return client.Do(req)
}

// doRequestWithRetry sends the request, retrying transport failures and
// retryable status codes with jittered exponential backoff. Non-2xx final
// responses are returned as typed API errors with the body consumed.
func (c *Client) doRequestWithRetry(ctx context.Context, method, path string, body []byte, accept string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := FullJitter(attempt, c.backoff)
			var rlErr *RateLimitError
			if errors.As(lastErr, &rlErr) && rlErr.RetryAfter > wait {
				wait = min(rlErr.RetryAfter, c.backoff.MaxDelay)
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		req, err := c.newRequest(ctx, method, path, body, accept)
		if err != nil {
			return nil, err
		}

		resp, err := c.doRequest(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("failed to read error response: %w", readErr)
		}

		apiErr := parseAPIError(resp.StatusCode, resp.Header, respBody)
		if !isRetryableStatus(resp.StatusCode) {
			return nil, apiErr
		}
		lastErr = apiErr
	}

	return nil, fmt.Errorf("%w: %w", ErrMaxRetries, lastErr)
}

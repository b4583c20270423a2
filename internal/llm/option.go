package llm

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

type StreamingFormat string

const (
	StreamingFormatSSE    StreamingFormat = "sse"
	StreamingFormatNDJSON StreamingFormat = "ndjson"
)

const (
	URLOpenAI = "https://api.openai.com"

	DefaultCompletionsPath = "/v1/chat/completions"
)

type ClientOption func(*Client) error

func WithBaseURL(url string) ClientOption {
	return func(c *Client) error {
		if url == "" || !(strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")) {
			return ErrInvalidBaseURL
		}
		c.baseURL = url
		return nil
	}
}

func WithAPIKey(key string) ClientOption {
	return func(c *Client) error {
		if key == "" {
			return ErrNoAPIKey
		}
		c.apiKey = key
		return nil
	}
}

func WithModel(model string) ClientOption {
	return func(c *Client) error {
		c.model = model
		return nil
	}
}

// WithCompletionsPath overrides the chat completions path, e.g.
// "/chat/completions" for Azure AI model inference endpoints.
func WithCompletionsPath(path string) ClientOption {
	return func(c *Client) error {
		if path == "" {
			path = DefaultCompletionsPath
		}
		c.completionsPath = path
		return nil
	}
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) error {
		if client == nil {
			c.httpClient = http.DefaultClient
			return nil
		}
		c.httpClient = client
		return nil
	}
}

func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) error {
		c.defaultHeaders = headers
		return nil
	}
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) error {
		c.timeout = timeout
		return nil
	}
}

func WithMaxRetries(retries int) ClientOption {
	return func(c *Client) error {
		if retries < 0 {
			retries = 0
		}
		c.maxRetries = retries
		return nil
	}
}

func WithRetryWaitRange(min, max time.Duration) ClientOption {
	return func(c *Client) error {
		if min <= 0 {
			min = 500 * time.Millisecond
		}
		if max <= 0 {
			max = 30 * time.Second
		}
		if min > max {
			min, max = max, min
		}
		c.backoff = BackoffConfig{BaseDelay: min, MaxDelay: max}
		return nil
	}
}

// WithRateLimit throttles outgoing requests to rps per second with the given
// burst. A non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) error {
		if rps <= 0 {
			c.limiter = nil
			return nil
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

func WithStreamingFormat(format StreamingFormat) ClientOption {
	return func(c *Client) error {
		switch format {
		case StreamingFormatSSE, StreamingFormatNDJSON:
			c.streamingFormat = format
		case "":
			c.streamingFormat = StreamingFormatSSE
		default:
			return ErrStreamingFormat
		}
		return nil
	}
}

func WithOrganization(org string) ClientOption {
	return func(c *Client) error {
		c.organization = org
		return nil
	}
}

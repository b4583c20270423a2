package llm

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	llmRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_request_duration_seconds",
		Help:    "LLM request duration in seconds",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"method", "model", "status"})

	llmRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_requests_total",
		Help: "Total number of LLM requests",
	}, []string{"method", "model"})

	llmErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_errors_total",
		Help: "Total number of LLM errors",
	}, []string{"method", "model", "error_type"})

	llmTokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Total number of tokens used",
	}, []string{"method", "model", "token_type"})
)

func recordRequest(method, model, status string, duration time.Duration) {
	llmRequestDuration.WithLabelValues(method, model, status).Observe(duration.Seconds())
	llmRequestsTotal.WithLabelValues(method, model).Inc()
}

func recordError(method, model, errorType string) {
	llmErrorsTotal.WithLabelValues(method, model, errorType).Inc()
}

func recordTokens(method, model string, usage Usage) {
	if usage.PromptTokens > 0 {
		llmTokensTotal.WithLabelValues(method, model, "prompt").Add(float64(usage.PromptTokens))
	}
	if usage.CompletionTokens > 0 {
		llmTokensTotal.WithLabelValues(method, model, "completion").Add(float64(usage.CompletionTokens))
	}
	if usage.TotalTokens > 0 {
		llmTokensTotal.WithLabelValues(method, model, "total").Add(float64(usage.TotalTokens))
	}
}

func classifyError(err error) string {
	if err == nil {
		return "none"
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	if IsAuthError(err) {
		return "auth"
	}
	if IsRateLimitError(err) {
		return "rate_limit"
	}
	if IsTimeoutError(err) {
		return "timeout"
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return "client_error"
		}
		if apiErr.StatusCode >= 500 {
			return "server_error"
		}
	}

	return "unknown"
}

// MetricsMiddleware records prometheus metrics around another LLMClient.
type MetricsMiddleware struct {
	client LLMClient
	model  string
}

// NewMetricsMiddleware wraps client. model labels requests that leave
// CompletionRequest.Model empty and rely on the client default.
func NewMetricsMiddleware(client LLMClient, model string) *MetricsMiddleware {
	return &MetricsMiddleware{client: client, model: model}
}

func (m *MetricsMiddleware) modelFor(req CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return m.model
}

func (m *MetricsMiddleware) Generate(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	model := m.modelFor(req)
	status := "success"

	resp, err := m.client.Generate(ctx, req)

	duration := time.Since(start)
	if err != nil {
		status = "error"
	}

	recordRequest("generate", model, status, duration)

	if err != nil {
		recordError("generate", model, classifyError(err))
	} else if resp != nil {
		recordTokens("generate", model, resp.Usage)
	}

	return resp, err
}

func (m *MetricsMiddleware) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	start := time.Now()
	model := m.modelFor(req)

	ch, err := m.client.Stream(ctx, req)
	if err != nil {
		recordRequest("stream", model, "error", time.Since(start))
		recordError("stream", model, classifyError(err))
		return nil, err
	}

	wrapped := make(chan StreamChunk)

	go func() {
		defer close(wrapped)
		status := "success"
		var lastUsage Usage

		for chunk := range ch {
			if chunk.Err != nil {
				status = "error"
				recordError("stream", model, classifyError(chunk.Err))
			}
			if chunk.Usage != nil {
				lastUsage = *chunk.Usage
			}
			select {
			case wrapped <- chunk:
			case <-ctx.Done():
				recordRequest("stream", model, "error", time.Since(start))
				return
			}
		}

		recordRequest("stream", model, status, time.Since(start))
		recordTokens("stream", model, lastUsage)
	}()

	return wrapped, nil
}

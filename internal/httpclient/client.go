package httpclient

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/PauloHFS/otel-chat-tools/internal/logging"
)

type Client struct {
	*http.Client
	name string
}

type Config struct {
	Name    string
	Timeout time.Duration
	// TracerProvider for the otelhttp client spans; nil uses the global provider.
	TracerProvider trace.TracerProvider
	// Base is the innermost transport; nil uses http.DefaultTransport.
	Base http.RoundTripper
}

func New(cfg Config) *Client {
	base := cfg.Base
	if base == nil {
		base = http.DefaultTransport
	}

	var otelOpts []otelhttp.Option
	if cfg.TracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(cfg.TracerProvider))
	}

	transport := &loggingTransport{
		RoundTripper: otelhttp.NewTransport(base, otelOpts...),
		name:         cfg.Name,
	}

	return &Client{
		Client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		name: cfg.Name,
	}
}

func (c *Client) Name() string {
	return c.name
}

type loggingTransport struct {
	http.RoundTripper
	name string
}

func (t *loggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()

	ctx, event := logging.NewEventContext(r.Context())
	event.Add(
		slog.String("http_client", t.name),
		slog.String("method", r.Method),
		slog.String("url", r.URL.Redacted()),
	)

	resp, err := t.RoundTripper.RoundTrip(r.WithContext(ctx))

	duration := time.Since(start)

	if err != nil {
		event.Add(
			slog.String("outcome", "error"),
			slog.String("error", err.Error()),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
		logging.Get().Log(ctx, slog.LevelError, "http request failed", event.Attrs()...)
		return nil, err
	}

	event.Add(
		slog.Int("status", resp.StatusCode),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	level := slog.LevelDebug
	if resp.StatusCode >= 400 {
		level = slog.LevelWarn
	}

	logging.Get().Log(ctx, level, "http request completed", event.Attrs()...)
	return resp, nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PauloHFS/otel-chat-tools/internal/config"
	"github.com/PauloHFS/otel-chat-tools/internal/conversation"
	"github.com/PauloHFS/otel-chat-tools/internal/functions"
	"github.com/PauloHFS/otel-chat-tools/internal/httpclient"
	"github.com/PauloHFS/otel-chat-tools/internal/llm"
	"github.com/PauloHFS/otel-chat-tools/internal/logging"
	"github.com/PauloHFS/otel-chat-tools/internal/middleware"
	"github.com/PauloHFS/otel-chat-tools/internal/scenario"
	"github.com/PauloHFS/otel-chat-tools/internal/telemetry"
	"github.com/PauloHFS/otel-chat-tools/internal/tools"
)

const shutdownTimeout = 5 * time.Second

// runtime owns the process-wide collaborators of a conversation run: the
// tracer provider, the optional metrics endpoint and the logger.
type runtime struct {
	cfg      *config.Config
	provider *telemetry.Provider
	metrics  *http.Server
	logger   *slog.Logger
}

func startRuntime(ctx context.Context, cfg *config.Config, logOutput io.Writer) (*runtime, error) {
	logging.InitWith(logging.Options{
		Level:   cfg.LogLevel,
		Service: cfg.ServiceName,
		Output:  logOutput,
	})
	logger := logging.Get()

	provider, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: Version,
		Protocol:       cfg.OTLPProtocol,
		Endpoint:       cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
		Writer:         logOutput,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}

	r := &runtime{cfg: cfg, provider: provider, logger: logger}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		r.metrics = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: middleware.Recovery(middleware.Logger(mux)),
		}

		go func() {
			logger.Info("metrics server started", "addr", cfg.MetricsAddr)
			if err := r.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	logger.Debug("runtime started",
		"otlp_protocol", cfg.OTLPProtocol,
		"otlp_endpoint", cfg.OTLPEndpoint,
		"model", cfg.ChatModel,
	)
	return r, nil
}

// newLoop wires the chat client and the scenario's tools into a loop.
func (r *runtime) newLoop(sc *scenario.Scenario, model string) (*conversation.Loop, error) {
	if err := r.cfg.ValidateChat(); err != nil {
		return nil, err
	}
	if model == "" {
		model = r.cfg.ChatModel
	}

	catalog, err := functions.NewCatalog(sc.Tools...)
	if err != nil {
		return nil, err
	}

	tracer := r.provider.Tracer()

	hc := httpclient.New(httpclient.Config{
		Name:           "chat",
		Timeout:        r.cfg.ChatTimeout,
		TracerProvider: r.provider.TracerProvider,
	})

	opts := []llm.ClientOption{
		llm.WithBaseURL(r.cfg.ChatEndpoint),
		llm.WithModel(model),
		llm.WithOrganization(r.cfg.Organization),
		llm.WithCompletionsPath(r.cfg.CompletionsPath),
		llm.WithHTTPClient(hc.Client),
		llm.WithTimeout(r.cfg.ChatTimeout),
		llm.WithMaxRetries(r.cfg.MaxRetries),
		llm.WithRateLimit(r.cfg.RateLimit, 1),
		llm.WithStreamingFormat(llm.StreamingFormat(r.cfg.StreamingFormat)),
	}
	if r.cfg.ChatKey != "" {
		opts = append(opts,
			llm.WithAPIKey(r.cfg.ChatKey),
			llm.WithDefaultHeaders(map[string]string{"api-key": r.cfg.ChatKey}),
		)
	}

	client, err := llm.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat client: %w", err)
	}

	var chat llm.LLMClient = llm.NewMetricsMiddleware(client, model)
	chat = llm.NewTracingMiddleware(chat, tracer, "", model)

	dispatcher := tools.NewDispatcher(catalog,
		tools.WithTracer(tracer),
		tools.WithLogger(r.logger),
	)

	return conversation.NewLoop(chat, dispatcher,
		conversation.WithTracer(tracer),
		conversation.WithLogger(r.logger),
		conversation.WithModel(model),
		conversation.WithMaxIterations(r.cfg.MaxIterations),
		conversation.WithSpanName(sc.SpanName),
	), nil
}

// close flushes buffered spans and stops the metrics endpoint.
func (r *runtime) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if r.metrics != nil {
		if err := r.metrics.Shutdown(ctx); err != nil {
			r.logger.Error("metrics server forced to shutdown", "error", err)
		}
	}
	if err := r.provider.Shutdown(ctx); err != nil {
		r.logger.Error("failed to flush spans", "error", err)
	}
}

// Package conversation drives a chat completion back and forth with local
// tool execution until the model produces a final answer.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/PauloHFS/otel-chat-tools/internal/llm"
	"github.com/PauloHFS/otel-chat-tools/internal/logging"
	"github.com/PauloHFS/otel-chat-tools/internal/metrics"
	"github.com/PauloHFS/otel-chat-tools/internal/telemetry"
	"github.com/PauloHFS/otel-chat-tools/internal/tools"
)

const (
	DefaultMaxIterations = 10
	DefaultSpanName      = "conversation"

	modeGenerate = "generate"
	modeStream   = "stream"
)

// Transcript is the outcome of a completed run.
type Transcript struct {
	RunID string
	// Messages is the sequence sent with the final completion call.
	Messages []llm.Message
	Final    llm.Message
	// Iterations counts completion calls.
	Iterations int
	ToolCalls  int
	// Tools names the invoked tools in call order.
	Tools []string
}

func (t *Transcript) Answer() string {
	return t.Final.Content
}

type Loop struct {
	client        llm.LLMClient
	dispatcher    *tools.Dispatcher
	tracer        trace.Tracer
	logger        *slog.Logger
	model         string
	maxIterations int
	spanName      string
	temperature   float64
}

type Option func(*Loop)

func WithTracer(t trace.Tracer) Option {
	return func(l *Loop) {
		if t != nil {
			l.tracer = t
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithModel(model string) Option {
	return func(l *Loop) {
		l.model = model
	}
}

// WithMaxIterations bounds the number of completion calls per run.
// Non-positive values keep the default.
func WithMaxIterations(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxIterations = n
		}
	}
}

func WithSpanName(name string) Option {
	return func(l *Loop) {
		if name != "" {
			l.spanName = name
		}
	}
}

func WithTemperature(t float64) Option {
	return func(l *Loop) {
		l.temperature = t
	}
}

func NewLoop(client llm.LLMClient, dispatcher *tools.Dispatcher, opts ...Option) *Loop {
	l := &Loop{
		client:        client,
		dispatcher:    dispatcher,
		tracer:        noop.NewTracerProvider().Tracer(telemetry.InstrumentationName),
		logger:        logging.Get(),
		maxIterations: DefaultMaxIterations,
		spanName:      DefaultSpanName,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// completion is the result of one remote call in either mode.
type completion struct {
	message      llm.Message
	finishReason string
}

type completeFunc func(ctx context.Context, req llm.CompletionRequest) (completion, error)

// Run sends seed to the model and resolves tool calls until the model stops
// asking for them, returning the final answer.
func (l *Loop) Run(ctx context.Context, seed []llm.Message) (string, error) {
	t, err := l.Converse(ctx, seed)
	if err != nil {
		return "", err
	}
	return t.Answer(), nil
}

func (l *Loop) Converse(ctx context.Context, seed []llm.Message) (*Transcript, error) {
	return l.converse(ctx, modeGenerate, seed, l.generate)
}

func (l *Loop) generate(ctx context.Context, req llm.CompletionRequest) (completion, error) {
	resp, err := l.client.Generate(ctx, req)
	if err != nil {
		return completion{}, fmt.Errorf("%w: %w", ErrRemoteCall, err)
	}
	choice, ok := resp.Choice()
	if !ok {
		return completion{}, fmt.Errorf("%w: response has no choices", ErrRemoteCall)
	}
	c := completion{finishReason: choice.FinishReason}
	if choice.Message != nil {
		c.message = *choice.Message
	}
	c.message.Role = llm.RoleAssistant
	return c, nil
}

func (l *Loop) converse(ctx context.Context, mode string, seed []llm.Message, complete completeFunc) (*Transcript, error) {
	start := time.Now()
	runID := uuid.NewString()

	ctx, event := logging.NewEventContext(ctx)
	event.Add(
		slog.String("run_id", runID),
		slog.String("mode", mode),
		slog.String("span_name", l.spanName),
	)

	ctx, span := l.tracer.Start(ctx, l.spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("conversation.run_id", runID),
			attribute.String("conversation.mode", mode),
		),
	)

	t, err := l.loop(ctx, runID, seed, complete)

	span.SetAttributes(
		attribute.Int("conversation.iterations", t.Iterations),
		attribute.Int("conversation.tool_calls", t.ToolCalls),
	)
	telemetry.End(span, err)

	outcome := outcomeOf(err)
	metrics.ConversationsTotal.WithLabelValues(mode, outcome).Inc()
	metrics.ConversationIterations.WithLabelValues(mode).Observe(float64(t.Iterations))

	event.Add(
		slog.Int("iterations", t.Iterations),
		slog.Int("tool_calls", t.ToolCalls),
		slog.Any("tools", t.Tools),
		slog.String("outcome", outcome),
		slog.Duration("duration", time.Since(start)),
	)
	if err != nil {
		event.Add(slog.String("error", err.Error()))
		l.logger.ErrorContext(ctx, "conversation failed", event.Attrs()...)
		return nil, err
	}
	l.logger.InfoContext(ctx, "conversation completed", event.Attrs()...)
	return t, nil
}

// loop alternates between awaiting the model and resolving the tool calls it
// requests. The returned transcript carries counters even on failure.
func (l *Loop) loop(ctx context.Context, runID string, seed []llm.Message, complete completeFunc) (*Transcript, error) {
	t := &Transcript{RunID: runID}
	messages := append([]llm.Message(nil), seed...)
	definitions := l.dispatcher.Catalog().Tools()

	for {
		if t.Iterations >= l.maxIterations {
			return t, fmt.Errorf("%w: %d", ErrMaxIterations, l.maxIterations)
		}
		t.Iterations++

		req := llm.CompletionRequest{
			Model:       l.model,
			Messages:    messages,
			Tools:       definitions,
			Temperature: l.temperature,
		}
		c, err := complete(ctx, req)
		if err != nil {
			return t, err
		}

		if c.finishReason != llm.FinishReasonToolCalls {
			t.Messages = messages
			t.Final = c.message
			return t, nil
		}

		calls := c.message.ToolCalls
		if len(calls) == 0 {
			return t, ErrEmptyToolCallSet
		}

		assistant := llm.AssistantMessage(c.message.Content, requestCalls(calls)...)
		next := make([]llm.Message, 0, len(messages)+1+len(calls))
		next = append(next, messages...)
		next = append(next, assistant)

		for _, call := range calls {
			result, err := l.dispatcher.Invoke(ctx, call)
			if err != nil {
				return t, err
			}
			t.ToolCalls++
			t.Tools = append(t.Tools, call.Function.Name)
			next = append(next, result)
		}
		messages = next
	}
}

// requestCalls strips stream indices so the calls echo back in request shape.
func requestCalls(calls []llm.ToolCall) []llm.ToolCall {
	out := make([]llm.ToolCall, len(calls))
	for i, c := range calls {
		c.Index = 0
		if c.Type == "" {
			c.Type = "function"
		}
		out[i] = c
	}
	return out
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRemoteCall):
		return "remote_error"
	case errors.Is(err, tools.ErrUnknownTool):
		return "unknown_tool"
	case errors.Is(err, tools.ErrArgumentParse):
		return "invalid_arguments"
	case errors.Is(err, ErrEmptyToolCallSet):
		return "empty_tool_calls"
	case errors.Is(err, ErrMaxIterations):
		return "max_iterations"
	default:
		return "error"
	}
}

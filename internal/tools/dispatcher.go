package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/PauloHFS/otel-chat-tools/internal/llm"
	"github.com/PauloHFS/otel-chat-tools/internal/logging"
	"github.com/PauloHFS/otel-chat-tools/internal/metrics"
	"github.com/PauloHFS/otel-chat-tools/internal/telemetry"
)

const (
	spanPrefix      = "local_"
	parameterPrefix = "parameter."
)

// Dispatcher resolves tool calls from the model against a Catalog and runs
// the matching handler inside a child span.
type Dispatcher struct {
	catalog *Catalog
	tracer  trace.Tracer
	logger  *slog.Logger
}

type DispatcherOption func(*Dispatcher)

func WithTracer(t trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) {
		if t != nil {
			d.tracer = t
		}
	}
}

func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

func NewDispatcher(catalog *Catalog, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		catalog: catalog,
		tracer:  noop.NewTracerProvider().Tracer(telemetry.InstrumentationName),
		logger:  logging.Get(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Catalog() *Catalog {
	return d.catalog
}

// Invoke runs the handler for call and returns the tool message to append to
// the conversation. Invoking the same call twice yields the same message.
func (d *Dispatcher) Invoke(ctx context.Context, call llm.ToolCall) (llm.Message, error) {
	e, ok := d.catalog.resolve(call.Function.Name)
	if !ok {
		metrics.ToolInvocationsTotal.WithLabelValues("unknown", "unknown_tool").Inc()
		logging.AddToEvent(ctx,
			slog.String("failed_tool", call.Function.Name),
			slog.String("failed_tool_call_id", call.ID),
		)
		return llm.Message{}, fmt.Errorf("%w: %q", ErrUnknownTool, call.Function.Name)
	}
	name := e.def.Name

	ctx, span := d.tracer.Start(ctx, spanPrefix+name)
	start := time.Now()

	text, err := d.call(ctx, span, e.handler, call.Function.Arguments)

	metrics.ToolDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	metrics.ToolInvocationsTotal.WithLabelValues(name, outcome(err)).Inc()
	telemetry.End(span, err)

	if err != nil {
		// The loop stops at the first failed call, so these keys appear once per run event.
		logging.AddToEvent(ctx,
			slog.String("failed_tool", name),
			slog.String("failed_tool_call_id", call.ID),
		)
		d.logger.WarnContext(ctx, "tool call failed",
			slog.String("tool", name),
			slog.String("tool_call_id", call.ID),
			slog.String("error", err.Error()),
		)
		return llm.Message{}, fmt.Errorf("tool %s: %w", name, err)
	}

	d.logger.DebugContext(ctx, "tool call completed",
		slog.String("tool", name),
		slog.String("tool_call_id", call.ID),
		slog.Duration("duration", time.Since(start)),
	)
	return llm.ToolMessage(call.ID, text), nil
}

func (d *Dispatcher) call(ctx context.Context, span trace.Span, h Handler, arguments string) (string, error) {
	raw := json.RawMessage(bytes.TrimSpace([]byte(arguments)))
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", fmt.Errorf("%w: %w", ErrArgumentParse, err)
	}
	if fields == nil {
		return "", fmt.Errorf("%w: arguments must be a JSON object", ErrArgumentParse)
	}
	span.SetAttributes(parameterAttributes(fields)...)

	return h.Call(ctx, raw)
}

// parameterAttributes maps scalar argument values to parameter.<field>
// attributes in key order. Nested values are skipped.
func parameterAttributes(fields map[string]any) []attribute.KeyValue {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		key := parameterPrefix + k
		switch v := fields[k].(type) {
		case string:
			attrs = append(attrs, attribute.String(key, v))
		case bool:
			attrs = append(attrs, attribute.Bool(key, v))
		case float64:
			if v == float64(int64(v)) {
				attrs = append(attrs, attribute.Int64(key, int64(v)))
			} else {
				attrs = append(attrs, attribute.Float64(key, v))
			}
		}
	}
	return attrs
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrArgumentParse):
		return "invalid_arguments"
	default:
		return "error"
	}
}

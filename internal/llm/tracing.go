package llm

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys follow the OpenTelemetry GenAI semantic conventions.
const (
	attrSystem         = attribute.Key("gen_ai.system")
	attrOperation      = attribute.Key("gen_ai.operation.name")
	attrRequestModel   = attribute.Key("gen_ai.request.model")
	attrResponseModel  = attribute.Key("gen_ai.response.model")
	attrResponseID     = attribute.Key("gen_ai.response.id")
	attrFinishReasons  = attribute.Key("gen_ai.response.finish_reasons")
	attrInputTokens    = attribute.Key("gen_ai.usage.input_tokens")
	attrOutputTokens   = attribute.Key("gen_ai.usage.output_tokens")
	attrToolCallsCount = attribute.Key("gen_ai.response.tool_calls")
)

// TracingMiddleware opens a client span named "chat <model>" around every
// completion call, in the shape produced by vendor SDK instrumentation.
type TracingMiddleware struct {
	client LLMClient
	tracer trace.Tracer
	system string
	model  string
}

func NewTracingMiddleware(client LLMClient, tracer trace.Tracer, system, model string) *TracingMiddleware {
	if system == "" {
		system = "openai"
	}
	return &TracingMiddleware{client: client, tracer: tracer, system: system, model: model}
}

func (t *TracingMiddleware) start(ctx context.Context, req CompletionRequest) (context.Context, trace.Span) {
	model := req.Model
	if model == "" {
		model = t.model
	}
	return t.tracer.Start(ctx, "chat "+model,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attrSystem.String(t.system),
			attrOperation.String("chat"),
			attrRequestModel.String(model),
		),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (t *TracingMiddleware) Generate(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, span := t.start(ctx, req)

	resp, err := t.client.Generate(ctx, req)
	if err != nil {
		endSpan(span, err)
		return nil, err
	}

	span.SetAttributes(
		attrResponseID.String(resp.ID),
		attrResponseModel.String(resp.Model),
		attrInputTokens.Int(resp.Usage.PromptTokens),
		attrOutputTokens.Int(resp.Usage.CompletionTokens),
	)
	if choice, ok := resp.Choice(); ok {
		span.SetAttributes(attrFinishReasons.StringSlice([]string{choice.FinishReason}))
		if choice.Message != nil {
			span.SetAttributes(attrToolCallsCount.Int(len(choice.Message.ToolCalls)))
		}
	}
	endSpan(span, nil)

	return resp, nil
}

func (t *TracingMiddleware) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	ctx, span := t.start(ctx, req)

	ch, err := t.client.Stream(ctx, req)
	if err != nil {
		endSpan(span, err)
		return nil, err
	}

	wrapped := make(chan StreamChunk)

	go func() {
		defer close(wrapped)
		var (
			finishReason string
			streamErr    error
			chunks       int
		)

		for chunk := range ch {
			chunks++
			if chunk.Err != nil {
				streamErr = chunk.Err
			}
			if chunk.ID != "" {
				span.SetAttributes(attrResponseID.String(chunk.ID))
			}
			if chunk.Usage != nil {
				span.SetAttributes(
					attrInputTokens.Int(chunk.Usage.PromptTokens),
					attrOutputTokens.Int(chunk.Usage.CompletionTokens),
				)
			}
			if len(chunk.Choices) > 0 && chunk.Choices[0].FinishReason != "" {
				finishReason = chunk.Choices[0].FinishReason
			}
			select {
			case wrapped <- chunk:
			case <-ctx.Done():
				endSpan(span, errors.Join(ErrStreamClosed, ctx.Err()))
				return
			}
		}

		span.SetAttributes(attribute.Int("gen_ai.response.chunks", chunks))
		if finishReason != "" {
			span.SetAttributes(attrFinishReasons.StringSlice([]string{finishReason}))
		}
		endSpan(span, streamErr)
	}()

	return wrapped, nil
}

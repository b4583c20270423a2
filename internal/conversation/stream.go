package conversation

import (
	"context"
	"fmt"

	"github.com/PauloHFS/otel-chat-tools/internal/llm"
)

// RunStream is Run with every completion delivered as a stream.
func (l *Loop) RunStream(ctx context.Context, seed []llm.Message) (string, error) {
	t, err := l.ConverseStream(ctx, seed)
	if err != nil {
		return "", err
	}
	return t.Answer(), nil
}

func (l *Loop) ConverseStream(ctx context.Context, seed []llm.Message) (*Transcript, error) {
	return l.converse(ctx, modeStream, seed, l.stream)
}

// stream accumulates one streamed completion. Some backends finish a stream
// that carried tool calls with "stop" or no reason at all; accumulated calls
// take precedence in that case.
func (l *Loop) stream(ctx context.Context, req llm.CompletionRequest) (completion, error) {
	ch, err := l.client.Stream(ctx, req)
	if err != nil {
		return completion{}, fmt.Errorf("%w: %w", ErrRemoteCall, err)
	}

	acc := NewAccumulator()
	if err := acc.Consume(ctx, ch); err != nil {
		drain(ch)
		return completion{}, err
	}

	c := completion{
		message:      acc.Message(),
		finishReason: acc.FinishReason(),
	}
	if len(c.message.ToolCalls) > 0 {
		c.finishReason = llm.FinishReasonToolCalls
	}
	return c, nil
}

// drain reads ch until the producer closes it, so spans owned by wrapping
// clients have ended before the caller ends its own.
func drain(ch <-chan llm.StreamChunk) {
	for range ch {
	}
}

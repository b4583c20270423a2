package conversation

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/PauloHFS/otel-chat-tools/internal/llm"
)

// Accumulator merges streamed deltas into one content string and a set of
// tool calls. It does not decide which of the two the response is; callers
// look at FinishReason and whichever part they expect.
type Accumulator struct {
	content      strings.Builder
	calls        map[int]*partialCall
	finishReason string
}

type partialCall struct {
	id        string
	typ       string
	name      string
	arguments strings.Builder
}

func NewAccumulator() *Accumulator {
	return &Accumulator{calls: make(map[int]*partialCall)}
}

// Add folds one chunk into the accumulated state. Tool-call id and name are
// kept from the first chunk that carries them; argument fragments are
// appended in arrival order.
func (a *Accumulator) Add(chunk llm.StreamChunk) {
	for _, choice := range chunk.Choices {
		a.content.WriteString(choice.Delta.Content)

		for _, delta := range choice.Delta.ToolCalls {
			pc, ok := a.calls[delta.Index]
			if !ok {
				pc = &partialCall{}
				a.calls[delta.Index] = pc
			}
			if pc.id == "" {
				pc.id = delta.ID
			}
			if pc.typ == "" {
				pc.typ = delta.Type
			}
			if pc.name == "" {
				pc.name = delta.Function.Name
			}
			pc.arguments.WriteString(delta.Function.Arguments)
		}

		if choice.FinishReason != "" {
			a.finishReason = choice.FinishReason
		}
	}
}

// Consume reads ch until it is closed. A chunk carrying Err stops the pass
// and is returned wrapped in ErrRemoteCall.
func (a *Accumulator) Consume(ctx context.Context, ch <-chan llm.StreamChunk) error {
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrRemoteCall, ctx.Err())
		case chunk, ok := <-ch:
			if !ok {
				return nil
			}
			if chunk.Err != nil {
				return fmt.Errorf("%w: %w", ErrRemoteCall, chunk.Err)
			}
			a.Add(chunk)
		}
	}
}

func (a *Accumulator) Content() string {
	return a.content.String()
}

func (a *Accumulator) FinishReason() string {
	return a.finishReason
}

// ToolCall returns the first accumulated tool call.
func (a *Accumulator) ToolCall() (llm.ToolCall, bool) {
	calls := a.ToolCalls()
	if len(calls) == 0 {
		return llm.ToolCall{}, false
	}
	return calls[0], true
}

// ToolCalls returns every accumulated call ordered by stream index. Calls
// that never received a name are dropped.
func (a *Accumulator) ToolCalls() []llm.ToolCall {
	indices := make([]int, 0, len(a.calls))
	for i := range a.calls {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	calls := make([]llm.ToolCall, 0, len(indices))
	for _, i := range indices {
		pc := a.calls[i]
		if pc.name == "" {
			continue
		}
		typ := pc.typ
		if typ == "" {
			typ = "function"
		}
		calls = append(calls, llm.ToolCall{
			ID:   pc.id,
			Type: typ,
			Function: llm.Function{
				Name:      pc.name,
				Arguments: pc.arguments.String(),
			},
		})
	}
	return calls
}

// Message renders the accumulated response as an assistant message.
func (a *Accumulator) Message() llm.Message {
	return llm.AssistantMessage(a.Content(), a.ToolCalls()...)
}

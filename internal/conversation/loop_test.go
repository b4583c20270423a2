package conversation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/PauloHFS/otel-chat-tools/internal/functions"
	"github.com/PauloHFS/otel-chat-tools/internal/llm"
	"github.com/PauloHFS/otel-chat-tools/internal/metrics"
	"github.com/PauloHFS/otel-chat-tools/internal/tools"
)

// scriptedClient replays canned responses and records every request.
type scriptedClient struct {
	responses []*llm.CompletionResponse
	streams   [][]llm.StreamChunk
	err       error
	requests  []llm.CompletionRequest
}

func (s *scriptedClient) Generate(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	i := len(s.requests) - 1
	if i >= len(s.responses) {
		return s.responses[len(s.responses)-1], nil
	}
	return s.responses[i], nil
}

func (s *scriptedClient) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	chunks := s.streams[len(s.requests)-1]
	ch := make(chan llm.StreamChunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func toolCallsResponse(calls ...llm.ToolCall) *llm.CompletionResponse {
	return &llm.CompletionResponse{Choices: []llm.Choice{{
		FinishReason: llm.FinishReasonToolCalls,
		Message:      &llm.Message{Role: llm.RoleAssistant, ToolCalls: calls},
	}}}
}

func stopResponse(content string) *llm.CompletionResponse {
	return &llm.CompletionResponse{Choices: []llm.Choice{{
		FinishReason: llm.FinishReasonStop,
		Message:      &llm.Message{Role: llm.RoleAssistant, Content: content},
	}}}
}

func call(id, name, args string) llm.ToolCall {
	return llm.ToolCall{ID: id, Type: "function", Function: llm.Function{Name: name, Arguments: args}}
}

func weatherSeed() []llm.Message {
	return []llm.Message{
		llm.SystemMessage("You are a helpful assistant."),
		llm.UserMessage("What is the weather and temperature in Seattle?"),
	}
}

func newTestLoop(tb testing.TB, client llm.LLMClient, opts ...Option) (*Loop, *tracetest.SpanRecorder) {
	tb.Helper()
	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

	catalog, err := functions.NewCatalog(functions.Available()...)
	if err != nil {
		tb.Fatal(err)
	}
	dispatcher := tools.NewDispatcher(catalog, tools.WithTracer(tracer))
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	opts = append([]Option{WithTracer(tracer), WithLogger(logger), WithSpanName("contoso-weather-temperature-app")}, opts...)
	return NewLoop(client, dispatcher, opts...), recorder
}

func spanNamed(spans []sdktrace.ReadOnlySpan, name string) sdktrace.ReadOnlySpan {
	for _, s := range spans {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

func TestLoop_WeatherAndTemperature(t *testing.T) {
	client := &scriptedClient{responses: []*llm.CompletionResponse{
		toolCallsResponse(
			call("call_w", "get_weather", `{"city":"Seattle"}`),
			call("call_t", "get_temperature", `{"city":"Seattle"}`),
		),
		stopResponse("It's nice weather and 75 degrees in Seattle."),
	}}
	loop, recorder := newTestLoop(t, client)

	seed := weatherSeed()
	transcript, err := loop.Converse(context.Background(), seed)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if transcript.Answer() != "It's nice weather and 75 degrees in Seattle." {
		t.Errorf("unexpected answer %q", transcript.Answer())
	}
	if transcript.Iterations != 2 || transcript.ToolCalls != 2 {
		t.Errorf("expected 2 iterations and 2 tool calls, got %d and %d", transcript.Iterations, transcript.ToolCalls)
	}
	if len(seed) != 2 {
		t.Errorf("seed must not be modified, got %d messages", len(seed))
	}

	if len(client.requests) != 2 {
		t.Fatalf("expected 2 completion calls, got %d", len(client.requests))
	}
	for i, req := range client.requests {
		if len(req.Tools) != 3 {
			t.Errorf("request %d: expected full catalog attached, got %d tools", i, len(req.Tools))
		}
	}

	final := client.requests[1].Messages
	if len(final) != 5 {
		t.Fatalf("expected 5 messages in the final call, got %d", len(final))
	}
	if len(transcript.Messages) != 5 {
		t.Errorf("expected transcript to hold the final call messages, got %d", len(transcript.Messages))
	}
	wantRoles := []llm.Role{llm.RoleSystem, llm.RoleUser, llm.RoleAssistant, llm.RoleTool, llm.RoleTool}
	for i, role := range wantRoles {
		if final[i].Role != role {
			t.Errorf("message %d: expected role %s, got %s", i, role, final[i].Role)
		}
	}
	if len(final[2].ToolCalls) != 2 {
		t.Errorf("expected assistant message to carry both tool calls, got %d", len(final[2].ToolCalls))
	}
	if final[3].ToolCallID != "call_w" || final[3].Content != "Nice weather" {
		t.Errorf("unexpected weather result %+v", final[3])
	}
	if final[4].ToolCallID != "call_t" || final[4].Content != "75" {
		t.Errorf("unexpected temperature result %+v", final[4])
	}

	spans := recorder.Ended()
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}
	root := spanNamed(spans, "contoso-weather-temperature-app")
	if root == nil {
		t.Fatal("missing conversation span")
	}
	if root.SpanKind() != trace.SpanKindClient || root.Status().Code != codes.Ok {
		t.Errorf("unexpected conversation span kind %v status %v", root.SpanKind(), root.Status())
	}
	if spans[len(spans)-1].Name() != root.Name() {
		t.Error("expected conversation span to end last")
	}
	for _, name := range []string{"local_get_weather", "local_get_temperature"} {
		child := spanNamed(spans, name)
		if child == nil {
			t.Errorf("missing span %s", name)
			continue
		}
		if child.Parent().SpanID() != root.SpanContext().SpanID() {
			t.Errorf("expected %s to be a child of the conversation span", name)
		}
	}
}

func TestLoop_Run(t *testing.T) {
	client := &scriptedClient{responses: []*llm.CompletionResponse{stopResponse("Hello")}}
	loop, _ := newTestLoop(t, client, WithModel("gpt-4o"), WithTemperature(0.2))

	got, err := loop.Run(context.Background(), weatherSeed())
	if err != nil {
		t.Fatal(err)
	}
	if got != "Hello" {
		t.Errorf("expected Hello, got %q", got)
	}
	if client.requests[0].Model != "gpt-4o" || client.requests[0].Temperature != 0.2 {
		t.Errorf("expected model and temperature on request, got %+v", client.requests[0])
	}
}

func TestLoop_Errors(t *testing.T) {
	apiErr := &llm.APIError{StatusCode: 500, Message: "upstream down"}

	tests := []struct {
		name    string
		client  *scriptedClient
		wantErr error
	}{
		{
			name:    "empty tool call set",
			client:  &scriptedClient{responses: []*llm.CompletionResponse{toolCallsResponse()}},
			wantErr: ErrEmptyToolCallSet,
		},
		{
			name:    "remote failure",
			client:  &scriptedClient{err: apiErr},
			wantErr: ErrRemoteCall,
		},
		{
			name:    "no choices",
			client:  &scriptedClient{responses: []*llm.CompletionResponse{{}}},
			wantErr: ErrRemoteCall,
		},
		{
			name:    "unknown tool",
			client:  &scriptedClient{responses: []*llm.CompletionResponse{toolCallsResponse(call("c", "get_humidity", `{}`))}},
			wantErr: tools.ErrUnknownTool,
		},
		{
			name:    "bad arguments",
			client:  &scriptedClient{responses: []*llm.CompletionResponse{toolCallsResponse(call("c", "get_weather", `{"city"`))}},
			wantErr: tools.ErrArgumentParse,
		},
		{
			name: "never stops",
			client: &scriptedClient{responses: []*llm.CompletionResponse{
				toolCallsResponse(call("c", "get_weather", `{"city":"Seattle"}`)),
			}},
			wantErr: ErrMaxIterations,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loop, recorder := newTestLoop(t, tt.client, WithMaxIterations(3))

			_, err := loop.Run(context.Background(), weatherSeed())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}

			root := spanNamed(recorder.Ended(), "contoso-weather-temperature-app")
			if root == nil {
				t.Fatal("missing conversation span")
			}
			if root.Status().Code != codes.Error {
				t.Errorf("expected error status on conversation span, got %v", root.Status())
			}
		})
	}
}

func TestLoop_RemoteErrorKeepsType(t *testing.T) {
	client := &scriptedClient{err: &llm.RateLimitError{APIError: llm.APIError{StatusCode: 429}}}
	loop, _ := newTestLoop(t, client)

	_, err := loop.Run(context.Background(), weatherSeed())
	if !llm.IsRateLimitError(err) {
		t.Errorf("expected rate limit error to be reachable, got %v", err)
	}
}

func TestLoop_MaxIterationsBound(t *testing.T) {
	client := &scriptedClient{responses: []*llm.CompletionResponse{
		toolCallsResponse(call("c", "get_weather", `{"city":"Seattle"}`)),
	}}
	loop, _ := newTestLoop(t, client, WithMaxIterations(4))

	if _, err := loop.Run(context.Background(), weatherSeed()); !errors.Is(err, ErrMaxIterations) {
		t.Fatalf("expected ErrMaxIterations, got %v", err)
	}
	if len(client.requests) != 4 {
		t.Errorf("expected exactly 4 completion calls, got %d", len(client.requests))
	}
}

func TestLoop_Metrics(t *testing.T) {
	counter := metrics.ConversationsTotal.WithLabelValues("generate", "empty_tool_calls")
	before := testutil.ToFloat64(counter)

	client := &scriptedClient{responses: []*llm.CompletionResponse{toolCallsResponse()}}
	loop, _ := newTestLoop(t, client)
	_, _ = loop.Run(context.Background(), weatherSeed())

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("expected conversation counter to increase by 1, got %v", got)
	}
}

func TestLoop_StreamFlightInfo(t *testing.T) {
	client := &scriptedClient{streams: [][]llm.StreamChunk{
		{
			toolChunk(0, "call_f", "get_flight_info", `{"origin_city":`),
			toolChunk(0, "", "", `"Seattle","destination_city":"Miami"}`),
			finishChunk(llm.FinishReasonToolCalls),
		},
		{
			contentChunk("The next flight is Delta "),
			contentChunk("DL123 on May 7th, 2024 at 10:00AM."),
			finishChunk(llm.FinishReasonStop),
		},
	}}
	loop, recorder := newTestLoop(t, client, WithSpanName("contoso-flight-info-app"))

	seed := []llm.Message{
		llm.SystemMessage("You an assistant that helps users find flight information."),
		llm.UserMessage("What is the next flights from Seattle to Miami?"),
	}
	transcript, err := loop.ConverseStream(context.Background(), seed)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if transcript.Answer() != "The next flight is Delta DL123 on May 7th, 2024 at 10:00AM." {
		t.Errorf("unexpected answer %q", transcript.Answer())
	}

	toolMsg := client.requests[1].Messages[3]
	if toolMsg.ToolCallID != "call_f" || toolMsg.Role != llm.RoleTool {
		t.Errorf("unexpected tool message %+v", toolMsg)
	}

	root := spanNamed(recorder.Ended(), "contoso-flight-info-app")
	if root == nil || root.Status().Code != codes.Ok {
		t.Fatalf("expected ok flight span, got %v", root)
	}
	if spanNamed(recorder.Ended(), "local_get_flight_info") == nil {
		t.Error("missing local_get_flight_info span")
	}
}

func TestLoop_StreamToolCallsWithoutFinishReason(t *testing.T) {
	client := &scriptedClient{streams: [][]llm.StreamChunk{
		{toolChunk(0, "c1", "get_weather", `{"city":"Seattle"}`), finishChunk(llm.FinishReasonStop)},
		{contentChunk("Nice"), finishChunk(llm.FinishReasonStop)},
	}}
	loop, _ := newTestLoop(t, client)

	got, err := loop.RunStream(context.Background(), weatherSeed())
	if err != nil {
		t.Fatal(err)
	}
	if got != "Nice" || len(client.requests) != 2 {
		t.Errorf("expected tool call to be resolved before answering, got %q after %d calls", got, len(client.requests))
	}
}

func TestLoop_StreamErrors(t *testing.T) {
	broken := errors.New("connection reset")

	tests := []struct {
		name    string
		client  *scriptedClient
		wantErr error
	}{
		{
			name:    "broken stream",
			client:  &scriptedClient{streams: [][]llm.StreamChunk{{contentChunk("par"), {Err: broken}}}},
			wantErr: broken,
		},
		{
			name:    "stream refused",
			client:  &scriptedClient{err: &llm.AuthenticationError{APIError: llm.APIError{StatusCode: 401}}},
			wantErr: ErrRemoteCall,
		},
		{
			name:    "empty tool call set",
			client:  &scriptedClient{streams: [][]llm.StreamChunk{{finishChunk(llm.FinishReasonToolCalls)}}},
			wantErr: ErrEmptyToolCallSet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loop, _ := newTestLoop(t, tt.client)
			if _, err := loop.RunStream(context.Background(), weatherSeed()); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoop_StreamErrorEndsChatSpanFirst(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

	client := &scriptedClient{streams: [][]llm.StreamChunk{
		{contentChunk("par"), {Err: llm.ErrStreamClosed}},
	}}
	traced := llm.NewTracingMiddleware(client, tracer, "", "gpt-4o")

	loop, _ := newTestLoop(t, traced, WithTracer(tracer))
	if _, err := loop.ConverseStream(context.Background(), weatherSeed()); !errors.Is(err, llm.ErrStreamClosed) {
		t.Fatalf("expected ErrStreamClosed, got %v", err)
	}

	ended := recorder.Ended()
	if len(ended) != 2 {
		t.Fatalf("expected 2 ended spans at return, got %d", len(ended))
	}
	if ended[0].Name() != "chat gpt-4o" {
		t.Errorf("expected chat span to end first, got %s", ended[0].Name())
	}
	last := ended[len(ended)-1]
	if last.Name() != "contoso-weather-temperature-app" {
		t.Errorf("expected conversation span to end last, got %s", last.Name())
	}
	if ended[0].Parent().SpanID() != last.SpanContext().SpanID() {
		t.Error("expected chat span to be a child of the conversation span")
	}
}

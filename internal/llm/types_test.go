package llm

import (
	"encoding/json"
	"testing"
)

func TestMessage_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name        string
		in          string
		wantContent string
		wantCalls   int
	}{
		{"string content", `{"role":"assistant","content":"It's nice"}`, "It's nice", 0},
		{"null content with calls", `{"role":"assistant","content":null,"tool_calls":[{"id":"c1","type":"function","function":{"name":"get_weather","arguments":"{}"}}]}`, "", 1},
		{"missing content", `{"role":"assistant"}`, "", 0},
		{"content parts", `{"role":"assistant","content":[{"type":"text","text":"75"},{"type":"text","text":" degrees"}]}`, "75 degrees", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Message
			if err := json.Unmarshal([]byte(tt.in), &m); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if m.Role != RoleAssistant {
				t.Errorf("expected assistant role, got %q", m.Role)
			}
			if m.Content != tt.wantContent {
				t.Errorf("content = %q, want %q", m.Content, tt.wantContent)
			}
			if len(m.ToolCalls) != tt.wantCalls {
				t.Errorf("tool calls = %d, want %d", len(m.ToolCalls), tt.wantCalls)
			}
		})
	}
}

func TestMessage_ToolMessageJSON(t *testing.T) {
	data, err := json.Marshal(ToolMessage("call_1", "Nice weather"))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"role":"tool","content":"Nice weather","tool_call_id":"call_1"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func TestFunction_UnmarshalArguments(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"string arguments", `{"name":"get_weather","arguments":"{\"city\":\"Seattle\"}"}`, `{"city":"Seattle"}`},
		{"object arguments", `{"name":"get_weather","arguments":{"city":"Seattle"}}`, `{"city":"Seattle"}`},
		{"null arguments", `{"name":"get_weather","arguments":null}`, ""},
		{"absent arguments", `{"name":"get_weather"}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f Function
			if err := json.Unmarshal([]byte(tt.in), &f); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if f.Name != "get_weather" {
				t.Errorf("unexpected name %q", f.Name)
			}
			if f.Arguments != tt.want {
				t.Errorf("arguments = %q, want %q", f.Arguments, tt.want)
			}
		})
	}
}

func TestOllamaStreamChunk_ToolCalls(t *testing.T) {
	var o OllamaStreamChunk
	in := `{"model":"llama3","message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"get_weather","arguments":{"city":"Seattle"}}}]},"done":true,"done_reason":"stop"}`
	if err := json.Unmarshal([]byte(in), &o); err != nil {
		t.Fatal(err)
	}
	chunk := o.ToStreamChunk()
	choice := chunk.Choices[0]
	if choice.FinishReason != FinishReasonToolCalls {
		t.Errorf("expected tool_calls finish reason, got %q", choice.FinishReason)
	}
	if len(choice.Delta.ToolCalls) != 1 || choice.Delta.ToolCalls[0].Function.Arguments != `{"city":"Seattle"}` {
		t.Errorf("unexpected tool calls %+v", choice.Delta.ToolCalls)
	}
}

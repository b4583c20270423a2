package llm

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

const (
	FinishReasonStop          = "stop"
	FinishReasonToolCalls     = "tool_calls"
	FinishReasonLength        = "length"
	FinishReasonContentFilter = "content_filter"
)

type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

func AssistantMessage(text string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: text, ToolCalls: calls}
}

func ToolMessage(toolCallID, text string) Message {
	return Message{Role: RoleTool, Content: text, ToolCallID: toolCallID}
}

type CompletionRequest struct {
	Model             string          `json:"model"`
	Messages          []Message       `json:"messages"`
	Temperature       float64         `json:"temperature,omitempty"`
	TopP              float64         `json:"top_p,omitempty"`
	MaxTokens         int             `json:"max_tokens,omitempty"`
	Stream            bool            `json:"stream,omitempty"`
	Stop              []string        `json:"stop,omitempty"`
	Tools             []Tool          `json:"tools,omitempty"`
	ToolChoice        *ToolChoice     `json:"tool_choice,omitempty"`
	ResponseFormat    *ResponseFormat `json:"response_format,omitempty"`
	User              string          `json:"user,omitempty"`
	Seed              *int            `json:"seed,omitempty"`
	ParallelToolCalls *bool           `json:"parallel_tool_calls,omitempty"`
}

type CompletionResponse struct {
	ID                string   `json:"id"`
	Object            string   `json:"object"`
	Created           int64    `json:"created"`
	Model             string   `json:"model"`
	Choices           []Choice `json:"choices"`
	Usage             Usage    `json:"usage"`
	SystemFingerprint string   `json:"system_fingerprint,omitempty"`
}

// Choice returns the first choice, the only one requested by this client.
func (r *CompletionResponse) Choice() (Choice, bool) {
	if r == nil || len(r.Choices) == 0 {
		return Choice{}, false
	}
	return r.Choices[0], true
}

type Choice struct {
	Index        int      `json:"index"`
	Message      *Message `json:"message,omitempty"`
	FinishReason string   `json:"finish_reason,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type StreamChunk struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []StreamChoice `json:"choices"`
	Usage   *Usage         `json:"usage,omitempty"`

	// Err is set on the last chunk when the stream broke before completion.
	Err error `json:"-"`
}

type StreamChoice struct {
	Index        int     `json:"index"`
	Delta        Message `json:"delta"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

type Tool struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	Strict      bool            `json:"strict,omitempty"`
}

type ToolCall struct {
	// Index identifies the call a streamed delta belongs to.
	Index    int      `json:"index,omitempty"`
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

type Function struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// UnmarshalJSON accepts arguments either as a JSON-encoded string (OpenAI)
// or as an inline object (Ollama native API).
func (f *Function) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	f.Name = raw.Name
	f.Arguments = ""

	args := bytes.TrimSpace(raw.Arguments)
	switch {
	case len(args) == 0 || string(args) == "null":
	case args[0] == '"':
		if err := json.Unmarshal(args, &f.Arguments); err != nil {
			return err
		}
	default:
		f.Arguments = string(args)
	}
	return nil
}

type ToolChoice struct {
	Type     string              `json:"type"`
	Function *ToolChoiceFunction `json:"function,omitempty"`
}

type ToolChoiceFunction struct {
	Name string `json:"name"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

type OllamaStreamChunk struct {
	Model      string    `json:"model"`
	CreatedAt  time.Time `json:"created_at"`
	Message    Message   `json:"message"`
	Done       bool      `json:"done"`
	DoneReason string    `json:"done_reason,omitempty"`
	EvalCount  int       `json:"eval_count,omitempty"`
	PromptEval int       `json:"prompt_eval_count,omitempty"`
}

func (o *OllamaStreamChunk) ToStreamChunk() StreamChunk {
	choice := StreamChoice{
		Delta: o.Message,
	}
	for i := range choice.Delta.ToolCalls {
		choice.Delta.ToolCalls[i].Index = i
	}
	if o.Done {
		switch {
		case len(o.Message.ToolCalls) > 0:
			choice.FinishReason = FinishReasonToolCalls
		case o.DoneReason != "":
			choice.FinishReason = o.DoneReason
		default:
			choice.FinishReason = FinishReasonStop
		}
	}

	chunk := StreamChunk{
		Model:   o.Model,
		Created: o.CreatedAt.Unix(),
		Choices: []StreamChoice{choice},
	}
	if o.Done && (o.EvalCount > 0 || o.PromptEval > 0) {
		chunk.Usage = &Usage{
			PromptTokens:     o.PromptEval,
			CompletionTokens: o.EvalCount,
			TotalTokens:      o.PromptEval + o.EvalCount,
		}
	}
	return chunk
}

type messageAlias Message

// UnmarshalJSON tolerates null content and content sent as an array of
// text parts.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		messageAlias
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = Message(raw.messageAlias)
	m.Content = ""

	content := bytes.TrimSpace(raw.Content)
	switch {
	case len(content) == 0 || string(content) == "null":
	case content[0] == '"':
		if err := json.Unmarshal(content, &m.Content); err != nil {
			return err
		}
	case content[0] == '[':
		var parts []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(content, &parts); err != nil {
			return err
		}
		var sb strings.Builder
		for _, p := range parts {
			sb.WriteString(p.Text)
		}
		m.Content = sb.String()
	default:
		m.Content = string(content)
	}

	return nil
}

package conversation

import "errors"

var (
	// ErrEmptyToolCallSet means the model reported a tool_calls finish
	// reason without any tool calls.
	ErrEmptyToolCallSet = errors.New("model requested tool calls but supplied none")
	ErrRemoteCall       = errors.New("chat completion call failed")
	ErrMaxIterations    = errors.New("conversation exceeded the maximum number of completion calls")
)

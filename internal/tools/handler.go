package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/PauloHFS/otel-chat-tools/internal/validator"
)

// Unavailable is returned by handlers for inputs they do not recognize. It is
// a normal result the model can react to, not an error.
const Unavailable = "Unavailable"

// Handler runs a tool with the raw JSON arguments sent by the model.
type Handler interface {
	Call(ctx context.Context, args json.RawMessage) (string, error)
}

type HandlerFunc func(ctx context.Context, args json.RawMessage) (string, error)

func (f HandlerFunc) Call(ctx context.Context, args json.RawMessage) (string, error) {
	return f(ctx, args)
}

// Typed adapts fn into a Handler that decodes the arguments into T and
// validates T's `validate` tags. Decoding or validation failures wrap
// ErrArgumentParse.
func Typed[T any](fn func(ctx context.Context, args T) (string, error)) Handler {
	return HandlerFunc(func(ctx context.Context, raw json.RawMessage) (string, error) {
		args, err := DecodeArgs[T](raw)
		if err != nil {
			return "", err
		}
		return fn(ctx, args)
	})
}

func DecodeArgs[T any](raw json.RawMessage) (T, error) {
	var args T
	if err := json.Unmarshal(raw, &args); err != nil {
		return args, fmt.Errorf("%w: %w", ErrArgumentParse, err)
	}
	if result := validator.Check(args); !result.Valid {
		return args, fmt.Errorf("%w: %s", ErrArgumentParse, result.Error())
	}
	return args, nil
}

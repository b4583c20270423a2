package tools

import "errors"

// ErrUnknownTool means the model asked for a function the catalog does not
// declare; the model and the program have diverged.
var ErrUnknownTool = errors.New("service requested tool-call has no matching function")

// ErrArgumentParse covers malformed argument JSON and missing required fields.
var ErrArgumentParse = errors.New("invalid tool-call arguments")

var (
	ErrDuplicateToolName = errors.New("tool already registered")
	ErrInvalidTool       = errors.New("invalid tool registration")
)

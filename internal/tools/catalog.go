// Package tools declares the functions the model may call and dispatches
// the model's tool-call requests to their local handlers.
package tools

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/PauloHFS/otel-chat-tools/internal/llm"
)

// Definition is the immutable description of a tool sent with every
// completion request.
type Definition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Tool renders d in the chat-completions wire shape.
func (d Definition) Tool() llm.Tool {
	return llm.Tool{
		Type: "function",
		Function: llm.FunctionDefinition{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		},
	}
}

type entry struct {
	def     Definition
	handler Handler
}

// Catalog maps tool names to definitions and handlers. Names are matched
// case-insensitively; definitions keep registration order.
type Catalog struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]entry
}

func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]entry)}
}

func key(name string) string {
	return strings.ToLower(name)
}

func (c *Catalog) Register(name, description string, params Schema, h Handler) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidTool)
	}
	if h == nil {
		return fmt.Errorf("%w: %s has no handler", ErrInvalidTool, name)
	}

	raw, err := params.JSON()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(name)
	if _, exists := c.entries[k]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateToolName, name)
	}

	c.entries[k] = entry{
		def:     Definition{Name: name, Description: description, Parameters: raw},
		handler: h,
	}
	c.order = append(c.order, k)
	return nil
}

// MustRegister is Register for static catalogs; it panics on error.
func (c *Catalog) MustRegister(name, description string, params Schema, h Handler) {
	if err := c.Register(name, description, params, h); err != nil {
		panic(err)
	}
}

func (c *Catalog) Definitions() []Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	defs := make([]Definition, len(c.order))
	for i, k := range c.order {
		defs[i] = c.entries[k].def
	}
	return defs
}

// Tools returns Definitions in the chat-completions wire shape.
func (c *Catalog) Tools() []llm.Tool {
	defs := c.Definitions()
	out := make([]llm.Tool, len(defs))
	for i, d := range defs {
		out[i] = d.Tool()
	}
	return out
}

func (c *Catalog) HandlerFor(name string) (Handler, bool) {
	e, ok := c.resolve(name)
	if !ok {
		return nil, false
	}
	return e.handler, true
}

func (c *Catalog) resolve(name string) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key(name)]
	return e, ok
}

// Names returns the registered names in registration order.
func (c *Catalog) Names() []string {
	defs := c.Definitions()
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return names
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

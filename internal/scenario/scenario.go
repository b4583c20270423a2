// Package scenario loads the seed conversations the CLI can run. The built-in
// scenarios are embedded; others can be read from YAML files.
package scenario

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/PauloHFS/otel-chat-tools/internal/llm"
	"github.com/PauloHFS/otel-chat-tools/internal/validator"
)

//go:embed scenarios/*.yaml
var builtin embed.FS

var (
	ErrNotFound = errors.New("scenario not found")
	ErrInvalid  = errors.New("invalid scenario")
)

type Message struct {
	Role    string `yaml:"role" json:"role" validate:"required,oneof=system user assistant"`
	Content string `yaml:"content" json:"content" validate:"required"`
}

type Scenario struct {
	Name        string    `yaml:"name" json:"name" validate:"required"`
	Description string    `yaml:"description" json:"description"`
	SpanName    string    `yaml:"span_name" json:"span_name"`
	Tools       []string  `yaml:"tools" json:"tools" validate:"required,min=1"`
	Messages    []Message `yaml:"messages" json:"messages" validate:"required,min=1,dive"`
}

// Seed converts the scenario messages to chat messages.
func (s *Scenario) Seed() []llm.Message {
	seed := make([]llm.Message, len(s.Messages))
	for i, m := range s.Messages {
		seed[i] = llm.Message{Role: llm.Role(m.Role), Content: m.Content}
	}
	return seed
}

// Load returns a built-in scenario by name.
func Load(name string) (*Scenario, error) {
	data, err := builtin.ReadFile(path.Join("scenarios", strings.ToLower(name)+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return parse(data)
}

func LoadFile(filename string) (*Scenario, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	return parse(data)
}

// Names lists the built-in scenarios.
func Names() []string {
	entries, err := builtin.ReadDir("scenarios")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

func parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if result := validator.Check(s); !result.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, result.Error())
	}
	return &s, nil
}

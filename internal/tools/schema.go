package tools

import (
	"encoding/json"
	"fmt"
)

// Schema is the JSON-schema subset used to describe tool parameters: an
// object with typed, described properties and a required list.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

type Property struct {
	Name        string `json:"-"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"-"`
}

// Object builds an object schema. Properties are required unless marked
// Optional; the required list keeps declaration order.
func Object(props ...Property) Schema {
	s := Schema{
		Type:       "object",
		Properties: make(map[string]Property, len(props)),
	}
	for _, p := range props {
		s.Properties[p.Name] = p
		if !p.Optional {
			s.Required = append(s.Required, p.Name)
		}
	}
	return s
}

// String declares a required string property.
func String(name, description string) Property {
	return Property{Name: name, Type: "string", Description: description}
}

func (p Property) AsOptional() Property {
	p.Optional = true
	return p
}

func (s Schema) JSON() (json.RawMessage, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

// ParseSchema decodes a parameter schema previously produced by JSON.
func ParseSchema(raw json.RawMessage) (Schema, error) {
	var s Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return Schema{}, fmt.Errorf("failed to parse schema: %w", err)
	}

	required := make(map[string]bool, len(s.Required))
	for _, name := range s.Required {
		required[name] = true
	}
	for name, p := range s.Properties {
		p.Name = name
		p.Optional = !required[name]
		s.Properties[name] = p
	}
	return s, nil
}

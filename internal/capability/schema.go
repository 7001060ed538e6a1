package capability

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ParameterSchema describes a capability's arguments in the JSON-schema
// subset the model-facing declaration format understands: typed named
// properties with a required subset.
type ParameterSchema struct {
	Type        string                      `json:"type"`
	Description string                      `json:"description,omitempty"`
	Properties  map[string]*ParameterSchema `json:"properties,omitempty"`
	Required    []string                    `json:"required,omitempty"`
	Items       *ParameterSchema            `json:"items,omitempty"`
	Enum        []string                    `json:"enum,omitempty"`
}

// Object builds the common top-level object schema.
func Object(props map[string]*ParameterSchema, required ...string) *ParameterSchema {
	return &ParameterSchema{Type: "object", Properties: props, Required: required}
}

func String(desc string) *ParameterSchema {
	return &ParameterSchema{Type: "string", Description: desc}
}

func Integer(desc string) *ParameterSchema {
	return &ParameterSchema{Type: "integer", Description: desc}
}

func Number(desc string) *ParameterSchema {
	return &ParameterSchema{Type: "number", Description: desc}
}

func Boolean(desc string) *ParameterSchema {
	return &ParameterSchema{Type: "boolean", Description: desc}
}

func Array(desc string, items *ParameterSchema) *ParameterSchema {
	return &ParameterSchema{Type: "array", Description: desc, Items: items}
}

// compile builds a draft 2020-12 validator for the schema. Extra properties
// stay legal unless the schema says otherwise, so identity injection and
// model-added arguments do not trip validation.
func (s *ParameterSchema) compile(name string) (*jsonschema.Schema, error) {
	if s == nil {
		return nil, nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://educore.local/capability/%s.schema.json", name)
	if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return c.Compile(url)
}

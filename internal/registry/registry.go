// Package registry holds the tool catalog: definitions, argument schemas
// and the binding from a named request to an executable operation.
package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"github.com/ufpa-tools/sigaa-mcp/internal/dispatch"
)

// Parameter defines one tool argument. Enum restricts a string argument
// to a closed set, enforced by schema validation before any portal work.
type Parameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
	Enum        []string    `json:"enum,omitempty"`
}

// Handler executes a tool with validated arguments
type Handler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// ToolDefinition describes one tool. Sessionless tools run without an
// authenticated portal session.
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Sessionless bool        `json:"-"`
	Handler     Handler     `json:"-"`
}

// Registry manages tool definitions and their argument schemas
type Registry struct {
	tools   map[string]*ToolDefinition
	schemas map[string]*gojsonschema.Schema
	order   []string
	mu      sync.RWMutex
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		tools:   make(map[string]*ToolDefinition),
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// Register adds a tool definition, rejecting invalid or duplicate ones
func (r *Registry) Register(def ToolDefinition) error {
	if err := validateDefinition(def); err != nil {
		return err
	}

	schema, err := generateSchema(def)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool %s already registered", def.Name)
	}
	r.tools[def.Name] = &def
	r.schemas[def.Name] = schema
	r.order = append(r.order, def.Name)

	log.Debug().Str("tool", def.Name).Msg("Tool registered")
	return nil
}

// List returns tool definitions in registration order
func (r *Registry) List() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.tools[name])
	}
	return out
}

// Resolve validates the request against the tool's schema and binds it to
// an executable operation. It implements dispatch.Resolver.
func (r *Registry) Resolve(name string, args map[string]interface{}) (*dispatch.Operation, error) {
	r.mu.RLock()
	def, ok := r.tools[name]
	schema := r.schemas[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &dispatch.InvalidRequestError{Reason: fmt.Sprintf("unknown tool: %s", name)}
	}

	if args == nil {
		args = map[string]interface{}{}
	}
	applyDefaults(def, args)

	if err := validateArgs(schema, args); err != nil {
		return nil, &dispatch.InvalidRequestError{
			Reason: fmt.Sprintf("invalid arguments for %s: %v", name, err),
		}
	}

	return &dispatch.Operation{
		Sessionless: def.Sessionless,
		Run: func(ctx context.Context) (interface{}, error) {
			return def.Handler(ctx, args)
		},
	}, nil
}

func validateDefinition(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Description == "" {
		return fmt.Errorf("tool description cannot be empty for %s", def.Name)
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil for %s", def.Name)
	}

	validTypes := map[string]bool{
		"string": true, "number": true, "boolean": true,
		"object": true, "array": true, "integer": true,
	}
	for _, param := range def.Parameters {
		if param.Name == "" {
			return fmt.Errorf("parameter name cannot be empty in %s", def.Name)
		}
		if !validTypes[param.Type] {
			return fmt.Errorf("invalid parameter type %s for %s.%s", param.Type, def.Name, param.Name)
		}
	}
	return nil
}

func generateSchema(def ToolDefinition) (*gojsonschema.Schema, error) {
	properties := make(map[string]interface{})
	required := []string{}

	for _, param := range def.Parameters {
		paramSchema := map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Default != nil {
			paramSchema["default"] = param.Default
		}
		if len(param.Enum) > 0 {
			paramSchema["enum"] = param.Enum
		}
		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	schemaMap := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		schemaMap["required"] = required
	}

	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
}

func validateArgs(schema *gojsonschema.Schema, args map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}

func applyDefaults(def *ToolDefinition, args map[string]interface{}) {
	for _, param := range def.Parameters {
		if param.Default == nil {
			continue
		}
		if _, set := args[param.Name]; !set {
			args[param.Name] = param.Default
		}
	}
}

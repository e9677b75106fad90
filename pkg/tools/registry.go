package tools

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// Registry maps tool names to implementations. Tools are registered once at
// startup; lookups are concurrent.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	schemas map[string]*gojsonschema.Schema
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// Register validates and adds a tool
func (r *Registry) Register(t Tool) error {
	if t.Name() == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if t.Description() == "" {
		return fmt.Errorf("tool %s: description cannot be empty", t.Name())
	}
	for _, param := range t.Parameters() {
		if param.Name == "" {
			return fmt.Errorf("tool %s: parameter name cannot be empty", t.Name())
		}
		switch param.Type {
		case "string", "number", "boolean", "object", "array", "integer":
		default:
			return fmt.Errorf("tool %s: invalid parameter type %s for %s", t.Name(), param.Type, param.Name)
		}
	}

	schema, err := generateSchema(t)
	if err != nil {
		return fmt.Errorf("tool %s: failed to generate schema: %w", t.Name(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool already registered: %s", t.Name())
	}

	r.tools[t.Name()] = t
	r.schemas[t.Name()] = schema

	log.Info().Str("tool", t.Name()).Msg("Tool registered")
	return nil
}

// Resolve returns the tool and its argument schema for a name
func (r *Registry) Resolve(name string) (Tool, *gojsonschema.Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	return t, r.schemas[name], ok
}

// Names returns all registered tool names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Definitions returns name/description/parameters for every registered tool,
// in the shape model adapters advertise to the backend.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, Definition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// Definition is the advertised shape of a tool
type Definition struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Parameters  []Param `json:"parameters"`
}

// InputSchema renders the definition as a JSON-schema-shaped map
func (d Definition) InputSchema() map[string]interface{} {
	properties := make(map[string]interface{})
	required := []string{}

	for _, param := range d.Parameters {
		properties[param.Name] = map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Required {
			required = append(required, param.Name)
		}
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func generateSchema(t Tool) (*gojsonschema.Schema, error) {
	def := Definition{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()}
	schemaMap := def.InputSchema()
	schemaMap["additionalProperties"] = false

	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
}

func validateArgs(schema *gojsonschema.Schema, args map[string]interface{}) error {
	if schema == nil {
		return nil
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err
	}
	if !result.Valid() {
		msgs := []string{}
		for _, verr := range result.Errors() {
			msgs = append(msgs, verr.String())
		}
		return fmt.Errorf("validation errors: %v", msgs)
	}
	return nil
}

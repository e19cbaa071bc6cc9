package schema

import (
	"encoding/json"
	"fmt"
)

// Tool names recognized by the dispatcher. The set is closed: new tools
// are added here and in the dispatcher's switch, never at runtime.
const (
	ToolCreateReservation = "create_reservation"
	ToolCheckAvailability = "check_availability"
	ToolCancelReservation = "cancel_reservation"
)

// FieldType is the declared JSON type of a payload field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeNumber  FieldType = "number"
)

// Field describes a single payload field.
type Field struct {
	Type        FieldType `json:"type"`
	Description string    `json:"description,omitempty"`
}

// InputSchema enumerates a tool's payload fields and which are required.
// It serializes to the JSON-schema object shape advertised to callers.
type InputSchema struct {
	Properties map[string]Field
	Required   []string
}

// MarshalJSON renders the schema in JSON-schema form:
// {"type":"object","properties":{...},"required":[...]}.
func (s InputSchema) MarshalJSON() ([]byte, error) {
	type wire struct {
		Type       string           `json:"type"`
		Properties map[string]Field `json:"properties"`
		Required   []string         `json:"required"`
	}
	required := s.Required
	if required == nil {
		required = []string{}
	}
	return json.Marshal(wire{Type: "object", Properties: s.Properties, Required: required})
}

// IsRequired reports whether the named field is required.
func (s InputSchema) IsRequired(field string) bool {
	for _, r := range s.Required {
		if r == field {
			return true
		}
	}
	return false
}

// ToolDefinition declares a tool: its unique name, a human-readable
// description, and the input schema callers must satisfy. Definitions
// are immutable after registry construction.
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Input       InputSchema `json:"input_schema"`
}

// Registry is the static catalogue of tool definitions. It is the single
// source of truth for both the discovery response and dispatcher
// validation, so the advertised and enforced schemas can never diverge.
// Read-only after construction; safe for concurrent use.
type Registry struct {
	order  []string
	byName map[string]ToolDefinition
}

// NewRegistry builds the registry with the built-in tool definitions.
// A malformed definition is a startup failure: the process cannot serve
// any tool without a coherent registry.
func NewRegistry() (*Registry, error) {
	r := &Registry{byName: make(map[string]ToolDefinition)}
	for _, def := range builtinTools() {
		if err := r.add(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustNewRegistry is NewRegistry for wiring paths where a definition
// error can only come from a programming mistake.
func MustNewRegistry() *Registry {
	r, err := NewRegistry()
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) add(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool definition with empty name")
	}
	if _, dup := r.byName[def.Name]; dup {
		return fmt.Errorf("duplicate tool definition %q", def.Name)
	}
	for _, req := range def.Input.Required {
		if _, ok := def.Input.Properties[req]; !ok {
			return fmt.Errorf("tool %q requires unknown field %q", def.Name, req)
		}
	}
	for name, f := range def.Input.Properties {
		switch f.Type {
		case TypeString, TypeInteger, TypeNumber:
		default:
			return fmt.Errorf("tool %q field %q has unsupported type %q", def.Name, name, f.Type)
		}
	}
	r.order = append(r.order, def.Name)
	r.byName[def.Name] = def
	return nil
}

// List returns all tool definitions in stable registration order.
func (r *Registry) List() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.byName[name])
	}
	return defs
}

// Get returns the definition for the named tool.
func (r *Registry) Get(name string) (ToolDefinition, bool) {
	def, ok := r.byName[name]
	return def, ok
}

func builtinTools() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        ToolCreateReservation,
			Description: "Create a reservation in the calendar",
			Input: InputSchema{
				Properties: map[string]Field{
					"customer_name": {Type: TypeString, Description: "Name the reservation is held under"},
					"party_size":    {Type: TypeInteger, Description: "Number of guests (at least 1)"},
					"date":          {Type: TypeString, Description: "Reservation date (YYYY-MM-DD)"},
					"time":          {Type: TypeString, Description: "Local time of day (HH:MM)"},
					"notes":         {Type: TypeString, Description: "Optional notes for the booking"},
				},
				Required: []string{"customer_name", "party_size", "date", "time"},
			},
		},
		{
			Name:        ToolCheckAvailability,
			Description: "Check whether a reservation slot is free without booking it",
			Input: InputSchema{
				Properties: map[string]Field{
					"date": {Type: TypeString, Description: "Reservation date (YYYY-MM-DD)"},
					"time": {Type: TypeString, Description: "Local time of day (HH:MM)"},
				},
				Required: []string{"date", "time"},
			},
		},
		{
			Name:        ToolCancelReservation,
			Description: "Cancel a reservation by its calendar event id",
			Input: InputSchema{
				Properties: map[string]Field{
					"event_id": {Type: TypeString, Description: "Backend event id returned when the reservation was created"},
				},
				Required: []string{"event_id"},
			},
		},
	}
}

// Package formschema holds the declarative form definitions the admin
// screens are generated from: grouped fields with kinds, choices, and
// conditional visibility, validated client side before any submit.
package formschema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Kind is the input type of a form field.
type Kind string

const (
	KindText     Kind = "text"
	KindEmail    Kind = "email"
	KindRFC      Kind = "rfc"
	KindPassword Kind = "password"
	KindNumber   Kind = "number"
	KindDate     Kind = "date"
	KindSelect   Kind = "select"
	KindCheckbox Kind = "checkbox"
)

// Choice is one selectable option of a select field.
type Choice struct {
	Value any    `json:"value"`
	Label string `json:"label"`
}

// Condition gates a field's visibility on another field's current value.
type Condition struct {
	Field  string `json:"field"`
	Equals any    `json:"equals"`
}

type Field struct {
	Key       string     `json:"key"`
	Label     string     `json:"label"`
	Kind      Kind       `json:"kind"`
	Required  bool       `json:"required,omitempty"`
	MinLength int        `json:"min_length,omitempty"`
	Options   []Choice   `json:"options,omitempty"`
	VisibleIf *Condition `json:"visible_if,omitempty"`
}

type Group struct {
	Title  string  `json:"title"`
	Fields []Field `json:"fields"`
}

type Form struct {
	Name   string  `json:"name"`
	Groups []Group `json:"groups"`
}

// documentSchema is the JSON Schema every form definition document must
// satisfy before it is trusted.
const documentSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["name", "groups"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"groups": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["fields"],
				"properties": {
					"title": {"type": "string"},
					"fields": {
						"type": "array",
						"minItems": 1,
						"items": {
							"type": "object",
							"required": ["key", "kind"],
							"properties": {
								"key": {"type": "string", "minLength": 1},
								"label": {"type": "string"},
								"kind": {
									"type": "string",
									"enum": ["text", "email", "rfc", "password", "number", "date", "select", "checkbox"]
								},
								"required": {"type": "boolean"},
								"min_length": {"type": "integer", "minimum": 0},
								"options": {
									"type": "array",
									"items": {
										"type": "object",
										"required": ["value"],
										"properties": {
											"label": {"type": "string"}
										}
									}
								},
								"visible_if": {
									"type": "object",
									"required": ["field"],
									"properties": {
										"field": {"type": "string", "minLength": 1}
									}
								}
							}
						}
					}
				}
			}
		}
	}
}`

var compiledSchema = gojsonschema.NewStringLoader(documentSchema)

// Parse validates a definition document against the schema and decodes
// it. Duplicate field keys across groups are rejected.
func Parse(raw []byte) (*Form, error) {
	result, err := gojsonschema.Validate(compiledSchema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("validating form definition: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return nil, fmt.Errorf("invalid form definition: %s", strings.Join(details, "; "))
	}

	var form Form
	if err := json.Unmarshal(raw, &form); err != nil {
		return nil, fmt.Errorf("decoding form definition: %w", err)
	}

	seen := make(map[string]struct{})
	for _, group := range form.Groups {
		for _, field := range group.Fields {
			if _, dup := seen[field.Key]; dup {
				return nil, fmt.Errorf("invalid form definition: duplicate field key %q", field.Key)
			}
			seen[field.Key] = struct{}{}
		}
	}

	return &form, nil
}

// Fields flattens every group into one slice in declaration order.
func (f *Form) Fields() []Field {
	var fields []Field
	for _, group := range f.Groups {
		fields = append(fields, group.Fields...)
	}

	return fields
}

package model

import (
	"encoding/json"
	"fmt"
)

// Operator is a condition operator understood by the portal's generic list
// endpoint. The containment operator "!" matches substrings; the sentinel
// operators pair with null values.
type Operator string

const (
	OpEq        Operator = "="
	OpEqStrict  Operator = "=="
	OpNe        Operator = "!="
	OpNeStrict  Operator = "!=="
	OpContains  Operator = "!"
	OpLt        Operator = "<"
	OpLte       Operator = "<="
	OpGt        Operator = ">"
	OpGte       Operator = ">="
	OpIsNull    Operator = "IS NULL"
	OpIsNotNull Operator = "IS NOT NULL"
)

// EmptyToken is the literal a user types to match empty fields. It is the
// one non-sentinel case where a condition value may be null.
const EmptyToken = "<VACIO>"

var validOperators = map[Operator]struct{}{
	OpEq: {}, OpEqStrict: {}, OpNe: {}, OpNeStrict: {}, OpContains: {},
	OpLt: {}, OpLte: {}, OpGt: {}, OpGte: {}, OpIsNull: {}, OpIsNotNull: {},
}

// Conditional is a single (key, operator, value) filter condition. On the
// wire it serializes as a three-element array.
type Conditional struct {
	Key      string
	Operator Operator
	Value    any
}

// Validate enforces the operator set and the null-value invariant.
func (c Conditional) Validate() error {
	if c.Key == "" {
		return fmt.Errorf("%w: conditional without key", ErrInvalidArgumentCombination)
	}

	if _, ok := validOperators[c.Operator]; !ok {
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidArgumentCombination, c.Operator)
	}

	if c.Value == nil && c.Operator != OpIsNull && c.Operator != OpIsNotNull {
		return fmt.Errorf("%w: null value requires IS NULL or IS NOT NULL", ErrInvalidArgumentCombination)
	}

	if s, ok := c.Value.(string); ok && s == EmptyToken {
		return nil
	}

	return nil
}

// MarshalJSON writes the [key, operator, value] triple.
func (c Conditional) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{c.Key, string(c.Operator), c.Value})
}

// UnmarshalJSON reads the [key, operator, value] triple.
func (c *Conditional) UnmarshalJSON(data []byte) error {
	var triple []any
	if err := json.Unmarshal(data, &triple); err != nil {
		return fmt.Errorf("decoding conditional: %w", err)
	}

	if len(triple) != 3 {
		return fmt.Errorf("decoding conditional: expected 3 elements, got %d", len(triple))
	}

	key, ok := triple[0].(string)
	if !ok {
		return fmt.Errorf("decoding conditional: key is not a string")
	}

	op, ok := triple[1].(string)
	if !ok {
		return fmt.Errorf("decoding conditional: operator is not a string")
	}

	c.Key = key
	c.Operator = Operator(op)
	c.Value = triple[2]

	return nil
}

// Sort describes a server-side sort directive inside a paginator.
type Sort struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc"`
}

// Paginator carries the page window for list requests. Page is 1-based.
type Paginator struct {
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Sort    *Sort `json:"sort,omitempty"`
}

// Validate enforces the positive page window invariant.
func (p Paginator) Validate() error {
	if p.Page < 1 {
		return fmt.Errorf("%w: page must be >= 1", ErrInvalidArgumentCombination)
	}

	if p.PerPage < 1 {
		return fmt.Errorf("%w: per_page must be >= 1", ErrInvalidArgumentCombination)
	}

	return nil
}

// AdvancedFilter filters a list through a related resource. The wire key for
// the serialized list is "busqueda_avanzada".
type AdvancedFilter struct {
	Relation        string        `json:"relation"`
	Conditionals    []Conditional `json:"conditionals"`
	AndConditionals []Conditional `json:"andConditionals"`
}

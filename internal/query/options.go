// Package query builds and normalizes the loosely-typed parameter bags the
// portal's generic resource endpoints accept. Every category serializes to a
// JSON query parameter except extra data and the paginator, which spread as
// flat parameters.
package query

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/enlacemx/recordkit/internal/domain/model"
)

// Options is the one canonical parameter bag for list and find requests.
// Conditionals and Where are alternatives: an explicit condition list wins
// over the partial-record shorthand.
type Options struct {
	Conditionals   []model.Conditional
	Where          *model.Record
	Columns        []string
	Relations      []string
	Paginator      *model.Paginator
	AdvancedSearch []model.AdvancedFilter
	ExtraData      map[string]any
	Loader         *bool
}

// implicitColumns are always accepted in projections even when the resource
// does not declare them.
var implicitColumns = []string{"id", "created_at", "deleted_at", "created_by"}

func (o Options) WithConditional(key string, op model.Operator, value any) Options {
	o.Conditionals = append(o.Conditionals, model.Conditional{Key: key, Operator: op, Value: value})

	return o
}

func (o Options) WithWhere(where *model.Record) Options {
	o.Where = where

	return o
}

func (o Options) WithColumns(columns ...string) Options {
	o.Columns = columns

	return o
}

func (o Options) WithRelations(relations ...string) Options {
	o.Relations = relations

	return o
}

func (o Options) WithPaginator(page, perPage int) Options {
	o.Paginator = &model.Paginator{Page: page, PerPage: perPage}

	return o
}

func (o Options) WithSort(column string, desc bool) Options {
	if o.Paginator == nil {
		o.Paginator = &model.Paginator{Page: 1, PerPage: 999}
	}
	o.Paginator.Sort = &model.Sort{Column: column, Desc: desc}

	return o
}

func (o Options) WithAdvancedSearch(filters ...model.AdvancedFilter) Options {
	o.AdvancedSearch = filters

	return o
}

func (o Options) WithExtra(key string, value any) Options {
	if o.ExtraData == nil {
		o.ExtraData = make(map[string]any)
	}
	o.ExtraData[key] = value

	return o
}

func (o Options) WithLoader(loader bool) Options {
	o.Loader = &loader

	return o
}

// LoaderOr resolves the loading-indicator flag against a default.
func (o Options) LoaderOr(def bool) bool {
	if o.Loader != nil {
		return *o.Loader
	}

	return def
}

// conditions resolves the effective condition list: the explicit list when
// present, otherwise the partial-record shorthand where each non-null field
// becomes an equality condition and each null field an IS NULL condition.
func (o Options) conditions() []model.Conditional {
	if len(o.Conditionals) > 0 {
		return o.Conditionals
	}

	if o.Where == nil {
		return nil
	}

	conds := make([]model.Conditional, 0, o.Where.Len())
	for _, key := range o.Where.Keys() {
		value, _ := o.Where.Get(key)
		if value == nil {
			conds = append(conds, model.Conditional{Key: key, Operator: model.OpIsNull, Value: nil})

			continue
		}
		conds = append(conds, model.Conditional{Key: key, Operator: model.OpEq, Value: value})
	}

	return conds
}

// Normalize serializes the options into the canonical query-parameter form.
// When no conditions were supplied at all, soft-deleted rows are filtered
// out by default; callers must ask for deleted rows explicitly.
func (o Options) Normalize(declared []string) (url.Values, error) {
	conds := o.conditions()
	if len(conds) == 0 {
		conds = []model.Conditional{{Key: "deleted_at", Operator: model.OpIsNull, Value: nil}}
	}

	for _, c := range conds {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}

	params := url.Values{}

	condJSON, err := json.Marshal(conds)
	if err != nil {
		return nil, fmt.Errorf("marshalling conditionals: %w", err)
	}
	params.Set("conditionals", string(condJSON))

	if len(o.Columns) > 0 {
		if err := validateColumns(o.Columns, declared); err != nil {
			return nil, err
		}

		colJSON, err := json.Marshal(o.Columns)
		if err != nil {
			return nil, fmt.Errorf("marshalling columns: %w", err)
		}
		params.Set("columns", string(colJSON))
	}

	if len(o.Relations) > 0 {
		relJSON, err := json.Marshal(o.Relations)
		if err != nil {
			return nil, fmt.Errorf("marshalling relations: %w", err)
		}
		params.Set("relations", string(relJSON))
	}

	if len(o.AdvancedSearch) > 0 {
		advJSON, err := json.Marshal(o.AdvancedSearch)
		if err != nil {
			return nil, fmt.Errorf("marshalling advanced search: %w", err)
		}
		params.Set("busqueda_avanzada", string(advJSON))
	}

	if o.Paginator != nil {
		if err := o.Paginator.Validate(); err != nil {
			return nil, err
		}

		pagJSON, err := json.Marshal(o.Paginator)
		if err != nil {
			return nil, fmt.Errorf("marshalling paginator: %w", err)
		}
		params.Set("paginator", string(pagJSON))

		// the paginator also spreads flat for backends that read it
		// straight from the query string
		params.Set("page", strconv.Itoa(o.Paginator.Page))
		params.Set("per_page", strconv.Itoa(o.Paginator.PerPage))
		if o.Paginator.Sort != nil {
			sortJSON, err := json.Marshal(o.Paginator.Sort)
			if err != nil {
				return nil, fmt.Errorf("marshalling sort: %w", err)
			}
			params.Set("sort", string(sortJSON))
		}
	}

	for key, value := range o.ExtraData {
		flat, err := flatten(value)
		if err != nil {
			return nil, fmt.Errorf("marshalling extra field %q: %w", key, err)
		}
		params.Set(key, flat)
	}

	return params, nil
}

func validateColumns(columns, declared []string) error {
	allowed := make(map[string]struct{}, len(declared)+len(implicitColumns))
	for _, c := range declared {
		allowed[c] = struct{}{}
	}
	for _, c := range implicitColumns {
		allowed[c] = struct{}{}
	}

	for _, c := range columns {
		if _, ok := allowed[c]; !ok {
			return fmt.Errorf("%w: column %q is not declared for this resource", model.ErrInvalidArgumentCombination, c)
		}
	}

	return nil
}

func flatten(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case nil:
		return "", nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}

		return string(b), nil
	}
}

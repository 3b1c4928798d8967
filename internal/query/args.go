package query

import (
	"fmt"

	"github.com/enlacemx/recordkit/internal/domain/model"
)

// OptionsFromArgs is the translation shim for legacy call sites that pass a
// heterogeneous argument list instead of an Options struct. Arguments are
// classified by structural shape in a fixed precedence order:
//
//  1. an Options bag seeds every category;
//  2. a paginator-shaped value;
//  3. a condition list;
//  4. a partial record (equality shorthand);
//  5. a string slice fully inside the declared column set: projection;
//  6. any other string slice: relation list;
//  7. an advanced-filter list;
//  8. any remaining map: extra data.
//
// Positional arguments override the category the bag seeded. Anything that
// fits no category fails with ErrInvalidArgumentCombination instead of being
// silently dropped.
func OptionsFromArgs(declared []string, args ...any) (Options, error) {
	var opts Options

	for _, arg := range args {
		switch bag := arg.(type) {
		case Options:
			opts = bag
		case *Options:
			if bag != nil {
				opts = *bag
			}
		}
	}

	for i, arg := range args {
		switch v := arg.(type) {
		case nil, Options, *Options:
			continue

		case model.Paginator:
			p := v
			opts.Paginator = &p

		case *model.Paginator:
			opts.Paginator = v

		case []model.Conditional:
			opts.Conditionals = v

		case model.Conditional:
			opts.Conditionals = []model.Conditional{v}

		case *model.Record:
			opts.Where = v

		case []model.AdvancedFilter:
			opts.AdvancedSearch = v

		case bool:
			loader := v
			opts.Loader = &loader

		case []string:
			if isDeclaredColumns(v, declared) {
				opts.Columns = v

				continue
			}
			opts.Relations = v

		case map[string]any:
			if p, ok := paginatorFromMap(v); ok {
				opts.Paginator = p

				continue
			}
			if len(v) > 0 && allKeysDeclared(v, declared) {
				opts.Where = model.RecordFromMap(v)

				continue
			}
			opts.ExtraData = v

		default:
			return opts, fmt.Errorf("%w: argument %d (%T) fits no option category", model.ErrInvalidArgumentCombination, i, arg)
		}
	}

	return opts, nil
}

// isDeclaredColumns reports whether every element belongs to the resource's
// declared column set (plus the implicit audit columns). The wildcard "*"
// never qualifies; an empty slice never qualifies.
func isDeclaredColumns(values, declared []string) bool {
	if len(values) == 0 || len(declared) == 0 {
		return false
	}

	allowed := make(map[string]struct{}, len(declared)+len(implicitColumns))
	for _, c := range declared {
		allowed[c] = struct{}{}
	}
	for _, c := range implicitColumns {
		allowed[c] = struct{}{}
	}

	for _, v := range values {
		if v == "*" {
			return false
		}
		if _, ok := allowed[v]; !ok {
			return false
		}
	}

	return true
}

func allKeysDeclared(m map[string]any, declared []string) bool {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	return isDeclaredColumns(keys, declared)
}

func paginatorFromMap(m map[string]any) (*model.Paginator, bool) {
	page, okPage := intFromAny(m["page"])
	perPage, okPer := intFromAny(m["per_page"])
	if !okPage || !okPer {
		return nil, false
	}

	return &model.Paginator{Page: page, PerPage: perPage}, true
}

func intFromAny(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

package testserver

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// condition is the wire triple [key, operator, value].
type condition struct {
	key      string
	operator string
	value    any
}

func parseConditionals(raw string) ([]condition, error) {
	if raw == "" {
		return nil, nil
	}

	var triples [][]any
	if err := json.Unmarshal([]byte(raw), &triples); err != nil {
		return nil, fmtError("conditionals")
	}

	conditions := make([]condition, 0, len(triples))
	for _, triple := range triples {
		if len(triple) != 3 {
			return nil, fmtError("conditionals")
		}

		key, keyOK := triple[0].(string)
		op, opOK := triple[1].(string)
		if !keyOK || !opOK {
			return nil, fmtError("conditionals")
		}

		conditions = append(conditions, condition{key: key, operator: op, value: triple[2]})
	}

	return conditions, nil
}

func parseStringList(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}

	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmtError("columns")
	}

	return list, nil
}

func parsePagination(r *http.Request) (page, perPage int) {
	page, perPage = 1, 999

	if value, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && value >= 1 {
		page = value
	}

	if value, err := strconv.Atoi(r.URL.Query().Get("per_page")); err == nil && value >= 1 {
		perPage = value
	}

	return page, perPage
}

func matchesAll(row map[string]any, conditions []condition) bool {
	for _, cond := range conditions {
		if !matches(row, cond) {
			return false
		}
	}

	return true
}

func matches(row map[string]any, cond condition) bool {
	value, present := row[cond.key]

	switch cond.operator {
	case "IS NULL":
		return !present || value == nil
	case "IS NOT NULL":
		return present && value != nil
	}

	if !present {
		return false
	}

	switch cond.operator {
	case "=", "==":
		return loose(value) == loose(cond.value)
	case "!=", "!==":
		return loose(value) != loose(cond.value)
	case "<", "<=", ">", ">=":
		left, leftOK := number(value)
		right, rightOK := number(cond.value)
		if !leftOK || !rightOK {
			return false
		}

		switch cond.operator {
		case "<":
			return left < right
		case "<=":
			return left <= right
		case ">":
			return left > right
		default:
			return left >= right
		}
	default:
		return strings.Contains(
			strings.ToLower(loose(value)),
			strings.ToLower(loose(cond.value)),
		)
	}
}

func loose(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		raw, _ := json.Marshal(v)

		return string(raw)
	}
}

func number(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case string:
		parsed, err := strconv.ParseFloat(v, 64)

		return parsed, err == nil
	default:
		return 0, false
	}
}

func project(row map[string]any, columns []string) map[string]any {
	if len(columns) == 0 {
		return row
	}

	projected := make(map[string]any, len(columns))
	for _, column := range columns {
		if value, ok := row[column]; ok {
			projected[column] = value
		}
	}

	return projected
}

// sortRows orders in place by the flat sort parameter {"column","desc"}.
func sortRows(rows []map[string]any, rawSort string) {
	if rawSort == "" {
		return
	}

	var directive struct {
		Column string `json:"column"`
		Desc   bool   `json:"desc"`
	}

	if err := json.Unmarshal([]byte(rawSort), &directive); err != nil || directive.Column == "" {
		return
	}

	sort.SliceStable(rows, func(i, j int) bool {
		left, leftOK := number(rows[i][directive.Column])
		right, rightOK := number(rows[j][directive.Column])

		var less bool
		if leftOK && rightOK {
			less = left < right
		} else {
			less = loose(rows[i][directive.Column]) < loose(rows[j][directive.Column])
		}

		if directive.Desc {
			return !less
		}

		return less
	})
}

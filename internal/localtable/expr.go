package localtable

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/enlacemx/recordkit/internal/domain/model"
)

// comparison operators a filter expression may start with, longest first so
// "!==" never half-matches as "!".
var exprOperators = []string{"===", "!==", "==", "!=", "<=", ">=", "!", "<", ">"}

var dmyPattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)

// matchRecord evaluates one column's filter expression against a record.
// Malformed input never fails: unparseable dates and numbers degrade to
// string comparison, unknown syntax to substring search.
func matchRecord(rec *model.Record, key, expr string) bool {
	value, _ := rec.Get(key)

	return matchValue(value, strings.TrimSpace(expr))
}

// matchValue applies the OR-of-ANDs combinator grammar: the expression splits
// on "|" first, then each group on "&".
func matchValue(fieldValue any, expr string) bool {
	if !strings.ContainsAny(expr, "|&") {
		return evalCondition(fieldValue, expr)
	}

	for _, orGroup := range strings.Split(expr, "|") {
		matched := true
		for _, cond := range strings.Split(orGroup, "&") {
			if !evalCondition(fieldValue, strings.TrimSpace(cond)) {
				matched = false

				break
			}
		}
		if matched {
			return true
		}
	}

	return false
}

// evalCondition evaluates a single atomic condition: an optional leading
// operator token followed by the comparison operand.
func evalCondition(fieldValue any, cond string) bool {
	cond = strings.TrimSpace(cond)

	// The empty token starts with "<", so it must be recognized before the
	// operator split eats that character.
	if strings.EqualFold(cond, model.EmptyToken) {
		return valueString(fieldValue) == ""
	}

	op, operand := splitOperator(cond)
	operand = strings.TrimSpace(operand)

	if strings.EqualFold(operand, model.EmptyToken) {
		isEmpty := valueString(fieldValue) == ""
		switch op {
		case "!", "!=", "!==":
			return !isEmpty
		default:
			return isEmpty
		}
	}

	if op != "" {
		return compare(fieldValue, operand, op)
	}

	// no operator: case-insensitive containment
	return strings.Contains(strings.ToLower(valueString(fieldValue)), strings.ToLower(operand))
}

func splitOperator(expr string) (op, rest string) {
	for _, candidate := range exprOperators {
		if strings.HasPrefix(expr, candidate) {
			return candidate, expr[len(candidate):]
		}
	}

	return "", expr
}

// compare picks the comparison domain: dates when both sides parse as
// dd/mm/yyyy, numbers when both sides parse numerically, uppercased strings
// otherwise.
func compare(fieldValue any, operand, op string) bool {
	fieldStr := strings.TrimSpace(valueString(fieldValue))

	if fieldDate, ok := parseDMY(fieldStr); ok {
		if operandDate, ok := parseDMY(operand); ok {
			return compareNumbers(float64(fieldDate.Unix()), float64(operandDate.Unix()), op)
		}
	}

	fieldNum, fieldOK := parseNumber(fieldStr)
	operandNum, operandOK := parseNumber(operand)
	if fieldOK && operandOK {
		return compareNumbers(fieldNum, operandNum, op)
	}

	return compareStrings(strings.ToUpper(fieldStr), strings.ToUpper(operand), op)
}

func compareNumbers(a, b float64, op string) bool {
	switch op {
	case "=", "==", "===":
		return a == b
	case "!=", "!==":
		return a != b
	case "!":
		return strings.Contains(formatNumber(a), formatNumber(b))
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	default:
		return false
	}
}

func compareStrings(a, b, op string) bool {
	switch op {
	case "=", "==", "===":
		return a == b
	case "!=", "!==":
		return a != b
	case "!":
		return strings.Contains(a, b)
	case "<":
		return strings.Compare(a, b) < 0
	case "<=":
		return strings.Compare(a, b) <= 0
	case ">":
		return strings.Compare(a, b) > 0
	case ">=":
		return strings.Compare(a, b) >= 0
	default:
		return false
	}
}

// parseDMY parses dd/mm/yyyy, rejecting impossible dates like 31/02/2023 by
// checking the round trip.
func parseDMY(s string) (time.Time, bool) {
	m := dmyPattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Year() != year || date.Month() != time.Month(month) || date.Day() != day {
		return time.Time{}, false
	}

	return date, true
}

// parseNumber treats the empty string as zero, matching the loose coercion
// the filter inputs historically had.
func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, true
	}

	n, err := strconv.ParseFloat(s, 64)

	return n, err == nil
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// valueString renders a field value the way the table displays it. Nil and
// missing values render empty.
func valueString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return formatNumber(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}

		return string(b)
	}
}

package formschema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/enlacemx/recordkit/internal/domain/model"
)

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

	// Mexican taxpayer id: 3-4 letters, birth date, homoclave.
	rfcPattern = regexp.MustCompile(`^[A-ZÑ&]{3,4}\d{6}[A-Z0-9]{3}$`)
)

// Validate applies the client-side checks to a record before submission.
// Hidden fields are skipped entirely, matching how the rendered form
// behaves.
func (f *Form) Validate(record *model.Record) *model.ValidationErrors {
	errs := &model.ValidationErrors{}

	for _, field := range f.Fields() {
		if !f.visible(field, record) {
			continue
		}

		value, present := lookup(record, field.Key)
		text := stringValue(value)

		if field.Required && (!present || value == nil || text == "") {
			errs.Add(field.Key, fmt.Sprintf("%s is required", field.labelOrKey()))

			continue
		}

		if text == "" {
			continue
		}

		switch field.Kind {
		case KindEmail:
			if !emailPattern.MatchString(text) {
				errs.Add(field.Key, fmt.Sprintf("%s is not a valid email address", field.labelOrKey()))
			}

		case KindRFC:
			if !rfcPattern.MatchString(strings.ToUpper(text)) {
				errs.Add(field.Key, fmt.Sprintf("%s is not a valid RFC", field.labelOrKey()))
			}

		case KindNumber:
			if _, err := strconv.ParseFloat(text, 64); err != nil {
				errs.Add(field.Key, fmt.Sprintf("%s must be a number", field.labelOrKey()))
			}

		case KindSelect:
			if len(field.Options) > 0 && !field.allowsChoice(value) {
				errs.Add(field.Key, fmt.Sprintf("%s has an unknown option", field.labelOrKey()))
			}
		}

		if field.MinLength > 0 && len([]rune(text)) < field.MinLength {
			errs.Add(field.Key, fmt.Sprintf("%s must be at least %d characters", field.labelOrKey(), field.MinLength))
		}
	}

	return errs
}

func (f *Form) visible(field Field, record *model.Record) bool {
	if field.VisibleIf == nil {
		return true
	}

	value, _ := lookup(record, field.VisibleIf.Field)

	return looselyEqual(value, field.VisibleIf.Equals)
}

func (fld Field) labelOrKey() string {
	if fld.Label != "" {
		return fld.Label
	}

	return fld.Key
}

func (fld Field) allowsChoice(value any) bool {
	for _, choice := range fld.Options {
		if looselyEqual(value, choice.Value) {
			return true
		}
	}

	return false
}

func lookup(record *model.Record, key string) (any, bool) {
	if record == nil {
		return nil, false
	}

	return record.Get(key)
}

// looselyEqual compares the way form values compare: "2" equals 2, since
// JSON decoding and input widgets disagree on numeric types.
func looselyEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}

	return stringValue(a) == stringValue(b)
}

func stringValue(value any) string {
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
		return fmt.Sprint(v)
	}
}

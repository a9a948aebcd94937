package grid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sqlpane/sqlpane/internal/errs"
	"github.com/sqlpane/sqlpane/internal/schema"
)

const (
	dateFormat     = "2006-01-02"
	timeFormat     = "15:04:05"
	dateTimeFormat = "2006-01-02 15:04:05"
)

var (
	fieldNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	emailRe     = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// validFieldName reports whether a posted field name is a safe identifier.
// Field names become SQL identifiers, so anything outside the character
// class is discarded before validation runs.
func validFieldName(name string) bool {
	return fieldNameRe.MatchString(name)
}

// validateField coerces and validates one posted value against the
// column's semantic type. The returned value is the storable form.
// Empty and nil values are accepted only for nullable columns. String
// values pass through trimmed with no HTML transformation; escaping is
// a rendering-layer concern.
func validateField(col *schema.Column, value any) (any, error) {
	if value == nil {
		return nullValue(col)
	}
	s := strings.TrimSpace(fmt.Sprintf("%v", value))

	switch col.Field {
	case schema.FieldNumber:
		if s == "" {
			return nullValue(col)
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, nil
		}
		return nil, errs.Newf(errs.ErrKindValidation, "field %q must be numeric", col.Name)

	case schema.FieldBoolean:
		return coerceBool(value), nil

	case schema.FieldEmail:
		if s == "" {
			return nullValue(col)
		}
		if !emailRe.MatchString(s) {
			return nil, errs.Newf(errs.ErrKindValidation, "field %q must be a valid email address", col.Name)
		}
		return s, nil

	case schema.FieldDate:
		return parseExact(col.Name, s, dateFormat, col)

	case schema.FieldDateTime:
		return parseExact(col.Name, s, dateTimeFormat, col)

	case schema.FieldTime:
		return parseExact(col.Name, s, timeFormat, col)

	default:
		if s == "" {
			return nullValue(col)
		}
		return s, nil
	}
}

// parseExact requires the value to parse under the exact expected format
// and round-trip identically, rejecting partially valid inputs the parser
// would otherwise normalize.
func parseExact(name, s, layout string, col *schema.Column) (any, error) {
	if s == "" {
		return nullValue(col)
	}
	t, err := time.Parse(layout, s)
	if err != nil || t.Format(layout) != s {
		return nil, errs.Newf(errs.ErrKindValidation,
			"field %q must match format %s", name, layout)
	}
	return s, nil
}

func nullValue(col *schema.Column) (any, error) {
	if col.Nullable {
		return nil, nil
	}
	return nil, errs.Newf(errs.ErrKindValidation, "field %q cannot be empty", col.Name)
}

// coerceBool maps truthy and falsy inputs to 1/0, the storable form for
// checkbox-style columns on every supported engine.
func coerceBool(value any) int64 {
	switch v := value.(type) {
	case bool:
		if v {
			return 1
		}
		return 0
	case int:
		if v != 0 {
			return 1
		}
		return 0
	case int64:
		if v != 0 {
			return 1
		}
		return 0
	case float64:
		if v != 0 {
			return 1
		}
		return 0
	default:
		s := strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", value)))
		switch s {
		case "1", "true", "on", "yes", "y":
			return 1
		default:
			return 0
		}
	}
}

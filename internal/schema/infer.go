package schema

import (
	"regexp"
	"strings"
)

// enumRe captures the quoted choice list of a mysql enum('a','b') type.
var enumRe = regexp.MustCompile(`(?i)^enum\s*\((.+)\)$`)

// InferField derives the semantic field type from a raw column type
// string via pattern rules. The rules are checked in order: boolean
// widths first (bit(1)/tinyint(1) are conventionally booleans), then
// numerics, temporals, long text, enumerations, and a single-line text
// default for everything else.
func InferField(rawType string) FieldType {
	t := strings.ToLower(strings.TrimSpace(rawType))

	switch {
	case t == "bool" || t == "boolean" || t == "bit(1)" || t == "tinyint(1)":
		return FieldBoolean

	case strings.HasPrefix(t, "tinyint"),
		strings.HasPrefix(t, "smallint"),
		strings.HasPrefix(t, "mediumint"),
		strings.HasPrefix(t, "bigint"),
		strings.HasPrefix(t, "int"),
		strings.HasPrefix(t, "decimal"),
		strings.HasPrefix(t, "numeric"),
		strings.HasPrefix(t, "float"),
		strings.HasPrefix(t, "double"),
		strings.HasPrefix(t, "real"),
		strings.HasPrefix(t, "serial"):
		return FieldNumber

	case strings.HasPrefix(t, "datetime"), strings.HasPrefix(t, "timestamp"):
		return FieldDateTime

	case t == "date":
		return FieldDate

	case strings.HasPrefix(t, "time"):
		return FieldTime

	case t == "text" || t == "tinytext" || t == "mediumtext" || t == "longtext" ||
		t == "clob" || t == "json" || t == "blob":
		return FieldTextarea

	case strings.HasPrefix(t, "enum"):
		return FieldSelect

	default:
		return FieldText
	}
}

// ParseEnum extracts the choice list from a mysql enum type string,
// e.g. "enum('live','vod','series')" → ["live" "vod" "series"].
// Returns nil when rawType is not an enum.
func ParseEnum(rawType string) []string {
	m := enumRe.FindStringSubmatch(strings.TrimSpace(rawType))
	if m == nil {
		return nil
	}

	var choices []string
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		part = strings.Trim(part, `'"`)
		if part != "" {
			choices = append(choices, part)
		}
	}
	return choices
}

// Label generates a human-readable label from a column name:
// title-cased, with underscores and dashes turned into spaces.
// "stream_display_name" → "Stream Display Name".
func Label(column string) string {
	if i := strings.LastIndexByte(column, '.'); i >= 0 {
		column = column[i+1:]
	}
	column = strings.ReplaceAll(column, "_", " ")
	column = strings.ReplaceAll(column, "-", " ")

	words := strings.Fields(column)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

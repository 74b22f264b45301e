package core

// convert.go provides the coercions a FieldSpec applies to its cleaned value.
//
// Two families exist:
//   - Go types (String, Int, Float, Bool, Time) for adapters that work with
//     plain values.
//   - pgtype values (PgText, PgNumeric, PgDate, PgBool, PgUUID) for the
//     Postgres adapter. Empty input becomes SQL NULL (Valid=false); anything
//     else that cannot be parsed is an error.
//
// The pg converters handle the messy reality of exported spreadsheets:
// currency symbols, thousands separators, accounting negatives, many date
// layouts and yes/no booleans.

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/spf13/cast"
)

// Coercion converts a cleaned string into the attribute's value.
type Coercion func(string) (any, error)

// String keeps the value unchanged.
func String(s string) (any, error) { return s, nil }

// Int parses a base-10 integer. Leading zeros are allowed.
func Int(s string) (any, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid integer: %w", err)
	}
	return n, nil
}

// Float parses a decimal number.
func Float(s string) (any, error) {
	f, err := cast.ToFloat64E(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid number format: %w", err)
	}
	return f, nil
}

// Bool accepts true/false, yes/no, t/f, y/n and 1/0 in any case.
func Bool(s string) (any, error) {
	b, ok := parseBool(s)
	if !ok {
		return nil, fmt.Errorf("must be yes/no, true/false, or 1/0")
	}
	return b, nil
}

// Time parses a timestamp in any layout spf13/cast understands (RFC 3339,
// ISO dates, RFC 1123 and friends).
func Time(s string) (any, error) {
	t, err := cast.ToTimeE(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid date format (use YYYY-MM-DD or similar): %w", err)
	}
	return t, nil
}

// Nullable wraps c so that blank input yields nil instead of being coerced.
func Nullable(c Coercion) Coercion {
	return func(s string) (any, error) {
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		return c(s)
	}
}

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"2006-01-02", "2006/01/02", "2006.01.02",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
	}
)

// PgText converts to pgtype.Text, trimming whitespace. Blank is NULL.
func PgText(s string) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{}, nil
	}
	return pgtype.Text{String: s, Valid: true}, nil
}

// PgNumeric converts to pgtype.Numeric.
func PgNumeric(s string) (any, error) {
	if strings.TrimSpace(s) == "" {
		return pgtype.Numeric{}, nil
	}
	n, ok := parseNumeric(s)
	if !ok {
		return nil, fmt.Errorf("invalid number format")
	}
	return n, nil
}

// PgDate converts to pgtype.Date.
func PgDate(s string) (any, error) {
	if strings.TrimSpace(s) == "" {
		return pgtype.Date{}, nil
	}
	t, ok := parseDate(s, time.Now())
	if !ok {
		return nil, fmt.Errorf("invalid date format (use YYYY-MM-DD or similar)")
	}
	return pgtype.Date{Time: t, Valid: true}, nil
}

// PgBool converts to pgtype.Bool.
func PgBool(s string) (any, error) {
	if strings.TrimSpace(s) == "" {
		return pgtype.Bool{}, nil
	}
	b, ok := parseBool(s)
	if !ok {
		return nil, fmt.Errorf("must be yes/no, true/false, or 1/0")
	}
	return pgtype.Bool{Bool: b, Valid: true}, nil
}

// PgUUID converts to pgtype.UUID.
func PgUUID(s string) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.UUID{}, nil
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid uuid")
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}

// parseNumeric handles currency symbols, thousands separators, and
// accounting format (parentheses for negative).
func parseNumeric(s string) (pgtype.Numeric, bool) {
	s = strings.TrimSpace(s)

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return pgtype.Numeric{}, false
	}

	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{}, false
	}
	return n, true
}

// parseDate tries unambiguous 4-digit-year layouts first, then 2-digit years
// pivoted around now.
func parseDate(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := now.Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			// time.Parse maps 69-99 to 19xx and 00-68 to 20xx.
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

func parseBool(s string) (bool, bool) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	default:
		return false, false
	}
}

// Coercions maps type names usable in schema files to coercions.
var Coercions = map[string]Coercion{
	"string":     String,
	"text":       String,
	"int":        Int,
	"float":      Float,
	"bool":       Bool,
	"time":       Time,
	"pg_text":    PgText,
	"pg_numeric": PgNumeric,
	"pg_date":    PgDate,
	"pg_bool":    PgBool,
	"pg_uuid":    PgUUID,
}

package core

import "strings"

// CleanFunc transforms a validated raw value before coercion.
type CleanFunc func(string) string

// Trim removes surrounding whitespace.
func Trim(s string) string { return strings.TrimSpace(s) }

// Lower lowercases the value.
func Lower(s string) string { return strings.ToLower(s) }

// Upper uppercases the value.
func Upper(s string) string { return strings.ToUpper(s) }

// Chain applies fns left to right.
func Chain(fns ...CleanFunc) CleanFunc {
	return func(s string) string {
		for _, fn := range fns {
			s = fn(s)
		}
		return s
	}
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// surrounding whitespace, the Excel formula prefix (="...") and surrounding
// quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.Trim(s, `"'`)
}

// usStates maps US state full names to their abbreviations.
var usStates = map[string]string{
	"alabama":        "AL",
	"alaska":         "AK",
	"arizona":        "AZ",
	"arkansas":       "AR",
	"california":     "CA",
	"colorado":       "CO",
	"connecticut":    "CT",
	"delaware":       "DE",
	"florida":        "FL",
	"georgia":        "GA",
	"hawaii":         "HI",
	"idaho":          "ID",
	"illinois":       "IL",
	"indiana":        "IN",
	"iowa":           "IA",
	"kansas":         "KS",
	"kentucky":       "KY",
	"louisiana":      "LA",
	"maine":          "ME",
	"maryland":       "MD",
	"massachusetts":  "MA",
	"michigan":       "MI",
	"minnesota":      "MN",
	"mississippi":    "MS",
	"missouri":       "MO",
	"montana":        "MT",
	"nebraska":       "NE",
	"nevada":         "NV",
	"new hampshire":  "NH",
	"new jersey":     "NJ",
	"new mexico":     "NM",
	"new york":       "NY",
	"north carolina": "NC",
	"north dakota":   "ND",
	"ohio":           "OH",
	"oklahoma":       "OK",
	"oregon":         "OR",
	"pennsylvania":   "PA",
	"rhode island":   "RI",
	"south carolina": "SC",
	"south dakota":   "SD",
	"tennessee":      "TN",
	"texas":          "TX",
	"utah":           "UT",
	"vermont":        "VT",
	"virginia":       "VA",
	"washington":     "WA",
	"west virginia":  "WV",
	"wisconsin":      "WI",
	"wyoming":        "WY",
}

// NormalizeUsState converts US state names to their 2-letter abbreviations.
// Abbreviations are uppercased; anything unrecognized is returned trimmed.
func NormalizeUsState(s string) string {
	s = strings.TrimSpace(s)

	if code, ok := usStates[strings.ToLower(s)]; ok {
		return code
	}

	upper := strings.ToUpper(s)
	for _, code := range usStates {
		if upper == code {
			return code
		}
	}

	return s
}

// Cleaners maps names usable in schema files to clean functions.
var Cleaners = map[string]CleanFunc{
	"trim":     Trim,
	"lower":    Lower,
	"upper":    Upper,
	"cell":     CleanCell,
	"us_state": NormalizeUsState,
}

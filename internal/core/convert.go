package core

// convert.go recognizes scalar encodings inside raw cell values.
//
// These helpers handle the shapes schema-less data actually arrives in:
//   - ISO and common regional date formats, with or without a time part
//   - Integers, decimals and scientific notation written as strings
//   - Spreadsheet artifacts such as ="value" formula prefixes and stray quotes
//
// They report whether a value matches; they never fail.

import (
	"regexp"
	"strings"
	"time"
)

// numericRegex validates that a string is a plain numeric literal.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// Layouts for strings carrying only a calendar date. Four-digit years only;
// compact forms like 20060102 are left to the numeric rule.
var dateLayouts = []string{
	"2006-01-02", "2006/01/02", "2006.01.02",
	"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
	"Jan 2, 2006", "January 2, 2006", "2 Jan 2006", "2 January 2006",
}

// Layouts for strings carrying a date and a time of day.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006/01/02 15:04:05",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04",
	time.RFC1123,
	time.RFC1123Z,
	time.RFC850,
	time.ANSIC,
}

// ParseTemporal reports whether s is a date or date+time literal.
// hasTime is true only when the parsed value has a non-zero time of day,
// so "2017-07-22 00:00:00" counts as a plain date.
func ParseTemporal(s string) (t time.Time, hasTime bool, ok bool) {
	s = strings.TrimSpace(s)
	// Anything shorter than "1/2/2006" cannot be a calendar date.
	if len(s) < 8 {
		return time.Time{}, false, false
	}

	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, false, true
		}
	}
	for _, layout := range dateTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, hasTimeOfDay(parsed), true
		}
	}
	return time.Time{}, false, false
}

// hasTimeOfDay reports whether t is past midnight in its own location.
func hasTimeOfDay(t time.Time) bool {
	h, m, s := t.Clock()
	return h != 0 || m != 0 || s != 0 || t.Nanosecond() != 0
}

// IsNumericString reports whether s is a numeric literal after trimming whitespace.
func IsNumericString(s string) bool {
	return numericRegex.MatchString(strings.TrimSpace(s))
}

// isBoolString reports whether s is one of the two numeral boolean encodings
// after trimming whitespace, like the other string rules.
// "true" and "false" are not accepted.
func isBoolString(s string) bool {
	s = strings.TrimSpace(s)
	return s == "0" || s == "1"
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)

	return s
}

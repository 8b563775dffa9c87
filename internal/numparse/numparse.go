// Package numparse normalizes locale-flavoured numeric cells into canonical
// decimal values. Source workbooks mix Persian/Arabic digit glyphs, assorted
// thousands separators, slash decimal points and parenthesized negatives;
// everything is reduced to an ASCII decimal string before validation.
package numparse

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var digitMap = map[rune]rune{
	// Persian (Extended Arabic-Indic)
	'۰': '0', '۱': '1', '۲': '2', '۳': '3', '۴': '4',
	'۵': '5', '۶': '6', '۷': '7', '۸': '8', '۹': '9',
	// Arabic-Indic
	'٠': '0', '١': '1', '٢': '2', '٣': '3', '٤': '4',
	'٥': '5', '٦': '6', '٧': '7', '٨': '8', '٩': '9',
}

// Thousands separators are stripped outright. Comma is always a thousands
// separator here, never a decimal point.
var thousandsSeparators = []string{
	",", "،", "٬", " ", " ", " ", " ",
}

var numericPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// IsBlank reports whether a cell holds no numeric content (empty strings and
// dash placeholders used in the source sheets).
func IsBlank(value string) bool {
	s := strings.TrimSpace(value)
	if s == "" {
		return true
	}
	return strings.Trim(s, "-") == ""
}

// Normalize translates digit glyphs and separators into a plain ASCII decimal
// string. A parenthesized value becomes a leading minus.
func Normalize(value string) string {
	s := strings.TrimSpace(value)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.Map(func(r rune) rune {
		if d, ok := digitMap[r]; ok {
			return d
		}
		return r
	}, s)

	// Persian/Arabic decimal separators.
	s = strings.ReplaceAll(s, "٫", ".")
	s = strings.ReplaceAll(s, "/", ".")

	for _, sep := range thousandsSeparators {
		s = strings.ReplaceAll(s, sep, "")
	}

	if negative && !strings.HasPrefix(s, "-") {
		s = "-" + s
	}
	return s
}

// Parse converts a raw cell value into a decimal. Negative values are
// rejected unless allowNegative is set.
func Parse(value string, allowNegative bool) (decimal.Decimal, error) {
	if IsBlank(value) {
		return decimal.Zero, fmt.Errorf("empty numeric value")
	}

	s := Normalize(value)
	s = strings.TrimPrefix(s, "+")

	if strings.Count(s, ".") > 1 {
		return decimal.Zero, fmt.Errorf("invalid numeric value %q", value)
	}
	if !numericPattern.MatchString(s) {
		return decimal.Zero, fmt.Errorf("invalid numeric value %q", value)
	}
	if !allowNegative && strings.HasPrefix(s, "-") {
		return decimal.Zero, fmt.Errorf("negative value not allowed: %q", value)
	}

	return decimal.NewFromString(s)
}

// ParseFloat is Parse for callers that account in float64 quantities.
func ParseFloat(value string, allowNegative bool) (float64, error) {
	d, err := Parse(value, allowNegative)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

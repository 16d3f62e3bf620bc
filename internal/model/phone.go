package model

import "strings"

// DefaultCountryCode is used when a number is given in national format.
const DefaultCountryCode = "254"

// NormalizePhone converts a caller number into +<country><subscriber> form.
// Non-digits are dropped; a leading 0 or a bare 9-digit subscriber number is
// prefixed with countryCode.
func NormalizePhone(raw, countryCode string) string {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case digits == "":
		return ""
	case strings.HasPrefix(digits, countryCode):
		return "+" + digits
	case strings.HasPrefix(digits, "0"):
		return "+" + countryCode + digits[1:]
	case len(digits) == 9:
		return "+" + countryCode + digits
	}
	return "+" + digits
}

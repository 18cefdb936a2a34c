package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// CurrencySymbol prefixes every amount rendered by FormatPrice.
const CurrencySymbol = "$"

// NormalizePrice strips a single leading currency symbol from raw and parses
// the remainder as a non-negative plain decimal. Exponent notation is
// rejected so that a stored cost always renders in bounded time.
func NormalizePrice(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if r, size := utf8.DecodeRuneInString(s); size > 0 && unicode.Is(unicode.Sc, r) {
		s = strings.TrimSpace(s[size:])
	}
	if s == "" {
		return decimal.Zero, &MalformedPriceError{Raw: raw, Reason: "no amount"}
	}

	if !isPlainDecimal(s) {
		return decimal.Zero, &MalformedPriceError{Raw: raw, Reason: "not numeric"}
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &MalformedPriceError{Raw: raw, Reason: "not numeric"}
	}
	if amount.IsNegative() {
		return decimal.Zero, &MalformedPriceError{Raw: raw, Reason: "negative amount"}
	}
	return amount, nil
}

// isPlainDecimal reports whether s is digits with at most one decimal point
// and an optional leading minus sign.
func isPlainDecimal(s string) bool {
	digits, dot := 0, false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.' && !dot:
			dot = true
		case r == '-' && i == 0:
		default:
			return false
		}
	}
	return digits > 0
}

// FormatPrice renders d as a currency string with two decimal places.
func FormatPrice(d decimal.Decimal) string {
	return CurrencySymbol + d.StringFixed(2)
}
